package app

import (
	"errors"
	"net/http"

	"timecard/internal/domain"
	"timecard/internal/usecase"
)

type recordRequest struct {
	Domain       string     `json:"domain"`
	Category     string     `json:"category"`
	Title        string     `json:"title"`
	DomainID     *int64     `json:"domain_id"`
	CategoryID   *int64     `json:"category_id"`
	TitleID      *int64     `json:"title_id"`
	TimeIn       *Timestamp `json:"timein"`
	TimeOut      *Timestamp `json:"timeout"`
	ExternalLink *string    `json:"external_link"`
	Notes        *string    `json:"notes"`
	JiraIssueKey *string    `json:"jira_issue_key"`
}

func (req recordRequest) input() usecase.RecordInput {
	return usecase.RecordInput{
		Domain:       req.Domain,
		Category:     req.Category,
		Title:        req.Title,
		DomainID:     req.DomainID,
		CategoryID:   req.CategoryID,
		TitleID:      req.TitleID,
		TimeIn:       timePtr(req.TimeIn),
		TimeOut:      timePtr(req.TimeOut),
		ExternalLink: req.ExternalLink,
		Notes:        req.Notes,
		JiraIssueKey: req.JiraIssueKey,
	}
}

// /api/timerecords?start_date=...&end_date=...
func (a *App) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseStartHTTP(q.Get("start_date"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "error", err.Error())
		return
	}
	to, err := parseEndHTTP(q.Get("end_date"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "error", err.Error())
		return
	}
	records, err := a.records.List(r.Context(), userID(r), from, to)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(records, newRecordView))
}

func (a *App) createRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	rec, err := a.records.Create(r.Context(), userID(r), req.input())
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecordView(rec))
}

func (a *App) getRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Time record not found")
		return
	}
	rec, err := a.records.Get(r.Context(), userID(r), id)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (a *App) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Time record not found")
		return
	}
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	rec, err := a.records.Update(r.Context(), userID(r), id, req.input())
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (a *App) stopRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Time record not found")
		return
	}
	rec, err := a.records.Stop(r.Context(), userID(r), id)
	if errors.Is(err, domain.ErrConflict) {
		writeMessage(w, http.StatusConflict, "error", "Time record is already stopped")
		return
	}
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (a *App) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Time record not found")
		return
	}
	if err := a.records.Delete(r.Context(), userID(r), id); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeMessage(w, http.StatusOK, "message", "Time record deleted")
}

func (a *App) listAttributes(w http.ResponseWriter, r *http.Request) {
	attrs, err := a.records.ListAttributes(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(attrs, newAttributeView))
}

func (a *App) updateAttribute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Record attribute not found")
		return
	}
	var req struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	attr, err := a.records.UpdateAttribute(r.Context(), userID(r), id, req.Name, req.Color)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, newAttributeView(attr))
}
