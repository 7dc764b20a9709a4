package app

import (
	"net/http"
	"strconv"

	"timecard/internal/domain"
	"timecard/internal/usecase"
)

type connectionRequest struct {
	URL               *string `json:"jira_url"`
	AuthType          *string `json:"auth_type"`
	Email             *string `json:"email"`
	APIToken          *string `json:"api_token"`
	OAuthAccessToken  *string `json:"oauth_access_token"`
	OAuthRefreshToken *string `json:"oauth_refresh_token"`
	Active            *bool   `json:"is_active"`
}

func (req connectionRequest) input() usecase.ConnectionInput {
	in := usecase.ConnectionInput{
		URL:               req.URL,
		Email:             req.Email,
		APIToken:          req.APIToken,
		OAuthAccessToken:  req.OAuthAccessToken,
		OAuthRefreshToken: req.OAuthRefreshToken,
		Active:            req.Active,
	}
	if req.AuthType != nil {
		t := domain.AuthType(*req.AuthType)
		in.AuthType = &t
	}
	return in
}

func (a *App) listConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := a.jira.Connections(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": mapViews(conns, newConnectionView)})
}

func (a *App) createConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	conn, err := a.jira.CreateConnection(r.Context(), userID(r), req.input())
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "JIRA connection created successfully",
		"connection": newConnectionView(conn),
	})
}

func (a *App) updateConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Connection not found")
		return
	}
	var req connectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	conn, err := a.jira.UpdateConnection(r.Context(), userID(r), id, req.input())
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Connection updated successfully",
		"connection": newConnectionView(conn),
	})
}

func (a *App) deleteConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Connection not found")
		return
	}
	if err := a.jira.DeleteConnection(r.Context(), userID(r), id); err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeMessage(w, http.StatusOK, "message", "Connection deleted successfully")
}

func (a *App) testConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Connection not found")
		return
	}
	res, err := a.jira.TestConnection(r.Context(), userID(r), id)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": res.Error})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Connection successful",
		"server_info": res.ServerInfo,
	})
}

// /api/jira/issues/search?q=...
func (a *App) searchIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := a.jira.SearchIssues(r.Context(), userID(r), r.URL.Query().Get("q"))
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (a *App) assignedIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := a.jira.AssignedIssues(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (a *App) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := a.jira.Issue(r.Context(), userID(r), r.PathValue("key"))
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue": issue})
}

func (a *App) syncRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Time record not found")
		return
	}
	res, err := a.jira.SyncRecord(r.Context(), userID(r), id)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Time record synced to JIRA successfully",
		"worklog_id": res.WorklogID,
	})
}

func (a *App) bulkSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordIDs []int64 `json:"record_ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.RecordIDs == nil {
		writeMessage(w, http.StatusBadRequest, "error", "record_ids array is required")
		return
	}
	res, err := a.jira.BulkSync(r.Context(), userID(r), req.RecordIDs)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// /api/jira/sync/history?status=failed&limit=20
func (a *App) syncHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "error", "limit must be an integer")
			return
		}
		limit = n
	}
	logs, err := a.jira.History(r.Context(), userID(r), q.Get("status"), limit)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": mapViews(logs, newSyncLogView)})
}

func (a *App) deleteWorklog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "error", "Time record not found")
		return
	}
	res, err := a.jira.DeleteWorklog(r.Context(), userID(r), id)
	if err != nil {
		a.writeError(w, r, "error", err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Worklog deleted from JIRA"})
}
