package app

import (
	"timecard/internal/domain"
)

type recordView struct {
	ID            int64      `json:"id"`
	DomainID      int64      `json:"domain_id"`
	CategoryID    int64      `json:"category_id"`
	TitleID       int64      `json:"title_id"`
	TimeIn        Timestamp  `json:"timein"`
	TimeOut       *Timestamp `json:"timeout"`
	ExternalLink  *string    `json:"external_link"`
	Notes         *string    `json:"notes"`
	JiraIssueKey  *string    `json:"jira_issue_key"`
	JiraWorklogID *string    `json:"jira_worklog_id"`
	JiraSynced    bool       `json:"jira_synced"`
	JiraSyncError *string    `json:"jira_sync_error"`
	LastSyncedAt  *Timestamp `json:"last_synced_at"`
}

func newRecordView(r domain.TimeRecord) recordView {
	return recordView{
		ID:            r.ID,
		DomainID:      r.DomainID,
		CategoryID:    r.CategoryID,
		TitleID:       r.TitleID,
		TimeIn:        Timestamp{Time: r.TimeIn},
		TimeOut:       timestamp(r.TimeOut),
		ExternalLink:  r.ExternalLink,
		Notes:         r.Notes,
		JiraIssueKey:  r.JiraIssueKey,
		JiraWorklogID: r.JiraWorklogID,
		JiraSynced:    r.JiraSynced,
		JiraSyncError: r.JiraSyncError,
		LastSyncedAt:  timestamp(r.LastSyncedAt),
	}
}

type attributeView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ParentID *int64  `json:"parent_id"`
	UserID   int64   `json:"user_id"`
	LevelNum int     `json:"level_num"`
	Color    *string `json:"color"`
}

func newAttributeView(a domain.RecordAttribute) attributeView {
	return attributeView{
		ID:       a.ID,
		Name:     a.Name,
		ParentID: a.ParentID,
		UserID:   a.UserID,
		LevelNum: int(a.Level),
		Color:    a.Color,
	}
}

// connectionView never carries secrets.
type connectionView struct {
	ID        int64     `json:"id"`
	URL       string    `json:"jira_url"`
	AuthType  string    `json:"auth_type"`
	Email     *string   `json:"email"`
	Active    bool      `json:"is_active"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

func newConnectionView(c domain.JiraConnection) connectionView {
	return connectionView{
		ID:        c.ID,
		URL:       c.URL,
		AuthType:  string(c.AuthType),
		Email:     c.Email,
		Active:    c.Active,
		CreatedAt: Timestamp{Time: c.CreatedAt},
		UpdatedAt: Timestamp{Time: c.UpdatedAt},
	}
}

type syncLogView struct {
	ID           int64     `json:"id"`
	TimeRecordID int64     `json:"time_record_id"`
	IssueKey     string    `json:"jira_issue_key"`
	WorklogID    *string   `json:"jira_worklog_id"`
	Status       string    `json:"sync_status"`
	Error        *string   `json:"sync_error"`
	SyncedAt     Timestamp `json:"synced_at"`
	SyncedBy     int64     `json:"synced_by_user_id"`
}

func newSyncLogView(l domain.SyncLog) syncLogView {
	return syncLogView{
		ID:           l.ID,
		TimeRecordID: l.TimeRecordID,
		IssueKey:     l.IssueKey,
		WorklogID:    l.WorklogID,
		Status:       string(l.Status),
		Error:        l.Error,
		SyncedAt:     Timestamp{Time: l.SyncedAt},
		SyncedBy:     l.SyncedBy,
	}
}

func mapViews[T, V any](in []T, f func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
