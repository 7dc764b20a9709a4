package domain

import "time"

type AuthType string

const (
	AuthAPIToken AuthType = "api_token"
	AuthOAuth    AuthType = "oauth"
)

// JiraConnection holds a user's Jira credentials. The *Enc fields are
// ciphertext; plaintext secrets never reach the store.
type JiraConnection struct {
	ID                   int64
	UserID               int64
	URL                  string
	AuthType             AuthType
	Email                *string
	APITokenEnc          *string
	OAuthAccessTokenEnc  *string
	OAuthRefreshTokenEnc *string
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncLog is one worklog push attempt.
type SyncLog struct {
	ID           int64
	TimeRecordID int64
	IssueKey     string
	WorklogID    *string
	Status       SyncStatus
	Error        *string
	SyncedAt     time.Time
	SyncedBy     int64
}

// Issue is the subset of a Jira issue the API exposes.
type Issue struct {
	Key         string  `json:"key"`
	Summary     string  `json:"summary"`
	Description any     `json:"description,omitempty"`
	Status      string  `json:"status"`
	Assignee    *string `json:"assignee"`
	IssueType   string  `json:"issueType"`
	Project     string  `json:"project"`
	Created     string  `json:"created,omitempty"`
	Updated     string  `json:"updated,omitempty"`
}

type ServerInfo struct {
	Version        string `json:"version"`
	DeploymentType string `json:"deployment_type"`
}

// SyncResult is the outcome of pushing one record.
type SyncResult struct {
	Success   bool   `json:"success"`
	WorklogID string `json:"worklog_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BulkSyncError struct {
	RecordID int64  `json:"record_id"`
	Error    string `json:"error"`
}

type BulkSyncResult struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Errors    []BulkSyncError `json:"errors"`
}
