package ports

import (
	"context"
	"time"

	"timecard/internal/domain"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByUsername(ctx context.Context, username string) (domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
}

// AttributeStore persists the domain/category/title labels. A nil parent
// matches only top-level rows.
type AttributeStore interface {
	FindAttribute(ctx context.Context, userID int64, level domain.Level, name string, parentID *int64) (domain.RecordAttribute, error)
	CreateAttribute(ctx context.Context, a *domain.RecordAttribute) error
	AttributeByID(ctx context.Context, userID, id int64) (domain.RecordAttribute, error)
	ListAttributes(ctx context.Context, userID int64) ([]domain.RecordAttribute, error)
	UpdateAttribute(ctx context.Context, a domain.RecordAttribute) error
}

// RecordStore persists time records. from/to bound timein when set.
type RecordStore interface {
	CreateRecord(ctx context.Context, r *domain.TimeRecord) error
	RecordByID(ctx context.Context, userID, id int64) (domain.TimeRecord, error)
	ListRecords(ctx context.Context, userID int64, from, to *time.Time) ([]domain.TimeRecord, error)
	UpdateRecord(ctx context.Context, r domain.TimeRecord) error
	UpdateSyncState(ctx context.Context, r domain.TimeRecord) error
	DeleteRecord(ctx context.Context, userID, id int64) error
}

// JiraStore persists connections and the sync history.
type JiraStore interface {
	CreateConnection(ctx context.Context, c *domain.JiraConnection) error
	ConnectionsByUser(ctx context.Context, userID int64) ([]domain.JiraConnection, error)
	ConnectionByID(ctx context.Context, userID, id int64) (domain.JiraConnection, error)
	ActiveConnection(ctx context.Context, userID int64) (domain.JiraConnection, error)
	UpdateConnection(ctx context.Context, c domain.JiraConnection) error
	DeleteConnection(ctx context.Context, userID, id int64) error
	CreateSyncLog(ctx context.Context, l *domain.SyncLog) error
	SyncHistory(ctx context.Context, userID int64, status *domain.SyncStatus, limit int) ([]domain.SyncLog, error)
}

// JiraClient is the subset of the Jira REST API the app calls.
type JiraClient interface {
	ServerInfo(ctx context.Context) (domain.ServerInfo, error)
	Search(ctx context.Context, jql string, maxResults int) ([]domain.Issue, error)
	Issue(ctx context.Context, key string) (domain.Issue, error)
	AddWorklog(ctx context.Context, key string, started time.Time, seconds int64, comment string) (string, error)
	DeleteWorklog(ctx context.Context, key, worklogID string) error
}

// JiraCredentials is a connection with its secrets decrypted.
type JiraCredentials struct {
	URL               string
	AuthType          domain.AuthType
	Email             string
	APIToken          string
	OAuthAccessToken  string
	OAuthRefreshToken string
}

// JiraClientFactory builds a client for one connection.
type JiraClientFactory interface {
	NewJiraClient(creds JiraCredentials) (JiraClient, error)
}

// Cipher encrypts secrets at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
