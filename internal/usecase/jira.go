package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jiraapi "timecard/internal/adapter/jira"
	"timecard/internal/domain"
	"timecard/internal/ports"
)

const (
	defaultComment      = "Time logged from Timecard App"
	searchLimit         = 50
	defaultHistoryLimit = 100
)

// ConnectionInput carries connection fields. Nil fields are left unchanged
// on update.
type ConnectionInput struct {
	URL               *string
	AuthType          *domain.AuthType
	Email             *string
	APIToken          *string
	OAuthAccessToken  *string
	OAuthRefreshToken *string
	Active            *bool
}

// TestResult is the outcome of probing a connection.
type TestResult struct {
	Success    bool
	ServerInfo *domain.ServerInfo
	Error      string
}

// JiraUseCase coordinates Jira connections and pushing time records to Jira
// as worklogs.
type JiraUseCase struct {
	Log     *slog.Logger
	Store   ports.JiraStore
	Records ports.RecordStore
	Cipher  ports.Cipher
	Clients ports.JiraClientFactory
	Now     func() time.Time
}

func (uc *JiraUseCase) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC().Truncate(time.Second)
	}
	return time.Now().UTC().Truncate(time.Second)
}

func (uc *JiraUseCase) Connections(ctx context.Context, userID int64) ([]domain.JiraConnection, error) {
	return uc.Store.ConnectionsByUser(ctx, userID)
}

// CreateConnection stores the user's single Jira connection with its
// secrets encrypted.
func (uc *JiraUseCase) CreateConnection(ctx context.Context, userID int64, in ConnectionInput) (domain.JiraConnection, error) {
	authType := domain.AuthAPIToken
	if in.AuthType != nil && *in.AuthType != "" {
		authType = *in.AuthType
	}
	switch authType {
	case domain.AuthAPIToken:
		if err := requireFields(field{"jira_url", in.URL}, field{"email", in.Email}, field{"api_token", in.APIToken}); err != nil {
			return domain.JiraConnection{}, err
		}
	case domain.AuthOAuth:
		if err := requireFields(field{"jira_url", in.URL}, field{"oauth_access_token", in.OAuthAccessToken}); err != nil {
			return domain.JiraConnection{}, err
		}
	default:
		return domain.JiraConnection{}, domain.Invalid("auth_type", "must be api_token or oauth")
	}

	existing, err := uc.Store.ConnectionsByUser(ctx, userID)
	if err != nil {
		return domain.JiraConnection{}, err
	}
	if len(existing) > 0 {
		return domain.JiraConnection{}, &domain.ValidationError{
			Message: "You already have a JIRA connection. Please update or delete it first.",
		}
	}

	c := domain.JiraConnection{UserID: userID, AuthType: authType, Active: true, CreatedAt: uc.now()}
	if err := uc.applyConnection(&c, in); err != nil {
		return domain.JiraConnection{}, err
	}
	if err := uc.Store.CreateConnection(ctx, &c); err != nil {
		return domain.JiraConnection{}, err
	}
	uc.Log.Info("jira connection created", slog.Int64("user_id", userID), slog.String("url", c.URL))
	return c, nil
}

type field struct {
	name  string
	value *string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if f.value == nil || *f.value == "" {
			return &domain.ValidationError{Message: "Missing required field: " + f.name}
		}
	}
	return nil
}

func (uc *JiraUseCase) UpdateConnection(ctx context.Context, userID, id int64, in ConnectionInput) (domain.JiraConnection, error) {
	c, err := uc.connection(ctx, userID, id)
	if err != nil {
		return domain.JiraConnection{}, err
	}
	if in.AuthType != nil {
		if *in.AuthType != domain.AuthAPIToken && *in.AuthType != domain.AuthOAuth {
			return domain.JiraConnection{}, domain.Invalid("auth_type", "must be api_token or oauth")
		}
		c.AuthType = *in.AuthType
	}
	if err := uc.applyConnection(&c, in); err != nil {
		return domain.JiraConnection{}, err
	}
	if err := completeConnection(c); err != nil {
		return domain.JiraConnection{}, err
	}
	if err := uc.Store.UpdateConnection(ctx, c); err != nil {
		return domain.JiraConnection{}, err
	}
	c.UpdatedAt = uc.now()
	return c, nil
}

// completeConnection checks that an edited connection still carries what
// its auth type needs.
func completeConnection(c domain.JiraConnection) error {
	missing := func(name string) error {
		return &domain.ValidationError{Message: "Missing required field: " + name}
	}
	if c.URL == "" {
		return missing("jira_url")
	}
	switch c.AuthType {
	case domain.AuthAPIToken:
		if c.Email == nil {
			return missing("email")
		}
		if c.APITokenEnc == nil {
			return missing("api_token")
		}
	case domain.AuthOAuth:
		if c.OAuthAccessTokenEnc == nil {
			return missing("oauth_access_token")
		}
	}
	return nil
}

func (uc *JiraUseCase) DeleteConnection(ctx context.Context, userID, id int64) error {
	err := uc.Store.DeleteConnection(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Missing("Connection")
	}
	return err
}

// TestConnection calls the tracker's server info endpoint. Tracker failures
// are reported in the result, not as an error.
func (uc *JiraUseCase) TestConnection(ctx context.Context, userID, id int64) (TestResult, error) {
	c, err := uc.connection(ctx, userID, id)
	if err != nil {
		return TestResult{}, err
	}
	client, err := uc.client(c)
	if err != nil {
		return TestResult{}, err
	}
	info, err := client.ServerInfo(ctx)
	if err != nil {
		uc.Log.Error("jira connection test failed", slog.Int64("connection_id", id), slog.String("error", err.Error()))
		return TestResult{Error: jiraapi.ParseError(err).UserMessage}, nil
	}
	return TestResult{Success: true, ServerInfo: &info}, nil
}

// SearchIssues matches q against issue text, and against the key when q
// looks like one. Tracker errors yield an empty result.
func (uc *JiraUseCase) SearchIssues(ctx context.Context, userID int64, q string) ([]domain.Issue, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, &domain.ValidationError{Message: `Query parameter "q" is required`}
	}
	client, err := uc.activeClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	issues, err := client.Search(ctx, SearchJQL(q), searchLimit)
	if err != nil {
		c := jiraapi.ParseError(err)
		uc.Log.Warn("jira search failed",
			slog.String("type", string(c.Type)), slog.String("error", err.Error()))
		return []domain.Issue{}, nil
	}
	return issues, nil
}

// SearchJQL builds the query used by SearchIssues.
func SearchJQL(q string) string {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(q)
	if jiraapi.ValidateIssueKey(q) == nil {
		return fmt.Sprintf(`key = "%s" OR text ~ "%s"`, quoted, quoted)
	}
	return fmt.Sprintf(`text ~ "%s"`, quoted)
}

// AssignedIssues lists unresolved issues assigned to the connection's user.
func (uc *JiraUseCase) AssignedIssues(ctx context.Context, userID int64) ([]domain.Issue, error) {
	client, err := uc.activeClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	issues, err := client.Search(ctx, `assignee = currentUser() AND resolution = Unresolved ORDER BY updated DESC`, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("assigned issues: %w", err)
	}
	return issues, nil
}

// Issue fetches one issue. Any tracker error is reported as not found.
func (uc *JiraUseCase) Issue(ctx context.Context, userID int64, key string) (domain.Issue, error) {
	client, err := uc.activeClient(ctx, userID)
	if err != nil {
		return domain.Issue{}, err
	}
	issue, err := client.Issue(ctx, key)
	if err != nil {
		uc.Log.Error("jira issue lookup failed", slog.String("issue", key), slog.String("error", err.Error()))
		return domain.Issue{}, domain.Missing("Issue")
	}
	return issue, nil
}

// SyncRecord pushes one closed record as a worklog. A record without an
// issue key or a clock-out is rejected outright. Any later failure is
// recorded on the record and in the sync log and returned in the result.
func (uc *JiraUseCase) SyncRecord(ctx context.Context, userID, recordID int64) (domain.SyncResult, error) {
	r, err := uc.Records.RecordByID(ctx, userID, recordID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SyncResult{}, domain.Missing("Time record")
	}
	if err != nil {
		return domain.SyncResult{}, err
	}
	if err := jiraapi.ValidateForSync(r, uc.Log); err != nil {
		return domain.SyncResult{}, err
	}
	client, err := uc.activeClient(ctx, userID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	return uc.push(ctx, client, userID, r)
}

// BulkSync pushes each record in order. Failures are collected per record
// and never stop the run.
func (uc *JiraUseCase) BulkSync(ctx context.Context, userID int64, ids []int64) (domain.BulkSyncResult, error) {
	client, err := uc.activeClient(ctx, userID)
	if err != nil {
		return domain.BulkSyncResult{}, err
	}
	res := domain.BulkSyncResult{Total: len(ids), Errors: []domain.BulkSyncError{}}
	fail := func(id int64, msg string) {
		res.Failed++
		res.Errors = append(res.Errors, domain.BulkSyncError{RecordID: id, Error: msg})
	}

	uc.Log.Info("bulk sync started", slog.Int64("user_id", userID), slog.Int("count", len(ids)))
	for _, id := range ids {
		r, err := uc.Records.RecordByID(ctx, userID, id)
		if errors.Is(err, domain.ErrNotFound) {
			fail(id, "Record not found")
			continue
		}
		if err != nil {
			return res, err
		}
		if err := jiraapi.ValidateForSync(r, uc.Log); err != nil {
			fail(id, err.Error())
			continue
		}
		out, err := uc.push(ctx, client, userID, r)
		if err != nil {
			return res, err
		}
		if !out.Success {
			fail(id, out.Error)
			continue
		}
		res.Succeeded++
	}
	uc.Log.Info("bulk sync completed",
		slog.Int("succeeded", res.Succeeded), slog.Int("failed", res.Failed))
	return res, nil
}

// push creates the worklog and persists the outcome on the record and in a
// new sync log.
func (uc *JiraUseCase) push(ctx context.Context, client ports.JiraClient, userID int64, r domain.TimeRecord) (domain.SyncResult, error) {
	comment := defaultComment
	if r.Notes != nil && *r.Notes != "" {
		comment = *r.Notes
	}
	seconds := int64(r.TimeOut.Sub(r.TimeIn) / time.Second)
	key := *r.JiraIssueKey

	var worklogID string
	pushErr := jiraapi.ValidateWorklog(key, seconds)
	if pushErr == nil {
		worklogID, pushErr = client.AddWorklog(ctx, key, r.TimeIn, seconds, comment)
	}

	now := uc.now()
	entry := domain.SyncLog{TimeRecordID: r.ID, IssueKey: key, SyncedAt: now, SyncedBy: userID}
	r.LastSyncedAt = &now
	var result domain.SyncResult
	if pushErr == nil {
		r.JiraSynced, r.JiraWorklogID, r.JiraSyncError = true, &worklogID, nil
		entry.Status, entry.WorklogID = domain.SyncSuccess, &worklogID
		result = domain.SyncResult{Success: true, WorklogID: worklogID}
	} else {
		msg := syncErrorMessage(pushErr)
		uc.Log.Error("jira worklog failed",
			slog.Int64("record_id", r.ID), slog.String("issue", key), slog.String("error", pushErr.Error()))
		r.JiraSynced, r.JiraSyncError = false, &msg
		entry.Status, entry.Error = domain.SyncFailed, &msg
		result = domain.SyncResult{Error: msg}
	}

	if err := uc.Records.UpdateSyncState(ctx, r); err != nil {
		return domain.SyncResult{}, err
	}
	if err := uc.Store.CreateSyncLog(ctx, &entry); err != nil {
		return domain.SyncResult{}, err
	}
	return result, nil
}

// syncErrorMessage keeps local validation messages verbatim and maps
// tracker errors to user text.
func syncErrorMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return jiraapi.ParseError(err).UserMessage
}

// History returns the newest sync logs, optionally filtered by status.
func (uc *JiraUseCase) History(ctx context.Context, userID int64, status string, limit int) ([]domain.SyncLog, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var st *domain.SyncStatus
	if status != "" {
		s := domain.SyncStatus(status)
		st = &s
	}
	return uc.Store.SyncHistory(ctx, userID, st, limit)
}

// DeleteWorklog removes a record's worklog from the tracker and clears its
// sync state.
func (uc *JiraUseCase) DeleteWorklog(ctx context.Context, userID, recordID int64) (domain.SyncResult, error) {
	r, err := uc.Records.RecordByID(ctx, userID, recordID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SyncResult{}, domain.Missing("Time record")
	}
	if err != nil {
		return domain.SyncResult{}, err
	}
	if r.JiraWorklogID == nil || r.JiraIssueKey == nil {
		return domain.SyncResult{}, &domain.ValidationError{Message: "Time record is not synced to JIRA"}
	}
	client, err := uc.activeClient(ctx, userID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if err := client.DeleteWorklog(ctx, *r.JiraIssueKey, *r.JiraWorklogID); err != nil {
		uc.Log.Error("jira worklog delete failed",
			slog.Int64("record_id", r.ID), slog.String("error", err.Error()))
		return domain.SyncResult{Error: err.Error()}, nil
	}
	r.JiraSynced, r.JiraWorklogID, r.JiraSyncError, r.LastSyncedAt = false, nil, nil, nil
	if err := uc.Records.UpdateSyncState(ctx, r); err != nil {
		return domain.SyncResult{}, err
	}
	return domain.SyncResult{Success: true}, nil
}

func (uc *JiraUseCase) connection(ctx context.Context, userID, id int64) (domain.JiraConnection, error) {
	c, err := uc.Store.ConnectionByID(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.JiraConnection{}, domain.Missing("Connection")
	}
	return c, err
}

func (uc *JiraUseCase) activeClient(ctx context.Context, userID int64) (ports.JiraClient, error) {
	c, err := uc.Store.ActiveConnection(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.NotFoundError{Message: "No active JIRA connection found"}
	}
	if err != nil {
		return nil, err
	}
	return uc.client(c)
}

// client decrypts c's secrets and builds a tracker client.
func (uc *JiraUseCase) client(c domain.JiraConnection) (ports.JiraClient, error) {
	creds := ports.JiraCredentials{URL: c.URL, AuthType: c.AuthType}
	if c.Email != nil {
		creds.Email = *c.Email
	}
	var err error
	if creds.APIToken, err = uc.decrypt(c.APITokenEnc); err != nil {
		return nil, err
	}
	if creds.OAuthAccessToken, err = uc.decrypt(c.OAuthAccessTokenEnc); err != nil {
		return nil, err
	}
	if creds.OAuthRefreshToken, err = uc.decrypt(c.OAuthRefreshTokenEnc); err != nil {
		return nil, err
	}
	return uc.Clients.NewJiraClient(creds)
}

func (uc *JiraUseCase) decrypt(enc *string) (string, error) {
	if enc == nil {
		return "", nil
	}
	s, err := uc.Cipher.Decrypt(*enc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt JIRA token: %w", err)
	}
	return s, nil
}

func (uc *JiraUseCase) encrypt(dst **string, plain *string) error {
	if plain == nil {
		return nil
	}
	if *plain == "" {
		*dst = nil
		return nil
	}
	enc, err := uc.Cipher.Encrypt(*plain)
	if err != nil {
		return err
	}
	*dst = &enc
	return nil
}

func (uc *JiraUseCase) applyConnection(c *domain.JiraConnection, in ConnectionInput) error {
	if in.URL != nil {
		u := strings.TrimRight(strings.TrimSpace(*in.URL), "/")
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return domain.Invalid("jira_url", "must be an http(s) URL")
		}
		c.URL = u
	}
	if in.Email != nil {
		c.Email = emptyToNil(in.Email)
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	if err := uc.encrypt(&c.APITokenEnc, in.APIToken); err != nil {
		return err
	}
	if err := uc.encrypt(&c.OAuthAccessTokenEnc, in.OAuthAccessToken); err != nil {
		return err
	}
	return uc.encrypt(&c.OAuthRefreshTokenEnc, in.OAuthRefreshToken)
}
