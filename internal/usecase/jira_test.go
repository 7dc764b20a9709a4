package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecard/internal/domain"
)

func connect(t *testing.T, e *env) domain.JiraConnection {
	t.Helper()
	c, err := e.jira.CreateConnection(context.Background(), e.user.ID, ConnectionInput{
		URL: ptr("https://acme.atlassian.net/"), Email: ptr("ada@example.com"), APIToken: ptr("tok"),
	})
	require.NoError(t, err)
	return c
}

func closedRecord(t *testing.T, e *env, key string, d time.Duration) domain.TimeRecord {
	t.Helper()
	in := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(d)
	r, err := e.records.Create(context.Background(), e.user.ID, RecordInput{
		Domain: "Work", Category: "Dev", Title: "API", TimeIn: &in, TimeOut: &out, JiraIssueKey: ptr(key),
	})
	require.NoError(t, err)
	return r
}

func TestCreateConnection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := connect(t, e)

	assert.Equal(t, "https://acme.atlassian.net", c.URL)
	assert.True(t, c.Active)
	require.NotNil(t, c.APITokenEnc)
	assert.NotEqual(t, "tok", *c.APITokenEnc)

	_, err := e.jira.CreateConnection(ctx, e.user.ID, ConnectionInput{
		URL: ptr("https://b.atlassian.net"), Email: ptr("a@b.c"), APIToken: ptr("t"),
	})
	assert.EqualError(t, err, "You already have a JIRA connection. Please update or delete it first.")

	_, err = e.jira.CreateConnection(ctx, e.user.ID, ConnectionInput{URL: ptr("https://x")})
	assert.EqualError(t, err, "Missing required field: email")

	// Secrets reach the client decrypted.
	_, err = e.jira.TestConnection(ctx, e.user.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, e.fake.creds, 1)
	assert.Equal(t, "tok", e.fake.creds[0].APIToken)
	assert.Equal(t, "ada@example.com", e.fake.creds[0].Email)
}

func TestUpdateAndDeleteConnection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := connect(t, e)

	c, err := e.jira.UpdateConnection(ctx, e.user.ID, c.ID, ConnectionInput{Active: ptr(false), APIToken: ptr("new")})
	require.NoError(t, err)
	assert.False(t, c.Active)

	_, err = e.jira.SearchIssues(ctx, e.user.ID, "login")
	assert.EqualError(t, err, "No active JIRA connection found")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, e.jira.DeleteConnection(ctx, e.user.ID, c.ID))
	assert.ErrorIs(t, e.jira.DeleteConnection(ctx, e.user.ID, c.ID), domain.ErrNotFound)
}

func TestUpdateConnection_KeepsItUsable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := connect(t, e)

	_, err := e.jira.UpdateConnection(ctx, e.user.ID, c.ID, ConnectionInput{Email: ptr("")})
	assert.EqualError(t, err, "Missing required field: email")

	oauth := domain.AuthOAuth
	_, err = e.jira.UpdateConnection(ctx, e.user.ID, c.ID, ConnectionInput{AuthType: &oauth})
	assert.EqualError(t, err, "Missing required field: oauth_access_token")

	// Rejected edits are not stored.
	stored, err := e.store.ConnectionByID(ctx, e.user.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuthAPIToken, stored.AuthType)
	require.NotNil(t, stored.Email)
	assert.Equal(t, "ada@example.com", *stored.Email)

	c, err = e.jira.UpdateConnection(ctx, e.user.ID, c.ID, ConnectionInput{AuthType: &oauth, OAuthAccessToken: ptr("bearer")})
	require.NoError(t, err)
	assert.Equal(t, domain.AuthOAuth, c.AuthType)
}

func TestTestConnection_Failure(t *testing.T) {
	e := newEnv(t)
	c := connect(t, e)
	e.fake.serverErr = errors.New("jira: HTTP 401: ")

	res, err := e.jira.TestConnection(context.Background(), e.user.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Authentication failed. Your JIRA credentials may be incorrect or expired.", res.Error)
}

func TestSearchJQL(t *testing.T) {
	assert.Equal(t, `key = "PROJ-12" OR text ~ "PROJ-12"`, SearchJQL("PROJ-12"))
	assert.Equal(t, `text ~ "login \"page\""`, SearchJQL(`login "page"`))
}

func TestSearchIssues(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	e.fake.issues = []domain.Issue{{Key: "PROJ-1"}}

	got, err := e.jira.SearchIssues(ctx, e.user.ID, "login")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, `text ~ "login"`, e.fake.lastJQL)

	_, err = e.jira.SearchIssues(ctx, e.user.ID, " ")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	e.fake.err = errors.New("jira: HTTP 500: boom")
	got, err = e.jira.SearchIssues(ctx, e.user.ID, "login")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.jira.Issue(ctx, e.user.ID, "PROJ-1")
	assert.EqualError(t, err, "Issue not found")
}

func TestSyncRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	r := closedRecord(t, e, "PROJ-1", 90*time.Minute)

	res, err := e.jira.SyncRecord(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "wl-1", res.WorklogID)

	require.Len(t, e.fake.worklogs, 1)
	w := e.fake.worklogs[0]
	assert.Equal(t, int64(5400), w.Seconds)
	assert.Equal(t, r.TimeIn, w.Started)
	assert.Equal(t, defaultComment, w.Comment)

	got, err := e.records.Get(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, got.JiraSynced)
	assert.Equal(t, "wl-1", *got.JiraWorklogID)
	assert.Equal(t, e.clock, *got.LastSyncedAt)

	hist, err := e.jira.History(ctx, e.user.ID, "", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.SyncSuccess, hist[0].Status)
}

func TestSyncRecord_TrackerFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	r := closedRecord(t, e, "PROJ-1", time.Hour)
	e.fake.err = errors.New("jira: HTTP 403: nope")

	res, err := e.jira.SyncRecord(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "do not have permission")

	got, err := e.records.Get(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, got.JiraSynced)
	assert.Equal(t, res.Error, *got.JiraSyncError)

	hist, err := e.jira.History(ctx, e.user.ID, "failed", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestSyncRecord_Invalid(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	open, err := e.records.Create(ctx, e.user.ID, RecordInput{Domain: "W", Category: "C", Title: "T", JiraIssueKey: ptr("PROJ-1")})
	require.NoError(t, err)

	_, err = e.jira.SyncRecord(ctx, e.user.ID, open.ID)
	assert.EqualError(t, err, "Time record must have an end time (clock out required)")
	_, err = e.jira.SyncRecord(ctx, e.user.ID, 9999)
	assert.EqualError(t, err, "Time record not found")
	assert.Empty(t, e.fake.worklogs)
}

func TestSyncRecord_TooShortIsLoggedAsFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	r := closedRecord(t, e, "PROJ-1", 30*time.Second)

	res, err := e.jira.SyncRecord(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Time entry must be at least 1 minute", res.Error)
	assert.Empty(t, e.fake.worklogs)

	got, err := e.records.Get(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, got.JiraSynced)
	require.NotNil(t, got.JiraSyncError)
	assert.Equal(t, res.Error, *got.JiraSyncError)
	assert.Equal(t, e.clock, *got.LastSyncedAt)

	hist, err := e.jira.History(ctx, e.user.ID, "failed", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, r.ID, hist[0].TimeRecordID)
	assert.Equal(t, res.Error, *hist[0].Error)
}

func TestBulkSync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	ok := closedRecord(t, e, "PROJ-1", time.Hour)
	short := closedRecord(t, e, "PROJ-2", 30*time.Second)

	res, err := e.jira.BulkSync(ctx, e.user.ID, []int64{ok.ID, short.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, []domain.BulkSyncError{
		{RecordID: short.ID, Error: "Time entry must be at least 1 minute"},
		{RecordID: 9999, Error: "Record not found"},
	}, res.Errors)

	hist, err := e.jira.History(ctx, e.user.ID, "failed", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, short.ID, hist[0].TimeRecordID)
}

func TestDeleteWorklog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	connect(t, e)
	r := closedRecord(t, e, "PROJ-1", time.Hour)

	_, err := e.jira.DeleteWorklog(ctx, e.user.ID, r.ID)
	assert.EqualError(t, err, "Time record is not synced to JIRA")

	_, err = e.jira.SyncRecord(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	res, err := e.jira.DeleteWorklog(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"PROJ-1/wl-1"}, e.fake.deleted)

	got, err := e.records.Get(ctx, e.user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, got.JiraSynced)
	assert.Nil(t, got.JiraWorklogID)
	assert.Nil(t, got.LastSyncedAt)
}
