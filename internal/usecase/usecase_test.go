package usecase

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timecard/internal/adapter/sqlstore"
	"timecard/internal/auth"
	"timecard/internal/domain"
	"timecard/internal/migrate"
	"timecard/internal/ports"
	"timecard/internal/secret"
)

type env struct {
	store   *sqlstore.Store
	auth    *AuthUseCase
	records *RecordsUseCase
	jira    *JiraUseCase
	fake    *fakeJira
	user    domain.User
	clock   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := filepath.Join(t.TempDir(), "timecard.db")
	require.NoError(t, migrate.Run(ctx, "sqlite3", dsn, log))
	store, err := sqlstore.Open(ctx, "sqlite3", dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	key, err := secret.GenerateKey()
	require.NoError(t, err)
	box, err := secret.New(key)
	require.NoError(t, err)

	e := &env{store: store, fake: &fakeJira{}, clock: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return e.clock }
	e.auth = &AuthUseCase{Log: log, Users: store, Tokens: auth.NewIssuer("secret", time.Minute, time.Hour)}
	e.records = &RecordsUseCase{Log: log, Attributes: store, Records: store, Now: now}
	e.jira = &JiraUseCase{Log: log, Store: store, Records: store, Cipher: box, Clients: e.fake, Now: now}

	e.user, err = e.auth.Register(ctx, "ada", "pw", nil)
	require.NoError(t, err)
	return e
}

func ptr[T any](v T) *T { return &v }

// fakeJira records calls and returns canned results.
type fakeJira struct {
	mu        sync.Mutex
	creds     []ports.JiraCredentials
	worklogs  []fakeWorklog
	deleted   []string
	issues    []domain.Issue
	lastJQL   string
	err       error
	nextID    int
	serverErr error
}

type fakeWorklog struct {
	Key     string
	Started time.Time
	Seconds int64
	Comment string
}

func (f *fakeJira) NewJiraClient(creds ports.JiraCredentials) (ports.JiraClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, creds)
	return f, nil
}

func (f *fakeJira) ServerInfo(context.Context) (domain.ServerInfo, error) {
	if f.serverErr != nil {
		return domain.ServerInfo{}, f.serverErr
	}
	return domain.ServerInfo{Version: "1001", DeploymentType: "cloud"}, nil
}

func (f *fakeJira) Search(_ context.Context, jql string, _ int) ([]domain.Issue, error) {
	f.lastJQL = jql
	if f.err != nil {
		return nil, f.err
	}
	return f.issues, nil
}

func (f *fakeJira) Issue(_ context.Context, key string) (domain.Issue, error) {
	if f.err != nil {
		return domain.Issue{}, f.err
	}
	return domain.Issue{Key: key, Summary: "found"}, nil
}

func (f *fakeJira) AddWorklog(_ context.Context, key string, started time.Time, seconds int64, comment string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	f.worklogs = append(f.worklogs, fakeWorklog{key, started, seconds, comment})
	return "wl-" + string(rune('0'+f.nextID)), nil
}

func (f *fakeJira) DeleteWorklog(_ context.Context, key, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, key+"/"+id)
	return nil
}
