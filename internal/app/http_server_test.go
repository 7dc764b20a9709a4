package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecard/internal/adapter/sqlstore"
	"timecard/internal/auth"
	"timecard/internal/domain"
	"timecard/internal/migrate"
	"timecard/internal/ports"
	"timecard/internal/secret"
)

type stubJira struct{}

func (stubJira) NewJiraClient(ports.JiraCredentials) (ports.JiraClient, error) {
	return stubJira{}, nil
}
func (stubJira) ServerInfo(context.Context) (domain.ServerInfo, error) {
	return domain.ServerInfo{Version: "1001", DeploymentType: "cloud"}, nil
}
func (stubJira) Search(context.Context, string, int) ([]domain.Issue, error) {
	return []domain.Issue{{Key: "PROJ-1", Summary: "Login"}}, nil
}
func (stubJira) Issue(_ context.Context, key string) (domain.Issue, error) {
	return domain.Issue{Key: key}, nil
}
func (stubJira) AddWorklog(context.Context, string, time.Time, int64, string) (string, error) {
	return "10001", nil
}
func (stubJira) DeleteWorklog(context.Context, string, string) error { return nil }

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T, cors ...string) *testServer {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := filepath.Join(t.TempDir(), "timecard.db")
	require.NoError(t, migrate.Run(ctx, "sqlite3", dsn, log))
	store, err := sqlstore.Open(ctx, "sqlite3", dsn, log)
	require.NoError(t, err)
	key, err := secret.GenerateKey()
	require.NoError(t, err)
	box, err := secret.New(key)
	require.NoError(t, err)

	if len(cors) == 0 {
		cors = []string{"*"}
	}
	a := assemble(log, store, auth.NewIssuer("test-secret", time.Minute, time.Hour), box, stubJira{}, cors)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return &testServer{t: t, srv: srv}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	code, raw := s.raw(method, path, token, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(s.t, json.Unmarshal(raw, &out))
	}
	return code, out
}

func (s *testServer) raw(method, path, token string, body any) (int, []byte) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, b
}

func (s *testServer) login(user string) (string, string) {
	s.t.Helper()
	code, _ := s.do("POST", "/api/register", "", map[string]string{"username": user, "password": "pw"})
	require.Equal(s.t, http.StatusCreated, code)
	code, body := s.do("POST", "/api/login", "", map[string]string{"username": user, "password": "pw"})
	require.Equal(s.t, http.StatusOK, code)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.login("ada")

	code, body := s.do("POST", "/api/register", "", map[string]string{"username": "ada", "password": "x"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "User already exists", body["message"])

	code, body = s.do("POST", "/api/register", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Username and password are required", body["message"])

	code, body = s.do("POST", "/api/register", "", map[string]string{"username": "carol", "password": strings.Repeat("x", 80)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password: must be at most 72 bytes", body["message"])

	code, body = s.do("POST", "/api/login", "", map[string]string{"username": "ada", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Bad username or password", body["message"])

	code, body = s.do("POST", "/api/refresh", refresh, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["access_token"])

	// An access token cannot refresh and a refresh token cannot read data.
	code, _ = s.do("POST", "/api/refresh", access, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do("GET", "/api/timerecords", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body = s.do("GET", "/api/timerecords", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Missing Authorization Header", body["msg"])
}

func TestTimeRecords(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login("ada")

	code, body := s.do("POST", "/api/timerecords", access, map[string]any{
		"domain": "Work", "category": "Dev", "title": "API",
		"timein": "2025-03-01T09:00:00", "notes": "pairing",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "2025-03-01T09:00:00Z", body["timein"])
	assert.Nil(t, body["timeout"])
	id := int64(body["id"].(float64))
	path := "/api/timerecords/" + jsonNumber(id)

	code, body = s.do("POST", path+"/stop", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["timeout"])

	code, body = s.do("POST", path+"/stop", access, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Time record is already stopped", body["error"])

	code, body = s.do("PUT", path, access, map[string]any{
		"domain": "Work", "category": "Dev", "title": "API",
		"timein": "2025-03-01T09:00:00Z", "timeout": "2025-03-01T10:30:00+00:00",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2025-03-01T10:30:00Z", body["timeout"])

	code, body = s.do("PUT", path, access, map[string]any{
		"domain": "Work", "category": "Dev", "title": "API",
		"timein": "2025-03-01T09:00:00Z", "timeout": "2025-03-01T08:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "timeout: must be after timein", body["error"])

	code, raw := s.raw("GET", "/api/timerecords?start_date=2025-03-01&end_date=2025-03-01", access, nil)
	require.Equal(t, http.StatusOK, code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 1)

	code, raw = s.raw("GET", "/api/timerecords?start_date=2025-03-02", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(raw))

	code, _ = s.do("GET", "/api/timerecords?start_date=yesterday", access, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	other, _ := s.login("bob")
	code, body = s.do("GET", path, other, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Time record not found", body["error"])

	code, raw = s.raw("GET", "/api/recordattributes", access, nil)
	require.Equal(t, http.StatusOK, code)
	var attrs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &attrs))
	require.Len(t, attrs, 3)
	attrPath := "/api/recordattributes/" + jsonNumber(int64(attrs[0]["id"].(float64)))
	code, body = s.do("PUT", attrPath, access, map[string]any{"color": "#336699"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "#336699", body["color"])

	code, _ = s.do("DELETE", path, access, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do("DELETE", path, access, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestJiraRoutes(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login("ada")

	code, body := s.do("GET", "/api/jira/issues/search?q=login", access, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No active JIRA connection found", body["error"])

	code, body = s.do("POST", "/api/jira/connections", access, map[string]any{
		"jira_url": "https://acme.atlassian.net/", "email": "ada@example.com", "api_token": "tok",
	})
	require.Equal(t, http.StatusCreated, code, body)
	conn := body["connection"].(map[string]any)

	code, body = s.do("POST", "/api/jira/connections", access, map[string]any{
		"jira_url": "https://other.atlassian.net", "email": "ada@example.com", "api_token": "tok",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You already have a JIRA connection. Please update or delete it first.", body["error"])
	assert.Equal(t, "https://acme.atlassian.net", conn["jira_url"])
	assert.NotContains(t, conn, "api_token")
	connPath := "/api/jira/connections/" + jsonNumber(int64(conn["id"].(float64)))

	code, body = s.do("POST", connPath+"/test", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = s.do("GET", "/api/jira/issues/search?q=login", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["issues"], 1)

	code, body = s.do("GET", "/api/jira/issues/PROJ-9", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PROJ-9", body["issue"].(map[string]any)["key"])

	code, body = s.do("POST", "/api/timerecords", access, map[string]any{
		"domain": "Work", "category": "Dev", "title": "API", "jira_issue_key": "PROJ-1",
		"timein": "2025-03-01T09:00:00Z", "timeout": "2025-03-01T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code)
	recID := jsonNumber(int64(body["id"].(float64)))

	code, body = s.do("POST", "/api/jira/sync/record/"+recID, access, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "10001", body["worklog_id"])

	code, body = s.do("POST", "/api/jira/sync/bulk", access, map[string]any{"record_ids": []int64{999}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["failed"])

	code, body = s.do("POST", "/api/jira/sync/bulk", access, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "record_ids array is required", body["error"])

	code, body = s.do("GET", "/api/jira/sync/history?status=success", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)

	code, body = s.do("DELETE", "/api/jira/worklog/"+recID, access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, _ = s.do("DELETE", connPath, access, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthzAndCORS(t *testing.T) {
	s := newTestServer(t, "https://app.example")

	code, raw := s.raw("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", string(raw))

	req, err := http.NewRequest(http.MethodOptions, s.srv.URL+"/api/timerecords", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = s.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestParseBoundaries(t *testing.T) {
	from, err := parseStartHTTP("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *from)

	to, err := parseEndHTTP("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), *to)

	to, err = parseEndHTTP("2025-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), *to)

	from, err = parseStartHTTP("")
	require.NoError(t, err)
	assert.Nil(t, from)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
