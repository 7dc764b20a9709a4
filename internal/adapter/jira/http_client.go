package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"timecard/internal/domain"
	"timecard/internal/ports"
)

// StartedLayout is the timestamp format Jira expects for worklog.started.
const StartedLayout = "2006-01-02T15:04:05.000+0000"

const searchFields = "key,summary,status,assignee,issuetype,project"

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("jira: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client implements ports.JiraClient against the Jira Cloud REST API.
type Client struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// Options tunes every client a Factory builds.
type Options struct {
	Timeout   time.Duration // default: 30s
	RateLimit float64       // requests per second per connection, default: 10
	Transport http.RoundTripper
}

// NewClient builds a client for creds. API token connections use Atlassian
// basic auth (email:token); OAuth connections send the access token as a
// bearer token.
func NewClient(creds ports.JiraCredentials, opts Options, limiter *rate.Limiter, log *slog.Logger) (*Client, error) {
	if creds.URL == "" {
		return nil, errors.New("jira: missing base URL")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if limiter == nil {
		limiter = newLimiter(opts.RateLimit)
	}
	c := &Client{
		baseURL: strings.TrimSuffix(creds.URL, "/"),
		http:    &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		limiter: limiter,
		log:     log,
	}
	switch creds.AuthType {
	case domain.AuthAPIToken, "":
		if creds.Email == "" || creds.APIToken == "" {
			return nil, errors.New("jira: email and api token are required")
		}
		c.email, c.token = creds.Email, creds.APIToken
	case domain.AuthOAuth:
		if creds.OAuthAccessToken == "" {
			return nil, errors.New("jira: missing oauth access token")
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken:  creds.OAuthAccessToken,
			RefreshToken: creds.OAuthRefreshToken,
			TokenType:    "Bearer",
		})
		base := opts.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http.Transport = &oauth2.Transport{Source: src, Base: base}
	default:
		return nil, fmt.Errorf("jira: unsupported auth type %q", creds.AuthType)
	}
	return c, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	return rate.NewLimiter(rate.Limit(perSecond), 5)
}

// ServerInfo is used to verify a connection.
// GET /rest/api/2/serverInfo
func (c *Client) ServerInfo(ctx context.Context) (domain.ServerInfo, error) {
	var raw struct {
		Version        string `json:"version"`
		DeploymentType string `json:"deploymentType"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/serverInfo", nil, nil, &raw); err != nil {
		return domain.ServerInfo{}, err
	}
	info := domain.ServerInfo{Version: raw.Version, DeploymentType: raw.DeploymentType}
	if info.DeploymentType == "" {
		info.DeploymentType = "cloud"
	}
	return info, nil
}

// Search runs a JQL query.
// GET /rest/api/3/search/jql?jql=...&maxResults=...&fields=...
func (c *Client) Search(ctx context.Context, jql string, maxResults int) ([]domain.Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("fields", searchFields)

	var raw struct {
		Issues []rawIssue `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/search/jql", q, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Issue, 0, len(raw.Issues))
	for _, r := range raw.Issues {
		out = append(out, r.toDomain(false))
	}
	c.log.Debug("jira search", slog.String("jql", jql), slog.Int("count", len(out)))
	return out, nil
}

// Issue fetches one issue with its description and timestamps.
// GET /rest/api/2/issue/{key}
func (c *Client) Issue(ctx context.Context, key string) (domain.Issue, error) {
	var raw rawIssue
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key), nil, nil, &raw); err != nil {
		return domain.Issue{}, err
	}
	return raw.toDomain(true), nil
}

// AddWorklog logs seconds against key and returns the new worklog id.
// POST /rest/api/2/issue/{key}/worklog
func (c *Client) AddWorklog(ctx context.Context, key string, started time.Time, seconds int64, comment string) (string, error) {
	if err := ValidateWorklog(key, seconds); err != nil {
		return "", err
	}
	body := map[string]any{
		"started":          started.UTC().Format(StartedLayout),
		"timeSpentSeconds": seconds,
	}
	if comment != "" {
		body["comment"] = comment
	}
	var raw struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/worklog", nil, body, &raw); err != nil {
		return "", err
	}
	c.log.Info("jira worklog created",
		slog.String("issue", key), slog.String("worklog_id", raw.ID), slog.Int64("seconds", seconds))
	return raw.ID, nil
}

// DeleteWorklog removes a worklog.
// DELETE /rest/api/2/issue/{key}/worklog/{id}
func (c *Client) DeleteWorklog(ctx context.Context, key, worklogID string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "/worklog/" + url.PathEscape(worklogID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("jira: rate limiter: %w", err)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.SetBasicAuth(c.email, c.token)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// rawIssue mirrors the issue JSON for both the v2 and v3 endpoints.
type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description any    `json:"description"`
		Status      *struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		IssueType *struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Project *struct {
			Key string `json:"key"`
		} `json:"project"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

func (r rawIssue) toDomain(detailed bool) domain.Issue {
	f := r.Fields
	out := domain.Issue{
		Key:       r.Key,
		Summary:   f.Summary,
		Status:    "Unknown",
		IssueType: "Unknown",
		Project:   "Unknown",
	}
	if f.Status != nil {
		out.Status = f.Status.Name
	}
	if f.Assignee != nil {
		name := f.Assignee.DisplayName
		out.Assignee = &name
	}
	if f.IssueType != nil {
		out.IssueType = f.IssueType.Name
	}
	if f.Project != nil {
		out.Project = f.Project.Key
	}
	if detailed {
		out.Description = f.Description
		if out.Description == nil {
			out.Description = ""
		}
		out.Created = f.Created
		out.Updated = f.Updated
	}
	return out
}

// Factory builds clients and shares one limiter per connection.
type Factory struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewFactory(opts Options, log *slog.Logger) *Factory {
	return &Factory{opts: opts, log: log, limiters: make(map[string]*rate.Limiter)}
}

// NewJiraClient implements ports.JiraClientFactory.
func (f *Factory) NewJiraClient(creds ports.JiraCredentials) (ports.JiraClient, error) {
	key := strings.TrimSuffix(creds.URL, "/") + "|" + creds.Email + "|" + string(creds.AuthType)
	f.mu.Lock()
	l, ok := f.limiters[key]
	if !ok {
		l = newLimiter(f.opts.RateLimit)
		f.limiters[key] = l
	}
	f.mu.Unlock()
	return NewClient(creds, f.opts, l, f.log)
}
