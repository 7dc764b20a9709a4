package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrLoggedOut is returned when the server rejects both the access token and
// a refresh attempt.
var ErrLoggedOut = errors.New("overlay: session expired, run `timecard login`")

// Record is a time record as the API returns it.
type Record struct {
	ID         int64      `json:"id"`
	DomainID   int64      `json:"domain_id"`
	CategoryID int64      `json:"category_id"`
	TitleID    int64      `json:"title_id"`
	TimeIn     time.Time  `json:"timein"`
	TimeOut    *time.Time `json:"timeout"`
	Notes      *string    `json:"notes"`
}

// Attribute is a domain, category or title label.
type Attribute struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ParentID *int64  `json:"parent_id"`
	LevelNum int     `json:"level_num"`
	Color    *string `json:"color"`
}

// APIClient talks to the timecard API with bearer tokens. On a 401 it
// refreshes the access token once and retries the request.
type APIClient struct {
	http *http.Client

	mu    sync.Mutex
	creds Credentials
	// save persists refreshed tokens; may be nil.
	save func(Credentials) error
}

func NewAPIClient(creds Credentials, save func(Credentials) error) *APIClient {
	return &APIClient{
		http:  &http.Client{Timeout: 10 * time.Second},
		creds: creds,
		save:  save,
	}
}

// Credentials returns a copy of the current credentials.
func (c *APIClient) Credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// SetCredentials swaps in credentials written by another process.
func (c *APIClient) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

// Login exchanges a username and password for a token pair and stores it.
func (c *APIClient) Login(ctx context.Context, username, password string) (Credentials, error) {
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	body := map[string]string{"username": username, "password": password}
	status, err := c.send(ctx, http.MethodPost, "/api/login", "", body, &out)
	if err != nil {
		return Credentials{}, err
	}
	if status == http.StatusUnauthorized {
		return Credentials{}, errors.New("bad username or password")
	}
	if status != http.StatusOK {
		return Credentials{}, fmt.Errorf("login: unexpected status %d", status)
	}

	c.mu.Lock()
	c.creds.Username = username
	c.creds.AccessToken = out.AccessToken
	c.creds.RefreshToken = out.RefreshToken
	creds := c.creds
	c.mu.Unlock()
	return creds, c.persist(creds)
}

// Refresh trades the refresh token for a new access token.
func (c *APIClient) Refresh(ctx context.Context) error {
	creds := c.Credentials()
	if creds.RefreshToken == "" {
		return ErrLoggedOut
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	status, err := c.send(ctx, http.MethodPost, "/api/refresh", creds.RefreshToken, nil, &out)
	if err != nil {
		return err
	}
	if status != http.StatusOK || out.AccessToken == "" {
		return ErrLoggedOut
	}
	c.mu.Lock()
	c.creds.AccessToken = out.AccessToken
	creds = c.creds
	c.mu.Unlock()
	return c.persist(creds)
}

// RememberFocus stores id as the last focused record.
func (c *APIClient) RememberFocus(id int64) error {
	c.mu.Lock()
	if c.creds.LastRecordID == id {
		c.mu.Unlock()
		return nil
	}
	c.creds.LastRecordID = id
	creds := c.creds
	c.mu.Unlock()
	return c.persist(creds)
}

func (c *APIClient) Records(ctx context.Context) ([]Record, error) {
	var out []Record
	if err := c.authed(ctx, http.MethodGet, "/api/timerecords", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) Attributes(ctx context.Context) ([]Attribute, error) {
	var out []Attribute
	if err := c.authed(ctx, http.MethodGet, "/api/recordattributes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stop clocks out the record.
func (c *APIClient) Stop(ctx context.Context, id int64) error {
	return c.authed(ctx, http.MethodPost, "/api/timerecords/"+strconv.FormatInt(id, 10)+"/stop", nil, nil)
}

func (c *APIClient) persist(creds Credentials) error {
	if c.save == nil {
		return nil
	}
	return c.save(creds)
}

// authed sends with the access token, refreshing and retrying once on 401.
func (c *APIClient) authed(ctx context.Context, method, path string, in, out any) error {
	status, err := c.send(ctx, method, path, c.Credentials().AccessToken, in, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		status, err = c.send(ctx, method, path, c.Credentials().AccessToken, in, out)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrLoggedOut
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, status)
	}
	return nil
}

// send performs one request and decodes a 2xx body into out.
func (c *APIClient) send(ctx context.Context, method, path, token string, in, out any) (int, error) {
	server := strings.TrimSuffix(c.Credentials().Server, "/")
	if server == "" {
		return 0, ErrNoCredentials
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, server+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
