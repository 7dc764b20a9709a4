package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TIMECARD_DB_DSN", "file:test.db")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("JIRA_ENCRYPTION_KEY", "a2V5")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 30*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, 10.0, cfg.Jira.RateLimit)
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMECARD_DB_DRIVER", "sqlite3")
	t.Setenv("JWT_ACCESS_TTL", "1h")
	t.Setenv("JIRA_RATE_LIMIT", "2.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, 2.5, cfg.Jira.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"missing dsn":     func(t *testing.T) { t.Setenv("TIMECARD_DB_DSN", "") },
		"missing secret":  func(t *testing.T) { t.Setenv("JWT_SECRET_KEY", "") },
		"missing key":     func(t *testing.T) { t.Setenv("JIRA_ENCRYPTION_KEY", "") },
		"bad driver":      func(t *testing.T) { t.Setenv("TIMECARD_DB_DRIVER", "postgres") },
		"bad ttl":         func(t *testing.T) { t.Setenv("JWT_REFRESH_TTL", "soon") },
		"bad rate limit":  func(t *testing.T) { t.Setenv("JIRA_RATE_LIMIT", "-1") },
		"zero jira timer": func(t *testing.T) { t.Setenv("JIRA_TIMEOUT", "0s") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			mutate(t)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
