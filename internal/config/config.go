package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-driven configuration.
type Config struct {
	DB struct {
		Driver string // mysql (default) or sqlite3
		DSN    string // e.g., user:pass@tcp(host:3306)/timecard?parseTime=true&multiStatements=true&clientFoundRows=true
	}
	JWT struct {
		Secret     string
		AccessTTL  time.Duration // default: 15m
		RefreshTTL time.Duration // default: 720h
	}
	Jira struct {
		EncryptionKey string // URL-safe base64, 32 bytes decoded
		Timeout       time.Duration
		RateLimit     float64 // requests per second per connection
	}
	HTTP struct {
		Addr        string   // default: :5000
		CORSOrigins []string // default: *
	}
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config

	cfg.DB.Driver = os.Getenv("TIMECARD_DB_DRIVER")
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "mysql"
	}
	if cfg.DB.Driver != "mysql" && cfg.DB.Driver != "sqlite3" {
		return cfg, fmt.Errorf("TIMECARD_DB_DRIVER must be mysql or sqlite3, got %q", cfg.DB.Driver)
	}
	cfg.DB.DSN = os.Getenv("TIMECARD_DB_DSN")
	if cfg.DB.DSN == "" {
		return cfg, errors.New("TIMECARD_DB_DSN is required")
	}

	cfg.JWT.Secret = os.Getenv("JWT_SECRET_KEY")
	if cfg.JWT.Secret == "" {
		return cfg, errors.New("JWT_SECRET_KEY is required")
	}
	var err error
	if cfg.JWT.AccessTTL, err = durationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.JWT.RefreshTTL, err = durationEnv("JWT_REFRESH_TTL", 30*24*time.Hour); err != nil {
		return cfg, err
	}

	cfg.Jira.EncryptionKey = os.Getenv("JIRA_ENCRYPTION_KEY")
	if cfg.Jira.EncryptionKey == "" {
		return cfg, errors.New("JIRA_ENCRYPTION_KEY is required")
	}
	if cfg.Jira.Timeout, err = durationEnv("JIRA_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	cfg.Jira.RateLimit = 10
	if v := os.Getenv("JIRA_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return cfg, errors.New("JIRA_RATE_LIMIT must be a positive number")
		}
		cfg.Jira.RateLimit = f
	}

	cfg.HTTP.Addr = os.Getenv("HTTP_ADDR")
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":5000"
	}
	cfg.HTTP.CORSOrigins = []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.HTTP.CORSOrigins = append(cfg.HTTP.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return d, nil
}
