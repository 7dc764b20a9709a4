// Package overlay is the terminal client that shows elapsed time for open
// time records.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ErrNoCredentials means the user has not logged in on this machine.
var ErrNoCredentials = errors.New("overlay: not logged in")

// Credentials is the client config file, ~/.timecard/client.yaml by default.
type Credentials struct {
	Server       string `yaml:"api_base"`
	Username     string `yaml:"username,omitempty"`
	AccessToken  string `yaml:"access_token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`

	// PollInterval is how often the overlay refreshes; zero means 1s.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	// LastRecordID is the record the overlay last focused.
	LastRecordID int64 `yaml:"last_record_id,omitempty"`
}

// DefaultCredentialsPath returns ~/.timecard/client.yaml.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".timecard", "client.yaml"), nil
}

// LoadCredentials reads path. A missing file yields ErrNoCredentials.
func LoadCredentials(path string) (Credentials, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// SaveCredentials writes c to path with owner-only permissions, replacing
// the file atomically.
func SaveCredentials(path string, c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".client-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RemoveCredentials deletes path. A missing file is not an error.
func RemoveCredentials(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WatchCredentials calls onChange with the new contents whenever another
// process rewrites path, until ctx is done. The parent directory is watched
// so atomic replacements are seen.
func WatchCredentials(ctx context.Context, path string, log *slog.Logger, onChange func(Credentials)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watcher.Add: %w", err)
	}

	go func() {
		defer watcher.Close()
		var lastRead time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				// react at most once per 100ms
				if time.Since(lastRead) < 100*time.Millisecond {
					continue
				}
				lastRead = time.Now()
				c, err := LoadCredentials(path)
				if err != nil {
					log.Debug("credentials reload failed", slog.String("error", err.Error()))
					continue
				}
				onChange(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("credentials watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}
