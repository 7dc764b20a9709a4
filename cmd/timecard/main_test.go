package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecard/internal/overlay"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "login", "logout", "overlay"})
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestLogout_RemovesCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, overlay.SaveCredentials(path, overlay.Credentials{Server: "http://x"}))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"logout", "--credentials", path})
	require.NoError(t, root.Execute())

	_, err := overlay.LoadCredentials(path)
	assert.ErrorIs(t, err, overlay.ErrNoCredentials)
}

func TestOverlay_RequiresLogin(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"overlay", "--credentials", filepath.Join(t.TempDir(), "missing.yaml")})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestMigrate_SQLite(t *testing.T) {
	t.Setenv("TIMECARD_DB_DRIVER", "sqlite3")
	t.Setenv("TIMECARD_DB_DSN", filepath.Join(t.TempDir(), "timecard.db"))
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("JIRA_ENCRYPTION_KEY", "a2V5")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	require.NoError(t, root.Execute())

	root = newRootCmd()
	root.SetArgs([]string{"migrate", "--reset", "--yes"})
	require.NoError(t, root.Execute())
}
