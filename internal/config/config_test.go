package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsYAML = `
accounts:
  - id: alice-trakt
    local_user_id: alice
    username: alice
    access_token: secret
    skip_unwatched_import: true
    post_watched_history: true
    excluded_locations:
      - /media/kids
  - id: bob-trakt
    local_user_id: bob
`

func TestLoadAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(accountsYAML), 0600))

	accounts, err := LoadAccounts(path)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, "alice-trakt", accounts[0].ID)
	assert.Equal(t, "alice", accounts[0].LocalUserID)
	assert.Equal(t, "secret", accounts[0].AccessToken)
	assert.True(t, accounts[0].SkipUnwatchedImport)
	assert.True(t, accounts[0].PostWatchedHistory)
	assert.Equal(t, []string{"/media/kids"}, accounts[0].ExcludedLocations)

	assert.False(t, accounts[1].SkipUnwatchedImport)
	assert.Empty(t, accounts[1].ExcludedLocations)
}

func TestLoadAccountsMissingFile(t *testing.T) {
	accounts, err := LoadAccounts(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLoadAccountsRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	data := "accounts:\n  - id: a\n    local_user_id: u\n  - id: a\n    local_user_id: v\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	_, err := LoadAccounts(path)
	assert.ErrorContains(t, err, "duplicate id")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("TRAKT_CLIENT_ID", "id")
	t.Setenv("TRAKT_CLIENT_SECRET", "secret")
	t.Setenv("BATCH_QUIET_PERIOD_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "id", cfg.TraktClientID)
	assert.Equal(t, 250*time.Millisecond, cfg.BatchQuietPeriod)
	assert.Equal(t, 100, cfg.BatchMaxSize)
	assert.Equal(t, filepath.Join(dir, "traktsync.db"), cfg.DatabaseFile)
	assert.Empty(t, cfg.Accounts)
}

func TestLoadRequiresClientID(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("TRAKT_CLIENT_ID", "")
	t.Setenv("TRAKT_CLIENT_SECRET", "secret")

	_, err := Load()
	assert.ErrorContains(t, err, "TRAKT_CLIENT_ID")
}
