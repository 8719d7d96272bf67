package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  id: client-id
  secret: client-secret
scopes: [chat:read]
access_token: abc
bot_nick: tctkbot
channel: somechannel
raffle:
  join_command: "!join"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadFrom_File(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "client-id", cfg.App.ID)
	assert.Equal(t, []string{"chat:read"}, cfg.Scopes)
	assert.Equal(t, "somechannel", cfg.Channel)
	assert.True(t, cfg.HasTokens())
	assert.NoError(t, cfg.ValidateChat())

	// unset template fields keep their defaults
	assert.Equal(t, "!join", cfg.Raffle.JoinCommand)
	assert.Equal(t, "horse_person00", cfg.Raffle.BotUsername)
	assert.Equal(t, "!blastin", cfg.Responder.TriggerText)
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "thestreameast", cfg.Channel)
	assert.False(t, cfg.HasTokens())
	assert.Error(t, cfg.ValidateChat())
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "app: [unterminated")
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_Environment(t *testing.T) {
	t.Setenv("ACTIVITY_DIR", "/tmp/activity")
	t.Setenv("ACTIVITY_FLUSH_EVERY", "30s")
	t.Setenv("ACTIVITY_MAX_FILE_SIZE_BYTES", "1024")
	t.Setenv("ACTIVITY_REDACT_FIELDS", "email,ip")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/activity", cfg.ActivityDir)
	assert.Equal(t, 30*time.Second, cfg.FlushEvery)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
	assert.Equal(t, []string{"email", "ip"}, cfg.RedactFields)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9091", cfg.AdminAddr)
}

func TestLoadFrom_DefaultActivityDir(t *testing.T) {
	t.Setenv("ACTIVITY_DIR", "")
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultActivityDir(), cfg.ActivityDir)
	assert.Equal(t, time.Minute, cfg.FlushEvery)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxFileSize)
}

func TestPersistWithAndBackup(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	backup, err := cfg.Backup()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "config.back"), backup)

	require.NoError(t, cfg.PersistWith(func(f *File) {
		f.AccessToken = "new-access"
		f.RefreshToken = "new-refresh"
	}))

	reloaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "new-access", reloaded.AccessToken)
	assert.Equal(t, "new-refresh", reloaded.RefreshToken)
	assert.Equal(t, "client-secret", reloaded.App.Secret)

	old, err := LoadFrom(backup)
	require.NoError(t, err)
	assert.Equal(t, "abc", old.AccessToken)
}
