package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, 420, cfg.Planning.WorkStartMinutes)
	assert.Equal(t, 960, cfg.Planning.WorkEndMinutes)
	assert.True(t, *cfg.Planning.PreserveLocked)
	assert.Equal(t, 660, cfg.Compliance.RestMinutes)
	assert.Equal(t, 5, cfg.Compliance.ConsecutiveWarningFloor)
	assert.Equal(t, 4, cfg.Compliance.AveragingMonths)
	assert.Equal(t, 10, cfg.Webhooks.MaxAttempts)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "carenav.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
planning:
  breakMinutes: 45
  breakAfterMinutes: 300
  preserveLocked: false
compliance:
  weeklyCapHours: 37
webhooks:
  urls: ["https://hooks.example.com/a"]
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEBHOOK_SECRET=from-dotenv\n"), 0o600))
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	// registered for restore, then unset so the .env value applies
	t.Setenv("WEBHOOK_SECRET", "")
	require.NoError(t, os.Unsetenv("WEBHOOK_SECRET"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 45, cfg.Planning.BreakMinutes)
	assert.False(t, *cfg.Planning.PreserveLocked)
	assert.Equal(t, 37.0, cfg.Compliance.WeeklyCapHours)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://hooks.example.com/a"}, cfg.Webhooks.URLs)
	assert.Equal(t, "from-dotenv", cfg.Webhooks.Secret)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("planning:\n  workStartMinutes: 900\n  workEndMinutes: 600\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
