package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pokerforagents.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, 30_000, cfg.Defaults.ActionTimeoutMS)
	assert.Equal(t, 30*time.Minute, cfg.SessionWindow())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigParsesHCL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server {
  address    = "0.0.0.0"
  port       = 9000
  log_level  = "debug"
  db_path    = "/tmp/poker.db"
  admin_keys = ["key_admin"]
}

defaults {
  action_timeout_ms  = 10000
  next_hand_delay_ms = 500
  grace_timeout_ms   = 30000
  session_window_min = 10
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, []string{"key_admin"}, cfg.Server.AdminKeys)
	assert.Equal(t, 10000, cfg.Defaults.ActionTimeoutMS)
	assert.Equal(t, 500*time.Millisecond, cfg.NextHandDelay())
	assert.Equal(t, 30*time.Second, cfg.GraceTimeout())
	assert.Equal(t, 10*time.Minute, cfg.SessionWindow())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigAppliesDefaultsToMissingFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server {
  port = 9000
}

defaults {}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Server.Address)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 30_000, cfg.Defaults.ActionTimeoutMS)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("POKERFORAGENTS_ADDR", "10.0.0.1:7777")
	t.Setenv("POKERFORAGENTS_ADMIN_KEYS", "key_a,key_b")
	t.Setenv("POKERFORAGENTS_ACTION_TIMEOUT_MS", "5000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:7777", cfg.Addr())
	assert.Equal(t, []string{"key_a", "key_b"}, cfg.Server.AdminKeys)
	assert.Equal(t, 5000, cfg.Defaults.ActionTimeoutMS)
}

func TestLoadConfigEnvRejectsBadValues(t *testing.T) {
	t.Setenv("POKERFORAGENTS_GRACE_TIMEOUT_MS", "soon")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeConfig(t, `server {`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Defaults.ActionTimeoutMS = 10
	assert.Error(t, cfg.Validate())
}
