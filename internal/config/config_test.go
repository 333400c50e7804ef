package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:12580", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Rules.ReconcileDelay)
	assert.Equal(t, "12580", cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("API_BASE_URL", "http://admin.internal:12580/")
	t.Setenv("RULES_RECONCILE_DELAY", "500ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "http://admin.internal:12580", cfg.API.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Rules.ReconcileDelay)
}

func TestLoadFile_SecretResolution(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRISM_ADMIN_TOKEN", "tingly-box-secret")

	configContent := `
api:
  base_url: "http://localhost:8080"
  token: "ENV:PRISM_ADMIN_TOKEN"
rules:
  scenario: claude_code
server:
  api_keys:
    - "ENV:PRISM_ADMIN_TOKEN"
    - "static-key"
`
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tingly-box-secret", cfg.API.Token)
	assert.Equal(t, "claude_code", cfg.Rules.Scenario)
	assert.Equal(t, []string{"tingly-box-secret", "static-key"}, cfg.Server.APIKeys)
}
