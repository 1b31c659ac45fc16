package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.App.FetchTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.PaceInterval)
	assert.Equal(t, "", cfg.Search.BaseURL)
	assert.Equal(t, 9000, cfg.ClickHouse.Port)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9090
  log_level: debug
search:
  base_url: https://search.internal
  pace_interval: 750ms
redis:
  addr: localhost:6379
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "https://search.internal", cfg.Search.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.PaceInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.App.FetchTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  port: 9090\n"), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("SEARCH_PACE_INTERVAL", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, time.Second, cfg.Search.PaceInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
}
