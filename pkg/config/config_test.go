package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Collector.BatchSize)
	assert.Equal(t, 3, cfg.Collector.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Collector.FetchTimeout.Std())
	assert.Equal(t, time.Second, cfg.Collector.BackoffBase.Std())
	assert.Equal(t, 2*time.Second, cfg.Collector.SourceDelay.Std())
	assert.Equal(t, 1, cfg.Collector.MinContentItems)
	assert.Equal(t, 0.5, cfg.Collector.RequestsPerHost)
	assert.Equal(t, "https://www.googleapis.com/customsearch/v1", cfg.Search.Endpoint)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.NotEmpty(t, cfg.Collector.UserAgent)
	assert.NotEmpty(t, cfg.Logging.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
server:
  addr: ":9090"
collector:
  entities:
    - gpt-4o
    - claude-3.5-sonnet
  batch_size: 5
  fetch_timeout: 10s
  backoff_base: 500ms
  respect_robots: true
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"gpt-4o", "claude-3.5-sonnet"}, cfg.Collector.Entities)
	assert.Equal(t, 5, cfg.Collector.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Collector.FetchTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Collector.BackoffBase.Std())
	assert.True(t, cfg.Collector.RespectRobots)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields still get defaults.
	assert.Equal(t, 3, cfg.Collector.MaxRetries)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "collector: ["))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/atlas")
	t.Setenv("ATLAS_SEARCH_API_KEY", "env-key")
	t.Setenv("ATLAS_SEARCH_ENGINE_ID", "env-cx")
	t.Setenv("ATLAS_SERVER_ADDR", ":7070")

	cfg, err := LoadConfig(writeConfig(t, `
database:
  url: postgres://file-host/atlas
search:
  api_key: file-key
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/atlas", cfg.Database.URL)
	assert.Equal(t, "env-key", cfg.Search.APIKey)
	assert.Equal(t, "env-cx", cfg.Search.EngineID)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte("1m30s"), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	err := yaml.Unmarshal([]byte(`"not a duration"`), &d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}
