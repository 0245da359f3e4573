package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "rubricon", cfg.Name)
	assert.Equal(t, 350*time.Millisecond, cfg.ExpandSettle())
	assert.Equal(t, 150*time.Millisecond, cfg.CollapseSettle())
	assert.Equal(t, 200*time.Millisecond, cfg.ApplySettle())
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL())
	assert.Equal(t, 5, cfg.BatchSize())
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Backend.BaseURL, cfg.Backend.BaseURL)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
backend:
  base_url: http://grader.example.com
timing:
  expand_settle_ms: 500
cache:
  ttl: 1h
  batch_size: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://grader.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ExpandSettle())
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 3, cfg.BatchSize())
	// Untouched fields keep defaults.
	assert.Equal(t, 150*time.Millisecond, cfg.CollapseSettle())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RUBRICON_BACKEND_URL", "http://env.example.com")
	t.Setenv("RUBRICON_CACHE_BACKEND", "redis")
	t.Setenv("RUBRICON_TEST_FILE_CAP", "500")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 500, cfg.Sources.TestFileCharCap)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Backend.BaseURL = "http://saved.example.com"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved.example.com", loaded.Backend.BaseURL)
}
