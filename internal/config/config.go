// Package config loads and validates rubricon configuration.
// Configuration comes from .rubricon/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all rubricon configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Grading backend service
	Backend BackendConfig `yaml:"backend"`

	// Host grading platform (question hierarchy API)
	Platform PlatformConfig `yaml:"platform"`

	// Browser attachment
	Browser BrowserConfig `yaml:"browser"`

	// UI settle timing for asynchronous page rendering
	Timing TimingConfig `yaml:"timing"`

	// Rubric map cache
	Cache CacheConfig `yaml:"cache"`

	// Submission source handling
	Sources SourcesConfig `yaml:"sources"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the remote grading service.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout string `yaml:"timeout"`
}

// PlatformConfig configures the host grading platform API.
type PlatformConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// BrowserConfig configures attachment to a running Chrome instance.
type BrowserConfig struct {
	ControlURL string `yaml:"control_url"`
	Headless   bool   `yaml:"headless"`
}

// TimingConfig holds the UI settle delays. The defaults are empirical
// constants tuned to the host page's rendering latency; they are
// configurable rather than hard-coded.
type TimingConfig struct {
	ExpandSettleMs   int `yaml:"expand_settle_ms"`
	CollapseSettleMs int `yaml:"collapse_settle_ms"`
	ApplySettleMs    int `yaml:"apply_settle_ms"`
}

// CacheConfig configures the rubric map cache.
type CacheConfig struct {
	Backend   string `yaml:"backend"` // sqlite, redis, memory
	TTL       string `yaml:"ttl"`
	Path      string `yaml:"path"`       // sqlite database path
	RedisAddr string `yaml:"redis_addr"` // redis address
	BatchSize int    `yaml:"batch_size"` // concurrent question fetches per batch
}

// SourcesConfig configures submission source preprocessing.
type SourcesConfig struct {
	TestFileCharCap int `yaml:"test_file_char_cap"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "rubricon",
		Version: "0.3.0",

		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "300s",
		},

		Platform: PlatformConfig{
			BaseURL: "https://www.gradescope.com",
			Timeout: "60s",
		},

		Browser: BrowserConfig{
			Headless: false,
		},

		Timing: TimingConfig{
			ExpandSettleMs:   350,
			CollapseSettleMs: 150,
			ApplySettleMs:    200,
		},

		Cache: CacheConfig{
			Backend:   "sqlite",
			TTL:       "12h",
			Path:      ".rubricon/cache.db",
			RedisAddr: "localhost:6379",
			BatchSize: 5,
		},

		Sources: SourcesConfig{
			TestFileCharCap: 2000,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file is missing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadWorkspace loads the config from the conventional workspace location.
func LoadWorkspace(workspace string) (*Config, error) {
	return Load(filepath.Join(workspace, ".rubricon", "config.yaml"))
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("RUBRICON_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if token := os.Getenv("RUBRICON_BACKEND_TOKEN"); token != "" {
		c.Backend.Token = token
	}
	if url := os.Getenv("RUBRICON_PLATFORM_URL"); url != "" {
		c.Platform.BaseURL = url
	}
	if url := os.Getenv("RUBRICON_CONTROL_URL"); url != "" {
		c.Browser.ControlURL = url
	}
	if backend := os.Getenv("RUBRICON_CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = backend
	}
	if addr := os.Getenv("RUBRICON_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if ttl := os.Getenv("RUBRICON_CACHE_TTL"); ttl != "" {
		c.Cache.TTL = ttl
	}
	if cap := os.Getenv("RUBRICON_TEST_FILE_CAP"); cap != "" {
		if n, err := strconv.Atoi(cap); err == nil && n > 0 {
			c.Sources.TestFileCharCap = n
		}
	}
}

// BackendTimeout returns the grading request timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// PlatformTimeout returns the hierarchy fetch timeout as a duration.
func (c *Config) PlatformTimeout() time.Duration {
	d, err := time.ParseDuration(c.Platform.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// CacheTTL returns the rubric map cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

// ExpandSettle returns the accordion expand settle delay.
func (c *Config) ExpandSettle() time.Duration {
	if c.Timing.ExpandSettleMs <= 0 {
		return 350 * time.Millisecond
	}
	return time.Duration(c.Timing.ExpandSettleMs) * time.Millisecond
}

// CollapseSettle returns the accordion collapse settle delay.
func (c *Config) CollapseSettle() time.Duration {
	if c.Timing.CollapseSettleMs <= 0 {
		return 150 * time.Millisecond
	}
	return time.Duration(c.Timing.CollapseSettleMs) * time.Millisecond
}

// ApplySettle returns the post-click settle delay used by the applier.
func (c *Config) ApplySettle() time.Duration {
	if c.Timing.ApplySettleMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.Timing.ApplySettleMs) * time.Millisecond
}

// BatchSize returns the concurrent fetch batch size.
func (c *Config) BatchSize() int {
	if c.Cache.BatchSize <= 0 {
		return 5
	}
	return c.Cache.BatchSize
}
