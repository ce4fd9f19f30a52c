// Package testsupport builds configuration fixtures for command and pipeline tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelrank/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose log directory lives in a per-test temp
// directory. The TMDB key is preset so catalog-backed commands start.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.TMDB.APIKey = "test"
	cfg.Logging.Level = "error"
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTMDBKey sets the TMDB API key on the test config.
func WithTMDBKey(key string) ConfigOption {
	return func(c *config.Config) {
		c.TMDB.APIKey = key
	}
}

// WithTMDBServer points catalog lookups at baseURL.
func WithTMDBServer(baseURL string) ConfigOption {
	return func(c *config.Config) {
		c.TMDB.BaseURL = baseURL
		c.TMDB.RequestsPerSecond = 1000
	}
}

// WithFeedServer points the cinema feed at baseURL and selects cinema.
func WithFeedServer(baseURL, cinema string) ConfigOption {
	return func(c *config.Config) {
		c.Feed.BaseURL = baseURL
		c.Feed.Cinema = cinema
	}
}

// WriteConfig encodes cfg as TOML at path.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
