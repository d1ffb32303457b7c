package testsupport

import (
	"path/filepath"
	"testing"

	"recsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.URL = "http://sync.test"
	cfg.Server.UserID = "tester"
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithServerURL overrides the sync server base URL on the test config.
func WithServerURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Server.URL = url
	}
}

// WithMaxBatch overrides the container batch limit on the test config.
func WithMaxBatch(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.MaxBatch = n
	}
}

// WithFailureBackoff overrides the transport backoff, in seconds.
func WithFailureBackoff(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.FailureBackoff = seconds
	}
}
