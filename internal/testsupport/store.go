package testsupport

import (
	"testing"

	"recsync/internal/cache"
	"recsync/internal/config"
)

// MustOpenStore opens a cache.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(cfg)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
