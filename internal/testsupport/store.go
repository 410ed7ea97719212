package testsupport

import (
	"testing"
	"time"

	"mediaagent/internal/catalog"
	"mediaagent/internal/config"
	"mediaagent/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewCatalog opens a SQLite-backed catalog with in-memory caches.
func NewCatalog(t testing.TB, cfg *config.Config, host string) (*catalog.Catalog, *store.Store) {
	t.Helper()

	st := MustOpenStore(t, cfg)
	caches := catalog.MemoryCaches(time.Hour, time.Now)
	return catalog.New(st, caches, host), st
}
