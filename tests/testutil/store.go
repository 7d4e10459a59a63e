package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nhle/registry-portal/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return openStore(t, ":memory:")
}

// NewSharedStores opens n SQLiteStore handles on one temporary database file,
// the way several client windows share the slot file.
func NewSharedStores(t *testing.T, n int) []*store.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "portal.db")
	stores := make([]*store.SQLiteStore, 0, n)
	for i := 0; i < n; i++ {
		stores = append(stores, openStore(t, path))
	}
	return stores
}

func openStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
