// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// New returns a migrated store backed by a file in t.TempDir.
func New(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(store.SQLite, filepath.Join(t.TempDir(), "smells.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}
