// Package testutil provides shared test helpers for setting up cache stores
// and offline directories.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/storage"
)

// TestKV creates a temporary SQLite-backed key-value store that is
// automatically cleaned up.
func TestKV(t *testing.T) kvstore.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "synka-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	kv, err := kvstore.Open(context.Background(), kvstore.Options{
		Backend: kvstore.SQLiteBackend,
		DSN:     dbFile.Name(),
		Table:   "synka_cache",
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// TestOffline creates a temporary offline directory with a storage.FS.
func TestOffline(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
