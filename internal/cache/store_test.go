package cache_test

import (
	"context"
	"path/filepath"
	"testing"

	"recsync/internal/cache"
)

func mustOpen(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.OpenPath(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	if err := store.Put(ctx, "pending/tx-1", "1;INSERT;contacts;0;0;0;0;"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "pending/tx-1")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if value != "1;INSERT;contacts;0;0;0;0;" {
		t.Fatalf("Get returned %q", value)
	}

	if err := store.Put(ctx, "pending/tx-1", "updated"); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	value, _, _ = store.Get(ctx, "pending/tx-1")
	if value != "updated" {
		t.Fatalf("overwrite returned %q", value)
	}

	if err := store.Delete(ctx, "pending/tx-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "pending/tx-1"); ok {
		t.Fatal("entry should be gone after Delete")
	}
	if err := store.Delete(ctx, "pending/tx-1"); err != nil {
		t.Fatalf("Delete of missing key must not fail: %v", err)
	}
}

func TestListPrefix(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	seed := map[string]string{
		"pending/tx-1":   "a",
		"pending/tx-2":   "b",
		"pending/tx-max": "2",
		"done/tx-3":      "c",
	}
	for key, value := range seed {
		if err := store.Put(ctx, key, value); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	entries, err := store.ListPrefix(ctx, "pending/")
	if err != nil {
		t.Fatalf("ListPrefix failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ListPrefix returned %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key > entries[i].Key {
			t.Fatalf("entries not ordered: %q > %q", entries[i-1].Key, entries[i].Key)
		}
	}

	count, err := store.CountPrefix(ctx, "done/")
	if err != nil || count != 1 {
		t.Fatalf("CountPrefix = %d, %v", count, err)
	}
}

func TestDeletePrefix(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	for _, key := range []string{"failed/tx-1", "failed/tx-2", "done/tx-5"} {
		if err := store.Put(ctx, key, "x"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	removed, err := store.DeletePrefix(ctx, "failed/")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d entries, want 2", removed)
	}
	if _, ok, _ := store.Get(ctx, "done/tx-5"); !ok {
		t.Fatal("unrelated namespace must survive")
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	ctx := context.Background()

	store, err := cache.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	if err := store.Put(ctx, "pending/tx-max", "41"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := cache.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	value, ok, err := reopened.Get(ctx, "pending/tx-max")
	if err != nil || !ok || value != "41" {
		t.Fatalf("Get after reopen = %q ok=%v err=%v", value, ok, err)
	}
}
