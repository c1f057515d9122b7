package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetAndGet(t *testing.T) {
	store := openTestStore(t)
	if err := store.Set("pkg-interface:0xabc", []byte(`{"market":{}}`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	res, err := store.Get("pkg-interface:0xabc", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !res.Hit || res.Stale || !bytes.Equal(res.Value, []byte(`{"market":{}}`)) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGetMiss(t *testing.T) {
	store := openTestStore(t)
	res, err := store.Get("nope", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Hit {
		t.Fatalf("expected miss, got %+v", res)
	}
}

func TestSetOverwrites(t *testing.T) {
	store := openTestStore(t)
	if err := store.Set("k", []byte("one"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("k", []byte("two"), time.Hour); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}
	res, err := store.Get("k", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(res.Value) != "two" {
		t.Fatalf("overwrite lost: %s", res.Value)
	}
}

func TestInvalidate(t *testing.T) {
	store := openTestStore(t)
	if err := store.Set("k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	res, err := store.Get("k", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Hit {
		t.Fatalf("invalidated key still present")
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("nil Close failed: %v", err)
	}
	if err := store.Prune(); err != nil {
		t.Fatalf("nil Prune failed: %v", err)
	}
	if err := store.Invalidate("k"); err != nil {
		t.Fatalf("nil Invalidate failed: %v", err)
	}
}
