package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ivoronin/simdog/internal/types"
)

// countingHasher returns a fixed key and counts calls.
type countingHasher struct {
	calls atomic.Int64
	key   types.Key
	err   error
}

func (h *countingHasher) Name() string { return "counting" }

func (h *countingHasher) Hash(*types.FileEntry) (types.Key, error) {
	h.calls.Add(1)
	return h.key, h.err
}

func TestCacheDisabled(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	e := &types.FileEntry{Path: "/test/file", Size: 100, ModifiedAt: 1}
	if err := c.Store("sha256", e, "abc"); err != nil {
		t.Errorf("Store() on disabled cache: %v", err)
	}
	if _, ok, _ := c.Lookup("sha256", e); ok {
		t.Error("Lookup() on disabled cache hit")
	}

	h := &countingHasher{key: "k"}
	if Wrap(h, c) != h {
		t.Error("Wrap() with disabled cache should return the hasher unchanged")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	e := &types.FileEntry{Path: "/photos/a.jpg", Size: 1024, ModifiedAt: 1609459200}

	c1, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c1.Store("simhash", e, "0101"); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	c2, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() second time failed: %v", err)
	}
	defer func() { _ = c2.Close() }()

	key, ok, err := c2.Lookup("simhash", e)
	if err != nil || !ok || key != "0101" {
		t.Errorf("Lookup() = %q, %v, %v; want 0101, true, nil", key, ok, err)
	}

	// Any change in hasher, size or mtime is a miss
	misses := []struct {
		hasher string
		entry  types.FileEntry
	}{
		{"sha256", *e},
		{"simhash", types.FileEntry{Path: e.Path, Size: 2048, ModifiedAt: e.ModifiedAt}},
		{"simhash", types.FileEntry{Path: e.Path, Size: e.Size, ModifiedAt: e.ModifiedAt + 1}},
		{"simhash", types.FileEntry{Path: "/photos/b.jpg", Size: e.Size, ModifiedAt: e.ModifiedAt}},
	}
	for _, m := range misses {
		if _, ok, _ := c2.Lookup(m.hasher, &m.entry); ok {
			t.Errorf("Lookup(%s, %+v) hit, want miss", m.hasher, m.entry)
		}
	}
}

func TestCacheSelfCleaning(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	used := &types.FileEntry{Path: "/used", Size: 1, ModifiedAt: 1}
	stale := &types.FileEntry{Path: "/stale", Size: 1, ModifiedAt: 1}

	c1, _ := Open(cachePath)
	_ = c1.Store("h", used, "u")
	_ = c1.Store("h", stale, "s")
	_ = c1.Close()

	// Second run touches only "used"
	c2, _ := Open(cachePath)
	if _, ok, _ := c2.Lookup("h", used); !ok {
		t.Fatal("expected hit for used entry")
	}
	_ = c2.Close()

	c3, _ := Open(cachePath)
	defer func() { _ = c3.Close() }()
	if _, ok, _ := c3.Lookup("h", used); !ok {
		t.Error("used entry should survive")
	}
	if _, ok, _ := c3.Lookup("h", stale); ok {
		t.Error("stale entry should have been dropped")
	}
}

func TestWrapServesFromCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	e := &types.FileEntry{Path: "/a", Size: 10, ModifiedAt: 5}
	inner := &countingHasher{key: "fp"}

	c1, _ := Open(cachePath)
	key, err := Wrap(inner, c1).Hash(e)
	if err != nil || key != "fp" {
		t.Fatalf("Hash() = %q, %v", key, err)
	}
	_ = c1.Close()

	c2, _ := Open(cachePath)
	defer func() { _ = c2.Close() }()
	key, err = Wrap(inner, c2).Hash(e)
	if err != nil || key != "fp" {
		t.Fatalf("Hash() = %q, %v", key, err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner hasher called %d times, want 1", inner.calls.Load())
	}
}

func TestWrapPropagatesErrors(t *testing.T) {
	c, _ := Open(filepath.Join(t.TempDir(), "cache.db"))
	defer func() { _ = c.Close() }()

	boom := errors.New("boom")
	_, err := Wrap(&countingHasher{err: boom}, c).Hash(&types.FileEntry{Path: "/x"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestCacheCloseRenames(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "sub", "cache.db")
	c, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("cache file missing after Close: %v", err)
	}
	if _, err := os.Stat(cachePath + ".new"); !os.IsNotExist(err) {
		t.Errorf(".new file still present: %v", err)
	}
}
