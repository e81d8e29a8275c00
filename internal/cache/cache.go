// Package cache persists fingerprints between scans.
package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/simdog/internal/fingerprint"
	"github.com/ivoronin/simdog/internal/types"
)

const bucketName = "fingerprints"

// Cache stores fingerprints in BoltDB keyed by hasher, path, size and mtime.
// It is self-cleaning: each run writes a fresh database and only entries
// looked up or stored during the run survive the swap on Close.
type Cache struct {
	readDB  *bolt.DB // Previous run (read-only)
	writeDB *bolt.DB // This run - BoltDB locks this file
	path    string
	enabled bool
}

// Open opens the previous cache for reading and creates a new one for writing.
// An empty path returns a disabled cache whose methods are no-ops.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}

	if _, statErr := os.Stat(path); statErr == nil {
		db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
		if err == nil {
			c.readDB = db
		}
		// An unreadable previous cache only costs a cold run
	}

	var err error
	c.writeDB, err = bolt.Open(path+".new", 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Enabled reports whether the cache is backed by a file.
func (c *Cache) Enabled() bool { return c != nil && c.enabled }

// Close closes both databases and renames the new one over the old one.
// The rename only happens when the write database closed cleanly.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
		c.readDB = nil
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else if err := os.Rename(c.path+".new", c.path); err != nil {
			errs = append(errs, err)
		}
		c.writeDB = nil
	}
	return errors.Join(errs...)
}

const keyVersion byte = 1 // Increment when the key layout changes

// makeKey builds the lookup key.
// Key = ver(1) + hasher + NUL + path + NUL + size(8) + mtime(8)
func makeKey(hasher string, e *types.FileEntry) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(hasher)
	buf.WriteByte(0)
	buf.WriteString(e.Path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, e.Size)
	_ = binary.Write(buf, binary.BigEndian, e.ModifiedAt)
	return buf.Bytes()
}

// Lookup returns the cached fingerprint for e, if any. A hit is copied into
// the new database so it survives this run.
func (c *Cache) Lookup(hasher string, e *types.FileEntry) (types.Key, bool, error) {
	if !c.Enabled() || c.readDB == nil {
		return "", false, nil
	}

	var key types.Key
	var found bool
	err := c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if data := b.Get(makeKey(hasher, e)); data != nil {
			key, found = string(data), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}
	if !found {
		return "", false, nil
	}

	if err := c.Store(hasher, e, key); err != nil {
		return key, true, err
	}
	return key, true, nil
}

// Store saves the fingerprint of e to the new database.
func (c *Cache) Store(hasher string, e *types.FileEntry, key types.Key) error {
	if !c.Enabled() || c.writeDB == nil {
		return nil
	}
	err := c.writeDB.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(makeKey(hasher, e), []byte(key))
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// cachingHasher consults the cache before delegating to the wrapped hasher.
type cachingHasher struct {
	next  fingerprint.Hasher
	cache *Cache
}

// Wrap returns a hasher that serves fingerprints from c when possible and
// records freshly computed ones. A disabled cache returns h unchanged.
func Wrap(h fingerprint.Hasher, c *Cache) fingerprint.Hasher {
	if !c.Enabled() {
		return h
	}
	return &cachingHasher{next: h, cache: c}
}

func (h *cachingHasher) Name() string { return h.next.Name() }

func (h *cachingHasher) Hash(e *types.FileEntry) (types.Key, error) {
	if key, ok, err := h.cache.Lookup(h.next.Name(), e); err == nil && ok {
		return key, nil
	}
	key, err := h.next.Hash(e)
	if err != nil {
		return "", err
	}
	// A failed store only costs a recomputation next run
	_ = h.cache.Store(h.next.Name(), e, key)
	return key, nil
}
