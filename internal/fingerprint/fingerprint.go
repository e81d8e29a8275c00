// Package fingerprint provides content fingerprint functions for scanned files.
//
// A Hasher turns a file into an opaque key. Two hashers ship with simdog:
//
//   - SHA256: hex digest of the whole content; only byte-identical files
//     share a key, so it pairs with radius 0
//   - SimHash: 64-bit similarity hash over 4-byte content shingles; files
//     with mostly shared content get keys a few bits apart
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/ivoronin/simdog/internal/types"
)

// blockSize is the read buffer size (64KB).
const blockSize = 64 * 1024

// Hasher computes the fingerprint of a file.
// Implementations must be deterministic and safe for concurrent use.
type Hasher interface {
	Name() string
	Hash(e *types.FileEntry) (types.Key, error)
}

// SHA256 fingerprints files by their SHA-256 digest.
type SHA256 struct {
	fs afero.Fs
}

// NewSHA256 creates a SHA-256 hasher reading through fsys.
func NewSHA256(fsys afero.Fs) *SHA256 { return &SHA256{fs: fsys} }

// Name returns "sha256".
func (h *SHA256) Name() string { return "sha256" }

// Hash returns the hex-encoded SHA-256 of the file content.
func (h *SHA256) Hash(e *types.FileEntry) (types.Key, error) {
	f, err := h.fs.Open(e.Path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", e.Path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ByName returns the hasher with the given name.
func ByName(name string, fsys afero.Fs) (Hasher, error) {
	switch name {
	case "sha256":
		return NewSHA256(fsys), nil
	case "simhash":
		return NewSimHash(fsys), nil
	default:
		return nil, fmt.Errorf("unknown hasher %q", name)
	}
}
