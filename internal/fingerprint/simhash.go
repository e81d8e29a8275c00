package fingerprint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/ivoronin/simdog/internal/types"
)

const (
	shingleSize = 4
	hashBits    = 64
)

// SimHash fingerprints files with a 64-bit Charikar simhash over overlapping
// 4-byte shingles. The key is rendered as 64 '0'/'1' characters, most
// significant bit first, so both Hamming and Levenshtein distances between
// keys count differing bits.
type SimHash struct {
	fs afero.Fs
}

// NewSimHash creates a simhash hasher reading through fsys.
func NewSimHash(fsys afero.Fs) *SimHash { return &SimHash{fs: fsys} }

// Name returns "simhash".
func (h *SimHash) Name() string { return "simhash" }

// Hash returns the simhash key of the file content.
func (h *SimHash) Hash(e *types.FileEntry) (types.Key, error) {
	f, err := h.fs.Open(e.Path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	v, err := Sum(bufio.NewReaderSize(f, blockSize))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", e.Path, err)
	}
	return Format(v), nil
}

// Sum computes the simhash of everything r yields. Content shorter than one
// shingle is hashed as a single shingle; empty content yields 0.
func Sum(r io.ByteReader) (uint64, error) {
	var weights [hashBits]int
	var window [shingleSize]byte
	n := 0

	for {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		copy(window[:], window[1:])
		window[shingleSize-1] = b
		n++
		if n >= shingleSize {
			accumulate(&weights, xxhash.Sum64(window[:]))
		}
	}

	if n > 0 && n < shingleSize {
		accumulate(&weights, xxhash.Sum64(window[shingleSize-n:]))
	}

	var v uint64
	for i, w := range weights {
		if w > 0 {
			v |= 1 << uint(i)
		}
	}
	return v, nil
}

func accumulate(weights *[hashBits]int, h uint64) {
	for i := range weights {
		if h&(1<<uint(i)) != 0 {
			weights[i]++
		} else {
			weights[i]--
		}
	}
}

// Format renders v as a 64-character bit string.
func Format(v uint64) types.Key {
	return fmt.Sprintf("%064b", v)
}

// Distance returns the number of differing bits between two simhash values.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
