// Package testfs provides declarative file trees for simdog tests.
//
// A FileTree is sown onto any afero.Fs (MemMapFs for unit-style tests, the
// OS filesystem under t.TempDir() for integration tests) and the groups a
// scan returns are then compared against expected path lists:
//
//	given := testfs.FileTree{
//	    Files: []testfs.File{
//	        {Path: []string{"a.bin", "copy/a.bin"}, Chunks: []testfs.Chunk{{Seed: 1, Size: "8KiB"}}},
//	        {Path: []string{"b.bin"}, Chunks: []testfs.Chunk{{Seed: 1, Size: "8KiB"}, {Pattern: 'x', Size: "16"}}},
//	        {Path: []string{"other.bin"}, Chunks: []testfs.Chunk{{Seed: 2, Size: "8KiB"}}},
//	    },
//	}
//	h := testfs.New(t, given)
//	out := runScan(h.Root(), ...)
//	h.AssertGroups(out.Groups, [][]string{{"a.bin", "b.bin", "copy/a.bin"}})
//
// Directories are created automatically from file paths (mkdir -p semantics).
// All paths are relative to the harness root.
package testfs

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FileTree describes the initial state of a scanned directory.
type FileTree struct {
	// Dirs lists directories to create even when they hold no files.
	Dirs []string `json:"dirs,omitempty"`

	// Files lists regular files.
	Files []File `json:"files,omitempty"`

	// Symlinks are created only on filesystems that support them.
	Symlinks []Symlink `json:"symlinks,omitempty"`
}

// File defines one or more regular files with identical content.
//
// Every path in Path receives its own copy of the content built from Chunks.
// Same chunks = same content = same fingerprint.
type File struct {
	// Path contains one or more paths relative to the root.
	Path []string `json:"path"`

	// Chunks specifies file content as a sequence of filled regions.
	Chunks []Chunk `json:"chunks,omitempty"`

	// ModTime overrides the modification time when non-zero.
	ModTime time.Time `json:"modTime,omitzero"`
}

// Chunk defines a region of file content.
//
// A chunk with a non-zero Seed is filled with deterministic pseudo-random
// bytes; otherwise every byte is Pattern. Two files sharing a seeded chunk and
// differing only in a short trailing chunk are near-duplicates for SimHash.
type Chunk struct {
	// Pattern is the fill byte for this chunk region.
	Pattern rune `json:"pattern,omitempty"`

	// Seed selects pseudo-random content when non-zero.
	Seed uint64 `json:"seed,omitempty"`

	// Size accepts humanize units: "16", "1KiB", "1MiB".
	Size string `json:"size"`
}

// TotalSize calculates the sum of all chunk sizes in bytes.
func (f *File) TotalSize() uint64 {
	var total uint64
	for _, c := range f.Chunks {
		size, _ := humanize.ParseBytes(c.Size)
		total += size
	}
	return total
}

// Symlink defines a symbolic link.
type Symlink struct {
	// Path is relative to the root.
	Path string `json:"path"`

	// Target is stored verbatim.
	Target string `json:"target"`
}
