package testfs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// -----------------------------------------------------------------------------
// Sow Operations - Create filesystem from a FileTree
// -----------------------------------------------------------------------------

// SowFileTree creates tree under root on fsys.
func SowFileTree(fsys afero.Fs, root string, tree FileTree) error {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	for _, d := range tree.Dirs {
		if err := fsys.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", d, err)
		}
	}
	for _, f := range tree.Files {
		if err := sowFile(fsys, root, f); err != nil {
			return err
		}
	}
	return sowSymlinks(fsys, root, tree.Symlinks)
}

// SowFromReader reads a FileTree JSON from the reader and creates it.
func SowFromReader(r io.Reader, fsys afero.Fs, root string) error {
	var tree FileTree
	if err := json.NewDecoder(r).Decode(&tree); err != nil {
		return fmt.Errorf("decode tree: %w", err)
	}
	return SowFileTree(fsys, root, tree)
}

// sowFile writes one copy of the content per path.
func sowFile(fsys afero.Fs, root string, f File) error {
	for _, p := range f.Path {
		path := filepath.Join(root, p)
		if err := writeChunkedFile(fsys, path, f.Chunks); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if !f.ModTime.IsZero() {
			if err := fsys.Chtimes(path, f.ModTime, f.ModTime); err != nil {
				return fmt.Errorf("chtimes %s: %w", path, err)
			}
		}
	}
	return nil
}

// writeChunkedFile streams content to fsys.
func writeChunkedFile(fsys afero.Fs, path string, chunks []Chunk) (err error) {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, c := range chunks {
		if err := writeChunk(f, c); err != nil {
			return err
		}
	}
	return nil
}

// writeChunk writes a single chunk in bounded buffers.
func writeChunk(w io.Writer, c Chunk) error {
	const maxBufSize = 1 << 20 // 1MiB max buffer

	size, err := humanize.ParseBytes(c.Size)
	if err != nil {
		return fmt.Errorf("parse chunk size %q: %w", c.Size, err)
	}

	bufSize := min(int(size), maxBufSize)

	var rng *rand.Rand
	buf := bytes.Repeat([]byte{byte(c.Pattern)}, bufSize)
	if c.Seed != 0 {
		rng = rand.New(rand.NewPCG(c.Seed, c.Seed))
	}

	remaining := size
	for remaining > 0 {
		n := min(remaining, uint64(len(buf)))
		if rng != nil {
			for i := range buf[:n] {
				buf[i] = byte(rng.Uint32())
			}
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// sowSymlinks creates symlinks when fsys supports them.
func sowSymlinks(fsys afero.Fs, root string, symlinks []Symlink) error {
	if len(symlinks) == 0 {
		return nil
	}
	linker, ok := fsys.(afero.Linker)
	if !ok {
		return fmt.Errorf("%s does not support symlinks", fsys.Name())
	}
	for _, sym := range symlinks {
		link := filepath.Join(root, sym.Path)
		if err := fsys.MkdirAll(filepath.Dir(link), 0o755); err != nil {
			return err
		}
		if err := linker.SymlinkIfPossible(sym.Target, link); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", link, sym.Target, err)
		}
	}
	return nil
}
