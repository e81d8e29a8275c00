// Package scanner walks directory trees and collects files eligible for
// similarity detection.
//
// # Traversal
//
// The walker keeps an explicit LIFO work-list of pending directories instead
// of recursing, so arbitrarily deep trees never grow the goroutine stack:
//
//	Walk() starts
//	    │
//	    ├──► push every root (each counts as a checked folder)
//	    │
//	    └──► while work-list not empty:
//	             ├──► ctx done? → ErrStopped (partial results discarded)
//	             ├──► pop directory, list child names (sorted)
//	             └──► for each child:
//	                      ├──► directory → count, filter, push
//	                      ├──► regular file → extension/size/pattern checks → FileEntry
//	                      └──► anything else → ignored "other"
//
// # Failure Policy
//
// Nothing short of cancellation aborts a walk. An unreadable directory or an
// entry whose metadata cannot be read is recorded as a warning and skipped.
// Names that are not valid UTF-8 are skipped silently.
package scanner

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/ivoronin/simdog/internal/pathfilter"
	"github.com/ivoronin/simdog/internal/progress"
	"github.com/ivoronin/simdog/internal/types"
)

// ErrStopped is returned by Walk when the context is done before the
// work-list is exhausted.
var ErrStopped = errors.New("scan stopped")

// initialCapacity sizes the work-list for typical trees without early regrowth.
const initialCapacity = 2048

// Options controls which entries are collected.
type Options struct {
	Recursive  bool     // Descend into subdirectories
	MinSize    uint64   // Files smaller than this are ignored
	Extensions []string // Allowed extensions (case-insensitive, with or without dot); empty allows all
}

// Result is the output of a completed walk.
type Result struct {
	Entries  []*types.FileEntry
	Info     types.Info
	Messages types.Messages
}

// Walker collects eligible files below a set of root directories.
//
// A Walker holds only immutable configuration; every Walk call starts from
// fresh counters and may be repeated.
type Walker struct {
	fs         afero.Fs
	roots      []string
	opts       Options
	extensions []string // normalized: lower-case, leading dot
	filter     *pathfilter.Filter
	logger     *log.Logger
	bar        *progress.Bar
}

// New creates a Walker. A nil filter excludes nothing, a nil logger discards
// output and a nil bar disables progress display.
func New(fsys afero.Fs, roots []string, opts Options, filter *pathfilter.Filter, logger *log.Logger, bar *progress.Bar) *Walker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if bar == nil {
		bar = progress.New(false, -1)
	}
	return &Walker{
		fs:         fsys,
		roots:      roots,
		opts:       opts,
		extensions: normalizeExtensions(opts.Extensions),
		filter:     filter,
		logger:     logger,
		bar:        bar,
	}
}

// normalizeExtensions lower-cases extensions and prefixes them with a dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// walk is the mutable state of a single Walk call.
type walk struct {
	*Walker
	pending []string
	result  Result
}

// Walk traverses all roots and returns the eligible files.
// It polls ctx once per directory; on cancellation it returns ErrStopped and
// no result.
func (w *Walker) Walk(ctx context.Context) (*Result, error) {
	st := &walk{Walker: w, pending: make([]string, 0, initialCapacity)}

	st.pending = append(st.pending, w.roots...)
	st.result.Info.CheckedFolders += len(w.roots)

	for len(st.pending) > 0 {
		if ctx.Err() != nil {
			return nil, ErrStopped
		}

		dir := st.pending[len(st.pending)-1]
		st.pending = st.pending[:len(st.pending)-1]

		st.expand(dir)
		w.bar.Describe(st.result.Info)
	}

	return &st.result, nil
}

// expand lists one directory and processes its direct children.
func (st *walk) expand(dir string) {
	names, err := st.readDirNames(dir)
	if err != nil {
		st.warn("Cannot open dir %s: %v", dir, err)
		return
	}

	for _, name := range names {
		if !utf8.ValidString(name) {
			continue
		}
		path := filepath.Join(dir, name)

		info, err := st.lstat(path)
		if err != nil {
			st.warn("Cannot read metadata of %s: %v", path, err)
			continue
		}

		switch {
		case info.IsDir():
			st.processDir(path)
		case info.Mode().IsRegular():
			st.processFile(path, name, info)
		default:
			// Symlinks, sockets, devices: never followed or opened
			st.result.Info.IgnoredOther++
		}
	}
}

// processDir counts a child directory and queues it when allowed.
func (st *walk) processDir(path string) {
	if !st.opts.Recursive {
		st.result.Info.CheckedFolders++
		return
	}
	if st.filter.IsExcluded(path) {
		return
	}
	st.result.Info.CheckedFolders++
	st.pending = append(st.pending, path)
}

// processFile applies the eligibility checks and emits a FileEntry.
func (st *walk) processFile(path, name string, info fs.FileInfo) {
	if !st.allowedExtension(strings.ToLower(name)) {
		st.result.Info.IgnoredFiles++
		return
	}

	size := uint64(max(info.Size(), 0))
	if size < st.opts.MinSize {
		st.result.Info.IgnoredFiles++
		return
	}

	if st.filter.IsExcludedByPattern(path) {
		return
	}

	modTime := info.ModTime()
	if modTime.IsZero() {
		st.warn("Unable to get modification date from file %s", path)
		return
	}
	var modifiedAt uint64
	if modTime.Before(time.Unix(0, 0)) {
		st.warn("File %s seems to be modified before Unix Epoch", path)
	} else {
		modifiedAt = uint64(modTime.Unix())
	}

	st.result.Entries = append(st.result.Entries, &types.FileEntry{
		Path:       path,
		Size:       size,
		ModifiedAt: modifiedAt,
	})
	st.result.Info.CheckedFiles++
}

// allowedExtension reports whether a lower-cased file name passes the
// extension filter.
func (st *walk) allowedExtension(lowerName string) bool {
	if len(st.extensions) == 0 {
		return true
	}
	for _, ext := range st.extensions {
		if strings.HasSuffix(lowerName, ext) {
			return true
		}
	}
	return false
}

// readDirNames returns the names of the entries in dir, sorted.
func (st *walk) readDirNames(dir string) ([]string, error) {
	f, err := st.fs.Open(dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// lstat stats path without following symlinks when the filesystem allows it.
func (st *walk) lstat(path string) (os.FileInfo, error) {
	if l, ok := st.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return st.fs.Stat(path)
}

// warn records a warning and logs it.
func (st *walk) warn(format string, args ...any) {
	st.result.Messages.Warn(format, args...)
	st.logger.Warnf(format, args...)
}
