// Package types provides shared types used across the simdog codebase.
package types

import (
	"cmp"
	"slices"
)

// FileEntry describes one eligible regular file found during a scan.
// Entries are never modified after the walker emits them.
type FileEntry struct {
	Path       string
	Size       uint64
	ModifiedAt uint64 // Unix seconds, 0 when the mtime predates the epoch
}

// Key is an opaque fingerprint produced by a hasher.
type Key = string

// Sorted is an ordered collection that keeps its items sorted by a key function.
type Sorted[T any, K cmp.Ordered] struct {
	items []T
}

// NewSorted copies items and sorts the copy by keyFunc.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// First returns the item with the smallest key, or the zero value if empty.
func (s Sorted[T, K]) First() T {
	if len(s.items) == 0 {
		var zero T
		return zero
	}
	return s.items[0]
}

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }

// EntryList is a set of file entries sorted by path.
type EntryList = Sorted[*FileEntry, string]

// NewEntryList creates an EntryList sorted by path.
func NewEntryList(entries []*FileEntry) EntryList {
	return NewSorted(entries, func(e *FileEntry) string { return e.Path })
}

// Group is a cluster of files whose fingerprints are within the scan radius
// of the seed fingerprint Key.
type Group struct {
	Key     Key
	Entries EntryList
}

// Groups is a list of groups sorted by the path of each group's first entry.
type Groups = Sorted[Group, string]

// NewGroups creates Groups sorted by first entry path.
func NewGroups(groups []Group) Groups {
	return NewSorted(groups, func(g Group) string { return g.Entries.First().Path })
}
