// Package screener groups scanned files by exact size.
//
// # Overview
//
// Files of different sizes cannot have identical content, so bucketing by
// size is the cheap first filter ahead of any fingerprinting:
//
//	Input: []*types.FileEntry (walker output)
//	    │
//	    ├──► Insert: append each entry under its size
//	    │
//	    ├──► Prune: drop buckets with fewer than 2 entries,
//	    │          account duplicates, groups and lost space
//	    │
//	    └──► Output: retained entries / sorted candidate groups
//
// The screener never decides similarity; it only decides which entries are
// worth comparing further. No I/O, single-threaded.
package screener

import (
	"maps"
	"slices"

	"github.com/ivoronin/simdog/internal/types"
)

// Buckets maps an exact file size to the entries sharing it.
type Buckets struct {
	bySize map[uint64][]*types.FileEntry
}

// New creates an empty bucket index.
func New() *Buckets {
	return &Buckets{bySize: make(map[uint64][]*types.FileEntry)}
}

// FromEntries builds a bucket index from a list of entries.
func FromEntries(entries []*types.FileEntry) *Buckets {
	b := New()
	for _, e := range entries {
		b.Insert(e)
	}
	return b
}

// Insert appends an entry to the bucket for its size.
func (b *Buckets) Insert(e *types.FileEntry) {
	b.bySize[e.Size] = append(b.bySize[e.Size], e)
}

// Prune keeps only buckets holding at least two entries and records, for each
// retained bucket, (n-1) duplicate candidates, one group and size*(n-1) bytes
// of potentially lost space in info. The duplicate counters in info are
// overwritten, not accumulated.
func (b *Buckets) Prune(info *types.Info) {
	info.DuplicatedBySize = 0
	info.GroupsBySize = 0
	info.LostSpaceBySize = 0

	for size, entries := range b.bySize {
		if len(entries) < 2 {
			delete(b.bySize, size)
			continue
		}
		info.DuplicatedBySize += len(entries) - 1
		info.GroupsBySize++
	}
	info.LostSpaceBySize = b.LostSpace()
}

// Len returns the number of buckets.
func (b *Buckets) Len() int { return len(b.bySize) }

// Sizes returns the bucket sizes in ascending order.
func (b *Buckets) Sizes() []uint64 {
	return slices.Sorted(maps.Keys(b.bySize))
}

// Bucket returns the entries of one size.
func (b *Buckets) Bucket(size uint64) []*types.FileEntry {
	return b.bySize[size]
}

// Entries returns every entry held, ordered by size and then by path.
func (b *Buckets) Entries() []*types.FileEntry {
	var out []*types.FileEntry
	for _, size := range b.Sizes() {
		out = append(out, types.NewEntryList(b.Bucket(size)).Items()...)
	}
	return out
}

// LostSpace returns the sum of size*(n-1) over the current buckets.
func (b *Buckets) LostSpace() uint64 {
	var total uint64
	for size, entries := range b.bySize {
		if len(entries) > 1 {
			total += size * uint64(len(entries)-1)
		}
	}
	return total
}
