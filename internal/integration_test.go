package internal

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivoronin/simdog/internal/bktree"
	"github.com/ivoronin/simdog/internal/cache"
	"github.com/ivoronin/simdog/internal/engine"
	"github.com/ivoronin/simdog/internal/fingerprint"
	"github.com/ivoronin/simdog/internal/testfs"
	"github.com/ivoronin/simdog/internal/types"
)

// =============================================================================
// Full Pipeline Integration Tests
// =============================================================================

// countingHasher counts calls that reach the wrapped hasher.
type countingHasher struct {
	next  fingerprint.Hasher
	calls atomic.Int64
}

func (h *countingHasher) Name() string { return h.next.Name() }

func (h *countingHasher) Hash(e *types.FileEntry) (types.Key, error) {
	h.calls.Add(1)
	return h.next.Hash(e)
}

// runPipeline scans the harness root with the given hasher and metric.
func runPipeline(t *testing.T, h *testfs.Harness, cfg engine.Config, hasher fingerprint.Hasher, metric bktree.Metric) *engine.Outcome {
	t.Helper()

	cfg.Roots = []string{h.Root()}
	cfg.Recursive = true
	eng := engine.New(
		engine.WithFs(h.Fs()),
		engine.WithHasher(hasher),
		engine.WithMetric(metric),
		engine.WithWorkers(4),
	)
	require.NoError(t, eng.Configure(cfg))

	out, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, engine.StatusCompleted, out.Status)
	return out
}

// TestFullPipelineExactDuplicates groups byte-identical files with SHA256.
func TestFullPipelineExactDuplicates(t *testing.T) {
	h := testfs.New(t, testfs.FileTree{
		Files: []testfs.File{
			{Path: []string{"dup1_a.txt", "sub/dup1_b.txt"}, Chunks: []testfs.Chunk{{Pattern: '1', Size: "1KiB"}}},
			{Path: []string{"dup2_a.txt", "dup2_b.txt", "deep/er/dup2_c.txt"}, Chunks: []testfs.Chunk{{Pattern: '2', Size: "2KiB"}}},
			{Path: []string{"unique.txt"}, Chunks: []testfs.Chunk{{Pattern: 'U', Size: "1KiB"}}},
		},
	})

	out := runPipeline(t, h, engine.Config{}, fingerprint.NewSHA256(h.Fs()), bktree.Hamming{})

	h.AssertGroups(out.Groups, [][]string{
		{"dup1_a.txt", "sub/dup1_b.txt"},
		{"deep/er/dup2_c.txt", "dup2_a.txt", "dup2_b.txt"},
	})
	assert.Equal(t, 6, out.Info.CheckedFiles)
	assert.Equal(t, 6, out.Info.HashedFiles)
	assert.Equal(t, 5, out.Info.GroupedFiles)
	// (3-1) for the 1KiB bucket, which the unique file shares, plus (3-1) for 2KiB
	assert.Equal(t, 4, out.Info.DuplicatedBySize)
	assert.Equal(t, 2, out.Info.GroupsBySize)
}

// TestFullPipelineNearDuplicates finds files that differ in a short tail.
func TestFullPipelineNearDuplicates(t *testing.T) {
	h := testfs.New(t, testfs.FileTree{
		Files: []testfs.File{
			{Path: []string{"photo.raw"}, Chunks: []testfs.Chunk{{Seed: 1, Size: "64KiB"}}},
			{Path: []string{"edited/photo.raw"}, Chunks: []testfs.Chunk{{Seed: 1, Size: "64KiB"}, {Pattern: 'x', Size: "16"}}},
			{Path: []string{"other.raw"}, Chunks: []testfs.Chunk{{Seed: 2, Size: "64KiB"}}},
		},
	})
	simhash := fingerprint.NewSimHash(h.Fs())

	exact := runPipeline(t, h, engine.Config{Radius: 0}, simhash, bktree.Hamming{})
	assert.Equal(t, 0, exact.Groups.Len())

	near := runPipeline(t, h, engine.Config{Radius: 12}, simhash, bktree.Hamming{})
	h.AssertGroups(near.Groups, [][]string{{"edited/photo.raw", "photo.raw"}})

	// Duplicate mode only fingerprints same-size files, so nothing qualifies.
	dup := runPipeline(t, h, engine.Config{Radius: 12, Mode: engine.ModeDuplicate}, simhash, bktree.Hamming{})
	assert.Equal(t, 0, dup.Groups.Len())
	assert.Equal(t, 2, dup.Info.HashedFiles)
}

// TestFullPipelineLevenshtein uses the edit distance over SimHash keys.
func TestFullPipelineLevenshtein(t *testing.T) {
	h := testfs.New(t, testfs.FileTree{
		Files: []testfs.File{
			{Path: []string{"a.bin", "b.bin"}, Chunks: []testfs.Chunk{{Seed: 5, Size: "4KiB"}}},
			{Path: []string{"c.bin"}, Chunks: []testfs.Chunk{{Seed: 6, Size: "4KiB"}}},
		},
	})

	out := runPipeline(t, h, engine.Config{}, fingerprint.NewSimHash(h.Fs()), bktree.Levenshtein{})
	h.AssertGroups(out.Groups, [][]string{{"a.bin", "b.bin"}})
}

// TestFullPipelineFilters combines min size, extensions and exclusions.
func TestFullPipelineFilters(t *testing.T) {
	h := testfs.New(t, testfs.FileTree{
		Files: []testfs.File{
			{Path: []string{"keep/a.jpg", "keep/b.JPG"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "2KiB"}}},
			{Path: []string{"keep/c.png"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "2KiB"}}},
			{Path: []string{"keep/tiny1.jpg", "keep/tiny2.jpg"}, Chunks: []testfs.Chunk{{Pattern: 'T', Size: "10"}}},
			{Path: []string{"cache/a.jpg"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "2KiB"}}},
			{Path: []string{"keep/a.tmp.jpg"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "2KiB"}}},
		},
	})

	out := runPipeline(t, h, engine.Config{
		MinSize:          1024,
		Extensions:       []string{"jpg"},
		ExcludedDirs:     []string{h.Path("cache")},
		ExcludedPatterns: []string{"*.tmp.*"},
	}, fingerprint.NewSHA256(h.Fs()), bktree.Hamming{})

	h.AssertGroups(out.Groups, [][]string{{"keep/a.jpg", "keep/b.JPG"}})
	assert.Equal(t, 3, out.Info.IgnoredFiles, "png plus two tiny files")
}

// TestFullPipelineEmptyScenarios verifies edge cases with nothing to group.
func TestFullPipelineEmptyScenarios(t *testing.T) {
	tests := []struct {
		name string
		tree testfs.FileTree
	}{
		{"empty root", testfs.FileTree{}},
		{"empty dirs only", testfs.FileTree{Dirs: []string{"a", "b/c"}}},
		{"single file", testfs.FileTree{Files: []testfs.File{
			{Path: []string{"only.txt"}, Chunks: []testfs.Chunk{{Pattern: 'S', Size: "1KiB"}}},
		}}},
		{"all unique", testfs.FileTree{Files: []testfs.File{
			{Path: []string{"a"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1KiB"}}},
			{Path: []string{"b"}, Chunks: []testfs.Chunk{{Pattern: 'B', Size: "1KiB"}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testfs.NewMem(t, tt.tree)
			out := runPipeline(t, h, engine.Config{}, fingerprint.NewSHA256(h.Fs()), bktree.Hamming{})
			assert.Equal(t, 0, out.Groups.Len())
		})
	}
}

// =============================================================================
// Fingerprint Cache Integration
// =============================================================================

// TestCachedFingerprintsAreReused runs twice against the same cache file; the
// second run must not read any file.
func TestCachedFingerprintsAreReused(t *testing.T) {
	h := testfs.New(t, testfs.FileTree{
		Files: []testfs.File{
			{Path: []string{"a", "b"}, Chunks: []testfs.Chunk{{Seed: 3, Size: "8KiB"}}},
			{Path: []string{"c"}, Chunks: []testfs.Chunk{{Seed: 4, Size: "8KiB"}}},
		},
	})
	cacheFile := filepath.Join(t.TempDir(), "fingerprints.db")

	run := func() (*engine.Outcome, int64) {
		c, err := cache.Open(cacheFile)
		require.NoError(t, err)
		counter := &countingHasher{next: fingerprint.NewSimHash(h.Fs())}
		out := runPipeline(t, h, engine.Config{}, cache.Wrap(counter, c), bktree.Hamming{})
		require.NoError(t, c.Close())
		return out, counter.calls.Load()
	}

	first, calls := run()
	assert.Equal(t, int64(3), calls)
	h.AssertGroups(first.Groups, [][]string{{"a", "b"}})

	second, calls := run()
	assert.Equal(t, int64(0), calls)
	assert.Equal(t, h.Relative(first.Groups), h.Relative(second.Groups))
}
