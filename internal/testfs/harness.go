package testfs

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/afero"

	"github.com/ivoronin/simdog/internal/types"
)

// -----------------------------------------------------------------------------
// Harness - Test API
// -----------------------------------------------------------------------------

// Harness owns a sown FileTree and checks scan results against it.
type Harness struct {
	t    *testing.T
	fs   afero.Fs
	root string
}

// New sows given into t.TempDir() on the OS filesystem.
func New(t *testing.T, given FileTree) *Harness {
	t.Helper()
	return sow(t, afero.NewOsFs(), t.TempDir(), given)
}

// NewMem sows given under /data on an in-memory filesystem.
func NewMem(t *testing.T, given FileTree) *Harness {
	t.Helper()
	return sow(t, afero.NewMemMapFs(), "/data", given)
}

func sow(t *testing.T, fsys afero.Fs, root string, given FileTree) *Harness {
	t.Helper()
	if err := SowFileTree(fsys, root, given); err != nil {
		t.Fatalf("failed to setup files: %v", err)
	}
	return &Harness{t: t, fs: fsys, root: root}
}

// Root returns the directory the tree was sown into.
func (h *Harness) Root() string { return h.root }

// Fs returns the filesystem the tree was sown onto.
func (h *Harness) Fs() afero.Fs { return h.fs }

// Path joins rel onto the root.
func (h *Harness) Path(rel string) string { return filepath.Join(h.root, rel) }

// Relative converts the groups into sorted lists of root-relative paths.
func (h *Harness) Relative(groups types.Groups) [][]string {
	h.t.Helper()
	out := make([][]string, 0, groups.Len())
	for _, g := range groups.Items() {
		paths := make([]string, 0, g.Entries.Len())
		for _, e := range g.Entries.Items() {
			rel, err := filepath.Rel(h.root, e.Path)
			if err != nil {
				h.t.Fatalf("path %s outside root %s", e.Path, h.root)
			}
			paths = append(paths, filepath.ToSlash(rel))
		}
		slices.Sort(paths)
		out = append(out, paths)
	}
	slices.SortFunc(out, func(a, b []string) int { return slices.Compare(a, b) })
	return out
}

// AssertGroups fails the test unless groups hold exactly the expected
// root-relative paths. Order of groups and members is ignored.
func (h *Harness) AssertGroups(groups types.Groups, expected [][]string) {
	h.t.Helper()

	want := make([][]string, 0, len(expected))
	for _, g := range expected {
		g = slices.Clone(g)
		slices.Sort(g)
		want = append(want, g)
	}
	slices.SortFunc(want, func(a, b []string) int { return slices.Compare(a, b) })

	got := h.Relative(groups)
	if !slices.EqualFunc(got, want, slices.Equal[[]string]) {
		h.t.Errorf("groups mismatch:\n got: %v\nwant: %v", got, want)
	}
}
