// Package pathfilter decides whether directories and files are excluded from a scan.
//
// Two kinds of rules are supported:
//
//   - excluded directories, matched exactly against a cleaned absolute path
//   - wildcard patterns, matched against the whole path ('*' also crosses
//     path separators, so "*/node_modules/*" excludes any nested tree)
//
// Patterns are compiled once in New. A pattern that does not compile is a
// configuration error, never a per-path failure.
package pathfilter

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// Filter holds compiled exclusion rules. It is safe for concurrent use.
type Filter struct {
	dirs     map[string]struct{}
	patterns []pattern
}

type pattern struct {
	raw string
	g   glob.Glob
}

// New compiles the exclusion rules.
// Empty or whitespace-only patterns are ignored.
func New(excludedDirs, patterns []string) (*Filter, error) {
	f := &Filter{dirs: make(map[string]struct{}, len(excludedDirs))}

	for _, d := range excludedDirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		f.dirs[filepath.Clean(d)] = struct{}{}
	}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, pattern{raw: p, g: g})
	}

	return f, nil
}

// IsExcludedDir reports whether path is one of the excluded directories.
func (f *Filter) IsExcludedDir(path string) bool {
	if f == nil || len(f.dirs) == 0 {
		return false
	}
	_, ok := f.dirs[filepath.Clean(path)]
	return ok
}

// IsExcludedByPattern reports whether any pattern matches path.
func (f *Filter) IsExcludedByPattern(path string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.patterns {
		if p.g.Match(path) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether a directory path is excluded by either rule.
// Patterns are tried against the path with and without a trailing
// separator, so "*/cache/*" prunes the cache directory itself.
func (f *Filter) IsExcluded(path string) bool {
	return f.IsExcludedDir(path) || f.IsExcludedByPattern(path) ||
		f.IsExcludedByPattern(path+string(filepath.Separator))
}

// ExcludedDirs returns the excluded directories in sorted order.
func (f *Filter) ExcludedDirs() []string {
	if f == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(f.dirs))
}

// Patterns returns the source text of the compiled patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.patterns))
	for i, p := range f.patterns {
		out[i] = p.raw
	}
	return out
}
