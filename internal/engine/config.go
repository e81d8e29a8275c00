package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/ivoronin/simdog/internal/pathfilter"
)

// Mode selects which eligible files are fingerprinted.
type Mode int

const (
	// ModeSimilar fingerprints every eligible file.
	ModeSimilar Mode = iota
	// ModeDuplicate fingerprints only files sharing their size with another file.
	ModeDuplicate
)

func (m Mode) String() string {
	switch m {
	case ModeSimilar:
		return "similar"
	case ModeDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "similar" or "duplicate".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "similar", "":
		return ModeSimilar, nil
	case "duplicate", "duplicates":
		return ModeDuplicate, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Config describes what a scan covers. It is validated by Engine.Configure
// and stays fixed until the next Configure call.
type Config struct {
	Roots            []string // Directories to scan
	ExcludedDirs     []string // Directories skipped by exact path
	ExcludedPatterns []string // Wildcard patterns matched against full paths
	Recursive        bool
	MinSize          uint64   // Files smaller than this are ignored
	Extensions       []string // Allowed extensions; empty allows all
	Radius           int      // Maximum fingerprint distance within a group
	Mode             Mode
}

// Configuration errors.
var (
	ErrNoRoots       = errors.New("no directories to scan")
	ErrInvalidRoot   = errors.New("invalid root directory")
	ErrInvalidRadius = errors.New("radius must be non-negative")
)

// prepared is a validated configuration plus its compiled filter.
type prepared struct {
	cfg    Config
	filter *pathfilter.Filter
}

// prepare validates cfg against fsys and normalizes its paths.
func prepare(fsys afero.Fs, cfg Config) (*prepared, error) {
	if cfg.Radius < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, cfg.Radius)
	}
	if cfg.Mode != ModeSimilar && cfg.Mode != ModeDuplicate {
		return nil, fmt.Errorf("unknown mode %v", cfg.Mode)
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidRoot, r, err)
		}
		info, err := fsys.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidRoot, r, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w %q: not a directory", ErrInvalidRoot, r)
		}
		roots = append(roots, abs)
	}

	excluded := make([]string, 0, len(cfg.ExcludedDirs))
	for _, d := range cfg.ExcludedDirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("excluded directory %q: %w", d, err)
		}
		excluded = append(excluded, abs)
	}

	roots, excluded = optimizeDirectories(roots, excluded)
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	filter, err := pathfilter.New(excluded, cfg.ExcludedPatterns)
	if err != nil {
		return nil, fmt.Errorf("excluded patterns: %w", err)
	}

	cfg.Roots = roots
	cfg.ExcludedDirs = filter.ExcludedDirs()
	cfg.ExcludedPatterns = filter.Patterns()
	cfg.Extensions = slices.Clone(cfg.Extensions)
	return &prepared{cfg: cfg, filter: filter}, nil
}

// optimizeDirectories removes duplicate roots, roots nested in other roots
// and roots lying inside an excluded directory. Excluded directories outside
// every remaining root are dropped since they can never be reached.
func optimizeDirectories(roots, excluded []string) ([]string, []string) {
	slices.Sort(roots)
	roots = slices.Compact(roots)
	slices.Sort(excluded)
	excluded = slices.Compact(excluded)

	var kept []string
	for _, r := range roots {
		if slices.ContainsFunc(kept, func(k string) bool { return isWithin(r, k) }) {
			continue
		}
		if slices.ContainsFunc(excluded, func(e string) bool { return isWithin(r, e) }) {
			continue
		}
		kept = append(kept, r)
	}

	var reachable []string
	for _, e := range excluded {
		if slices.ContainsFunc(kept, func(r string) bool { return isWithin(e, r) }) {
			reachable = append(reachable, e)
		}
	}
	return kept, reachable
}

// isWithin reports whether path equals dir or lies below it.
func isWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
