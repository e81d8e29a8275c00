package bktree

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ivoronin/simdog/internal/types"
)

// ErrIncompatible is returned by a Metric when two keys cannot be compared.
var ErrIncompatible = errors.New("incompatible fingerprint keys")

// Metric is a distance function over fingerprint keys. It must be a true
// metric (non-negative, symmetric, zero only for equal keys, and satisfying
// the triangle inequality) for Index queries to be exact.
type Metric interface {
	Name() string
	Distance(a, b types.Key) (int, error)
}

// Levenshtein is the edit distance over runes. Any two keys are comparable.
type Levenshtein struct{}

// Name returns "levenshtein".
func (Levenshtein) Name() string { return "levenshtein" }

// Distance returns the minimum number of single-rune insertions, deletions
// and substitutions turning a into b.
func (Levenshtein) Distance(a, b types.Key) (int, error) {
	if a == b {
		return 0, nil
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra), nil
	}

	// Two rolling rows over the shorter key
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)], nil
}

// Hamming counts positions at which two equal-length keys differ.
// Keys of different rune length are incompatible.
type Hamming struct{}

// Name returns "hamming".
func (Hamming) Name() string { return "hamming" }

// Distance returns the number of differing rune positions.
func (Hamming) Distance(a, b types.Key) (int, error) {
	if utf8.RuneCountInString(a) != utf8.RuneCountInString(b) {
		return 0, fmt.Errorf("%w: lengths %d and %d", ErrIncompatible,
			utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	}
	d := 0
	rb := []rune(b)
	i := 0
	for _, r := range a {
		if r != rb[i] {
			d++
		}
		i++
	}
	return d, nil
}

// MetricByName returns the metric with the given name.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "levenshtein", "edit":
		return Levenshtein{}, nil
	case "hamming":
		return Hamming{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}
