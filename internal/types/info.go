package types

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Info holds the statistics of a single scan. It is reset when a scan starts
// and is read-only once the scan returns.
type Info struct {
	CheckedFolders   int
	CheckedFiles     int
	IgnoredFiles     int
	IgnoredOther     int
	DuplicatedBySize int
	GroupsBySize     int
	LostSpaceBySize  uint64

	HashedFiles  int
	HashErrors   int
	Groups       int
	GroupedFiles int
}

func (i Info) String() string {
	return fmt.Sprintf("Checked %d folders, %d files (ignored %d files, %d other), "+
		"%d same-size candidates in %d groups (%s), hashed %d, found %d similar files in %d groups",
		i.CheckedFolders, i.CheckedFiles, i.IgnoredFiles, i.IgnoredOther,
		i.DuplicatedBySize, i.GroupsBySize, humanize.IBytes(i.LostSpaceBySize),
		i.HashedFiles, i.GroupedFiles, i.Groups)
}

// Messages collects non-fatal problems reported during a scan.
type Messages struct {
	Warnings []string
	Errors   []string
}

// Warn records a formatted warning.
func (m *Messages) Warn(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// Error records a formatted error.
func (m *Messages) Error(format string, args ...any) {
	m.Errors = append(m.Errors, fmt.Sprintf(format, args...))
}

// Merge appends the messages of other to m.
func (m *Messages) Merge(other Messages) {
	m.Warnings = append(m.Warnings, other.Warnings...)
	m.Errors = append(m.Errors, other.Errors...)
}

// Clone returns a deep copy of m.
func (m Messages) Clone() Messages {
	return Messages{
		Warnings: append([]string(nil), m.Warnings...),
		Errors:   append([]string(nil), m.Errors...),
	}
}
