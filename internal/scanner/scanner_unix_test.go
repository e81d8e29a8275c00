//go:build unix

package scanner

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/afero"
)

// TestNonRegularFilesIgnored tests that symlinks and FIFOs count as "other".
func TestNonRegularFilesIgnored(t *testing.T) {
	root := t.TempDir()
	fsys := afero.NewOsFs()

	regular := filepath.Join(root, "regular.txt")
	createFile(t, fsys, regular, 100)
	if err := os.Symlink(regular, filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}
	others := 1
	if err := syscall.Mkfifo(filepath.Join(root, "fifo"), 0o644); err == nil {
		others++
	}

	res := mustWalk(t, New(fsys, []string{root}, Options{Recursive: true}, nil, nil, nil))

	if len(res.Entries) != 1 || filepath.Base(res.Entries[0].Path) != "regular.txt" {
		t.Errorf("expected only regular.txt, got %v", paths(res))
	}
	if res.Info.IgnoredOther != others {
		t.Errorf("IgnoredOther = %d, want %d", res.Info.IgnoredOther, others)
	}
}

// TestPermissionDeniedDirectory tests a real unreadable directory on disk.
func TestPermissionDeniedDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping permission test when running as root")
	}
	root := t.TempDir()
	fsys := afero.NewOsFs()
	createFile(t, fsys, filepath.Join(root, "accessible.txt"), 100)

	unreadable := filepath.Join(root, "unreadable")
	if err := os.Mkdir(unreadable, 0o000); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(unreadable, 0o755) }()

	res := mustWalk(t, New(fsys, []string{root}, Options{Recursive: true}, nil, nil, nil))

	if len(res.Entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(res.Entries))
	}
	if len(res.Messages.Warnings) == 0 {
		t.Error("expected a warning for the unreadable directory")
	}
}

// TestInvalidUTF8NameSkippedSilently tests that undecodable names are invisible.
func TestInvalidUTF8NameSkippedSilently(t *testing.T) {
	root := t.TempDir()
	fsys := afero.NewOsFs()
	createFile(t, fsys, filepath.Join(root, "ok.txt"), 10)
	if err := os.WriteFile(filepath.Join(root, "bad\xff.txt"), []byte("x"), 0o644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}

	res := mustWalk(t, New(fsys, []string{root}, Options{Recursive: true}, nil, nil, nil))

	if len(res.Entries) != 1 {
		t.Errorf("expected 1 entry, got %v", paths(res))
	}
	if len(res.Messages.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Messages.Warnings)
	}
}
