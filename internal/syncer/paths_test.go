package syncer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathsEmptyReturnsDefault(t *testing.T) {
	got, err := ResolvePaths("", []string{"a", "b"})
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want defaultPaths unchanged", got)
	}
}

func TestResolvePathsBitmapSelectsIndexOne(t *testing.T) {
	// 0b0000000010 selects only index 1 (动漫/).
	got, err := ResolvePaths("0b0000000010", nil)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(got) != 1 || got[0] != CanonicalPaths[1] {
		t.Errorf("got %v, want only CanonicalPaths[1]", got)
	}
}

func TestResolvePathsBitmapOutOfRangeErrors(t *testing.T) {
	// len(CanonicalPaths) == 10, so bit 10 is out of range.
	_, err := ResolvePaths("0b10000000000", nil)
	if err == nil {
		t.Error("expected error for out-of-range bitmap bit")
	}
}

func TestResolvePathsFileMatchesCanonicalPrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.txt")
	if err := os.WriteFile(path, []byte("动漫/\n音乐/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolvePaths(path, nil)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 entries", got)
	}
}

func TestResolvePathsFileRejectsNonMatchingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.txt")
	if err := os.WriteFile(path, []byte("not-a-real-folder/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ResolvePaths(path, nil); err == nil {
		t.Error("expected error for a line matching no canonical path")
	}
}
