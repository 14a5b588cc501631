// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func seedSiblingDir(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, "a", name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	return root
}

func TestSiblingsOrderedSliceStartsAtSelf(t *testing.T) {
	root := seedSiblingDir(t, "01.flac", "02.flac", "03.flac", "04.flac", "05.flac", "cover.jpg")
	filter := regexp.MustCompile(`^.*\.flac$`)

	got, err := Siblings(root, "/a/02.flac", filter, 2)
	if err != nil {
		t.Fatalf("Siblings: %v", err)
	}
	want := []string{"/a/02.flac", "/a/03.flac", "/a/04.flac"}
	assertStringSlice(t, got, want)
}

func TestSiblingsTruncatesAtEndOfDirectory(t *testing.T) {
	root := seedSiblingDir(t, "01.flac", "02.flac", "03.flac")
	filter := regexp.MustCompile(`^.*\.flac$`)

	got, err := Siblings(root, "/a/02.flac", filter, 10)
	if err != nil {
		t.Fatalf("Siblings: %v", err)
	}
	assertStringSlice(t, got, []string{"/a/02.flac", "/a/03.flac"})
}

func TestSiblingsNameNotInListingReturnsEmpty(t *testing.T) {
	root := seedSiblingDir(t, "01.flac", "02.flac")
	filter := regexp.MustCompile(`^.*\.flac$`)

	got, err := Siblings(root, "/a/99.flac", filter, 2)
	if err != nil {
		t.Fatalf("Siblings: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Siblings = %v, want empty", got)
	}
}

func TestSiblingsFiltersNonMatchingBasenames(t *testing.T) {
	root := seedSiblingDir(t, "01.flac", "cover.jpg", "02.flac")
	filter := regexp.MustCompile(`^.*\.flac$`)

	got, err := Siblings(root, "/a/01.flac", filter, 5)
	if err != nil {
		t.Fatalf("Siblings: %v", err)
	}
	assertStringSlice(t, got, []string{"/a/01.flac", "/a/02.flac"})
}

func TestSiblingsPropagatesDirectoryReadError(t *testing.T) {
	filter := regexp.MustCompile(`^.*\.flac$`)
	_, err := Siblings(t.TempDir(), "/missing/01.flac", filter, 2)
	if err == nil {
		t.Fatal("expected an error for a missing sibling directory")
	}
}

func assertStringSlice(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
