// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/siphonfs/siphon/lib/cache"
)

// fuseAvailable skips the calling test when /dev/fuse is not
// reachable, which is the case in most sandboxed build environments.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

func testMount(t *testing.T) (mountpoint, sourceRoot, cacheRoot string, core *cache.Core) {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	sourceRoot = filepath.Join(root, "source")
	cacheRoot = filepath.Join(root, "cache")
	mountpoint = filepath.Join(root, "mnt")

	for _, dir := range []string{sourceRoot, cacheRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll %s: %v", dir, err)
		}
	}

	core = cache.New(cache.Config{SourceRoot: sourceRoot, CacheRoot: cacheRoot})

	server, err := Mount(Options{
		Mountpoint: mountpoint,
		Core:       core,
		SourceRoot: sourceRoot,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	t.Cleanup(func() {
		core.Close()
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	return mountpoint, sourceRoot, cacheRoot, core
}

func writeSourceFile(t *testing.T, sourceRoot, relPath string, content []byte) {
	t.Helper()
	full := filepath.Join(sourceRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestMountReadsFromSourceOnMiss(t *testing.T) {
	mountpoint, sourceRoot, _, _ := testMount(t)
	writeSourceFile(t, sourceRoot, "a/01.flac", []byte("hello from source"))

	got, err := os.ReadFile(filepath.Join(mountpoint, "a", "01.flac"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, []byte("hello from source")) {
		t.Errorf("got %q", got)
	}
}

func TestMountListsSourceDirectoryEntries(t *testing.T) {
	mountpoint, sourceRoot, _, _ := testMount(t)
	writeSourceFile(t, sourceRoot, "a/01.flac", []byte("x"))
	writeSourceFile(t, sourceRoot, "a/02.flac", []byte("y"))
	writeSourceFile(t, sourceRoot, "a/meta.json", []byte("{}"))

	entries, err := os.ReadDir(filepath.Join(mountpoint, "a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make(map[string]bool)
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, want := range []string{"01.flac", "02.flac", "meta.json"} {
		if !names[want] {
			t.Errorf("missing %s in listing %v", want, names)
		}
	}
}

func TestMountMissingFileIsNotExist(t *testing.T) {
	mountpoint, _, _, _ := testMount(t)

	_, err := os.ReadFile(filepath.Join(mountpoint, "nope.flac"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestMountReadTriggersCacheAndServesFromCache(t *testing.T) {
	mountpoint, sourceRoot, cacheRoot, core := testMount(t)
	content := []byte("cacheable content")
	writeSourceFile(t, sourceRoot, "a/01.flac", content)

	got, err := os.ReadFile(filepath.Join(mountpoint, "a", "01.flac"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}

	core.Flush()

	if _, err := os.Stat(filepath.Join(cacheRoot, "a", "01.flac")); err != nil {
		t.Errorf("expected cache copy after the open-triggered preload: %v", err)
	}
	info, err := core.Locate("/a/01.flac")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !info.Cached || info.FullPath != filepath.Join(cacheRoot, "a", "01.flac") {
		t.Errorf("Locate = %+v, want reads served from the cache copy", info)
	}
}

func TestMountWriteIsRejected(t *testing.T) {
	mountpoint, sourceRoot, _, _ := testMount(t)
	writeSourceFile(t, sourceRoot, "a/01.flac", []byte("x"))

	err := os.WriteFile(filepath.Join(mountpoint, "a", "01.flac"), []byte("y"), 0o644)
	if err == nil {
		t.Fatal("expected write to a read-only mount to fail")
	}
}

func TestMountPartialRead(t *testing.T) {
	mountpoint, sourceRoot, _, _ := testMount(t)
	writeSourceFile(t, sourceRoot, "a/01.flac", []byte("0123456789"))

	file, err := os.Open(filepath.Join(mountpoint, "a", "01.flac"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()

	buf := make([]byte, 4)
	if _, err := file.ReadAt(buf, 3); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "3456" {
		t.Errorf("got %q, want 3456", buf)
	}
}
