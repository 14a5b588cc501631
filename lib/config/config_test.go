// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/siphonfs/siphon/lib/clock"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Cache.PreloadSiblings != 3 {
		t.Errorf("expected preload_siblings=3, got %d", cfg.Cache.PreloadSiblings)
	}
	if cfg.Cache.PreloadRead != 50 {
		t.Errorf("expected preload_read=50, got %d", cfg.Cache.PreloadRead)
	}
	if cfg.Cache.MRUSize != 10 {
		t.Errorf("expected mru_size=10, got %d", cfg.Cache.MRUSize)
	}
}

func TestLoad_RequiresSiphonConfig(t *testing.T) {
	origConfig := os.Getenv("SIPHON_CONFIG")
	defer os.Setenv("SIPHON_CONFIG", origConfig)
	os.Unsetenv("SIPHON_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SIPHON_CONFIG not set, got nil")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "siphon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
paths:
  source_root: /srv/music
  cache_root: /var/cache/siphon
  mount_point: /mnt/music

cache:
  preload_siblings: 5
  preload_read: 25
  preload_open: 500ms
  clean_after: 1h
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.SourceRoot != "/srv/music" {
		t.Errorf("source_root = %s, want /srv/music", cfg.Paths.SourceRoot)
	}
	if cfg.Cache.PreloadSiblings != 5 {
		t.Errorf("preload_siblings = %d, want 5", cfg.Cache.PreloadSiblings)
	}
	if cfg.Cache.PreloadRead != 25 {
		t.Errorf("preload_read = %d, want 25", cfg.Cache.PreloadRead)
	}
	// preload_filter and mru_size should retain their defaults since
	// the file didn't set them.
	if cfg.Cache.PreloadFilter != `^.*\.flac$` {
		t.Errorf("preload_filter = %s, want default", cfg.Cache.PreloadFilter)
	}
	if cfg.Cache.MRUSize != 10 {
		t.Errorf("mru_size = %d, want default 10", cfg.Cache.MRUSize)
	}
}

func TestLoadFileMissingRequiredPathFails(t *testing.T) {
	path := writeConfig(t, `
paths:
  source_root: /srv/music
`)

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error for missing cache_root/mount_point")
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/music", map[string]string{"HOME": "/home/user"}, "/home/user/music"},
		{"${MISSING:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"no variables here", map[string]string{}, "no variables here"},
	}
	for _, tt := range tests {
		got := expandVars(tt.input, tt.vars)
		if got != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {
			c.Paths.SourceRoot, c.Paths.CacheRoot, c.Paths.MountPoint = "/a", "/b", "/c"
		}, false},
		{"missing source root", func(c *Config) {
			c.Paths.CacheRoot, c.Paths.MountPoint = "/b", "/c"
		}, true},
		{"preload_read out of range", func(c *Config) {
			c.Paths.SourceRoot, c.Paths.CacheRoot, c.Paths.MountPoint = "/a", "/b", "/c"
			c.Cache.PreloadRead = 150
		}, true},
		{"bad preload_filter regex", func(c *Config) {
			c.Paths.SourceRoot, c.Paths.CacheRoot, c.Paths.MountPoint = "/a", "/b", "/c"
			c.Cache.PreloadFilter = "(unclosed"
		}, true},
		{"bad preload_open duration", func(c *Config) {
			c.Paths.SourceRoot, c.Paths.CacheRoot, c.Paths.MountPoint = "/a", "/b", "/c"
			c.Cache.PreloadOpen = "not-a-duration"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.Paths.CacheRoot = filepath.Join(tmpDir, "cache")
	cfg.Paths.MountPoint = filepath.Join(tmpDir, "mnt")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, path := range []string{cfg.Paths.CacheRoot, cfg.Paths.MountPoint} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}

func TestToCoreConfig(t *testing.T) {
	cfg := Default()
	cfg.Paths.SourceRoot = "/src"
	cfg.Paths.CacheRoot = "/cache"
	cfg.Paths.MountPoint = "/mnt"
	cfg.Cache.PreloadOpen = "3s"
	cfg.Cache.CleanAfter = "2h"

	coreConfig, err := cfg.ToCoreConfig(clock.Real())
	if err != nil {
		t.Fatalf("ToCoreConfig: %v", err)
	}
	if coreConfig.PreloadOpen != 3*time.Second {
		t.Errorf("PreloadOpen = %v, want 3s", coreConfig.PreloadOpen)
	}
	if coreConfig.CleanAfter != 2*time.Hour {
		t.Errorf("CleanAfter = %v, want 2h", coreConfig.CleanAfter)
	}
	if !coreConfig.PreloadFilter.MatchString("01.flac") {
		t.Error("expected default preload filter to match .flac basenames")
	}
}

func TestCleanIntervalDuration(t *testing.T) {
	cfg := Default()
	d, err := cfg.CleanIntervalDuration()
	if err != nil {
		t.Fatalf("CleanIntervalDuration: %v", err)
	}
	if d != 30*time.Minute {
		t.Errorf("CleanIntervalDuration = %v, want 30m", d)
	}

	cfg.Cache.CleanInterval = ""
	d, err = cfg.CleanIntervalDuration()
	if err != nil {
		t.Fatalf("CleanIntervalDuration: %v", err)
	}
	if d != 0 {
		t.Errorf("CleanIntervalDuration with empty field = %v, want 0", d)
	}
}
