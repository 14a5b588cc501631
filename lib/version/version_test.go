// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoIncludesVersionAndCommit(t *testing.T) {
	oldVersion, oldCommit, oldDirty, oldBuild := Version, GitCommit, GitDirty, BuildTime
	defer func() { Version, GitCommit, GitDirty, BuildTime = oldVersion, oldCommit, oldDirty, oldBuild }()

	Version, GitCommit, GitDirty, BuildTime = "1.2.3", "abc1234", "false", "2026-01-01T00:00:00Z"

	info := Info()
	if !strings.Contains(info, "1.2.3") || !strings.Contains(info, "abc1234") {
		t.Errorf("Info() = %q, want it to contain version and commit", info)
	}
	if strings.Contains(info, "-dirty") {
		t.Errorf("Info() = %q, want no -dirty suffix when clean", info)
	}
}

func TestInfoMarksDirtyBuild(t *testing.T) {
	oldDirty := GitDirty
	defer func() { GitDirty = oldDirty }()

	GitDirty = "true"
	if !strings.Contains(Info(), "-dirty") {
		t.Errorf("Info() = %q, want -dirty suffix", Info())
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.Contains(full, "Go: ") || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q, want Go and Platform lines", full)
	}
}

func TestShortReturnsVersion(t *testing.T) {
	oldVersion := Version
	defer func() { Version = oldVersion }()

	Version = "9.9.9"
	if Short() != "9.9.9" {
		t.Errorf("Short() = %q, want 9.9.9", Short())
	}
}

func TestCommitReturnsGitCommit(t *testing.T) {
	oldCommit := GitCommit
	defer func() { GitCommit = oldCommit }()

	GitCommit = "deadbee"
	if Commit() != "deadbee" {
		t.Errorf("Commit() = %q, want deadbee", Commit())
	}
}
