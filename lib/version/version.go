// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes build identity for the siphon binaries'
// --version output.
//
// Nothing in this package computes its own values: GitCommit, GitDirty,
// and BuildTime stay at their zero defaults until a release build
// overwrites them with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/siphonfs/siphon/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// A development build or `go test` run never sets these, so Info and
// friends fall back to "unknown"/"0.1.0-dev" rather than failing.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	// Version is the release's semantic version, set by hand when
	// cutting a release rather than derived from git.
	Version = "0.1.0-dev"

	// GitCommit is the short SHA the binary was built from.
	GitCommit = "unknown"

	// GitDirty is "true" when the working tree had uncommitted
	// changes at build time.
	GitDirty = "false"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Info formats Version, GitCommit, and BuildTime into the one-line
// string a --version flag should print.
func Info() string {
	suffix := ""
	if GitDirty == "true" {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, suffix, BuildTime)
}

// Full extends Info with the Go toolchain version and target platform,
// for diagnostic output where Info alone isn't enough to reproduce a
// build.
func Full() string {
	var b strings.Builder
	b.WriteString(Info())
	fmt.Fprintf(&b, "\n  Go: %s\n  Platform: %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return b.String()
}

// Short returns the bare version number, with no commit or build
// metadata.
func Short() string {
	return Version
}

// Commit returns the git SHA the running binary was built from.
func Commit() string {
	return GitCommit
}
