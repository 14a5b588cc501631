// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Siblings computes the preload set for a triggered path: read the
// source directory of path's parent, filter basenames against
// preloadFilter, sort ascending by basename, locate path's basename
// in that order, and return it plus the next preloadCount entries (so
// the result always starts with path itself, at index 0, when path's
// basename matches the filter and is present in the listing).
//
// sourceRoot and path are combined to form the directory to read;
// path is a virtual path and the returned paths are also virtual
// (relative to the mount), ready to be passed back into [Core.Locate].
//
// If path's basename is not present in the filtered, sorted listing,
// Siblings returns an empty slice (not an error) — this covers both
// "the file was removed since the caller learned its name" and "the
// file does not match the filter" without requiring two code paths.
//
// A directory read failure propagates as an error; the caller (the
// cache mutator's preload procedure) emits [EventError] and abandons
// the work item.
func Siblings(sourceRoot, path string, preloadFilter *regexp.Regexp, preloadCount int) ([]string, error) {
	dir := filepath.Dir(path)
	sourceDir := filepath.Join(sourceRoot, dir)

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("reading sibling directory %s: %w", sourceDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if preloadFilter.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	base := filepath.Base(path)
	index := -1
	for i, name := range names {
		if name == base {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, nil
	}

	end := index + preloadCount + 1
	if end > len(names) {
		end = len(names)
	}

	result := make([]string, 0, end-index)
	for _, name := range names[index:end] {
		result = append(result, virtualJoin(dir, name))
	}
	return result, nil
}

// virtualJoin joins a virtual directory and a basename without
// letting filepath.Join collapse a root directory of "." or "/" in a
// way that changes the path's meaning relative to the mount.
func virtualJoin(dir, name string) string {
	if dir == "." || dir == "" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
