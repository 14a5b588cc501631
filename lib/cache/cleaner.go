// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/siphonfs/siphon/lib/clock"
)

// requestClean enqueues a clean pass on the mutator's executor, so it
// serializes against any preload currently running rather than racing
// it for the same cache file.
func (m *mutator) requestClean(clk clock.Clock, ignoreFilter *regexp.Regexp, cleanAfter time.Duration) {
	m.enqueue("clean", func() {
		m.clean(clk, ignoreFilter, cleanAfter)
	})
}

// clean walks the cache tree once, evicting regular files whose
// basename does not match ignoreFilter AND whose access time is
// older than now-cleanAfter. After the scan completes (successfully
// or not), the MRU is fully invalidated.
//
// Scan order is whatever filepath.WalkDir yields; each eligible file
// only needs to be considered exactly once per invocation, not in any
// particular order.
//
// A [ScanFailed] error terminates the pass early: the files already
// evicted stay evicted, but the walk does not continue past the
// failure. The next tick retries the remainder.
func (m *mutator) clean(clk clock.Clock, ignoreFilter *regexp.Regexp, cleanAfter time.Duration) {
	defer m.locator.InvalidateAll()

	cutoff := clk.Now().Add(-cleanAfter)

	walkErr := filepath.WalkDir(m.cacheRoot, func(fullPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		name := entry.Name()
		if ignoreFilter != nil && ignoreFilter.MatchString(name) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if atime(info).After(cutoff) {
			return nil
		}

		relPath, err := filepath.Rel(m.cacheRoot, fullPath)
		if err != nil {
			return err
		}
		virtualPath := "/" + relPath

		if err := m.uncache(virtualPath); err != nil {
			m.bus.Emit(EventError, err)
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		m.bus.Emit(EventError, &ScanFailed{Path: m.cacheRoot, Err: walkErr})
	}
}
