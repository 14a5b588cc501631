// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"syscall"

	"github.com/google/uuid"
)

// WorkItem is one unit of background work executed strictly serially
// by the cache mutator's executor. A failing work item emits
// [EventError] and is abandoned; it never stops the executor.
type WorkItem struct {
	ID   uuid.UUID
	Kind string // "preload", "clean" or "barrier", for logging/correlation
	run  func()
}

// mutator is the serialized executor behind [Core]: a single-
// concurrency FIFO queue of [WorkItem]s. It performs copies and
// evictions against the cache tree and emits outcome events on the
// shared bus.
type mutator struct {
	locator       *Locator
	bus           *Bus
	sourceRoot    string
	cacheRoot     string
	preloadFilter *regexp.Regexp
	siblingCount  int

	queue chan WorkItem
	done  chan struct{}
}

func newMutator(locator *Locator, bus *Bus, sourceRoot, cacheRoot string, preloadFilter *regexp.Regexp, siblingCount int) *mutator {
	m := &mutator{
		locator:       locator,
		bus:           bus,
		sourceRoot:    sourceRoot,
		cacheRoot:     cacheRoot,
		preloadFilter: preloadFilter,
		siblingCount:  siblingCount,
		// Unbounded-ish buffer: the queue must never block the
		// event producers (on_open/on_close/cleaner ticks) for
		// long; a generous buffer plus a dedicated goroutine keeps
		// enqueue non-blocking in the common case.
		queue: make(chan WorkItem, 4096),
		done:  make(chan struct{}),
	}
	go m.run()
	return m
}

// run is the executor's task loop: strict FIFO, concurrency 1. A
// panicking work item would otherwise take down the whole executor;
// that is accepted here as a programming-error signal, matching the
// stance that a stuck or crashing background task should be loud.
func (m *mutator) run() {
	for item := range m.queue {
		item.run()
	}
	close(m.done)
}

// enqueue adds a work item to the FIFO queue. Non-blocking unless the
// buffer is exhausted, in which case enqueue blocks the caller — this
// is the deliberate backpressure point: a stuck copy stalls new
// preload requests, which is acceptable given a slow source is the
// problem being solved in the first place.
func (m *mutator) enqueue(kind string, run func()) {
	m.queue <- WorkItem{ID: uuid.New(), Kind: kind, run: run}
}

// queueDepth reports the number of work items currently buffered,
// not counting one that may be mid-run. Exposed for [Core.Stats].
func (m *mutator) queueDepth() int {
	return len(m.queue)
}

// stop lets the in-flight item finish, discards the items still
// queued behind it, and then stops accepting new work. It never
// cancels mid-item work; a copy or eviction already running always
// finishes.
func (m *mutator) stop() {
drain:
	for {
		select {
		case <-m.queue:
		default:
			break drain
		}
	}
	close(m.queue)
	<-m.done
}

// flush blocks until every work item enqueued before the call to
// flush has completed, without stopping the executor. It works by
// enqueuing a barrier item behind everything already queued and
// waiting for it to run — FIFO ordering guarantees nothing queued
// earlier is still pending once the barrier runs.
func (m *mutator) flush() {
	barrier := make(chan struct{})
	m.queue <- WorkItem{ID: uuid.New(), Kind: "barrier", run: func() { close(barrier) }}
	<-barrier
}

// requestPreload enqueues the preload procedure for (reason, path).
// Enqueue itself is not idempotent — every call adds a new work item —
// the idempotence that prevents duplicate cache writes lives in
// cacheOne, which is a cheap no-op when the path is already cached.
func (m *mutator) requestPreload(reason Reason, path string) {
	m.enqueue("preload", func() {
		m.preload(reason, path)
	})
}

func (m *mutator) preload(reason Reason, path string) {
	m.bus.Emit(EventRequest, RequestArgs{Reason: reason, Path: path})

	siblings, err := Siblings(m.sourceRoot, path, m.preloadFilter, m.siblingCount)
	if err != nil {
		m.bus.Emit(EventError, fmt.Errorf("siblings for %s: %w", path, err))
		return
	}

	for _, sibling := range siblings {
		newlyCached, err := m.cacheOne(sibling)
		if err != nil {
			m.bus.Emit(EventError, err)
			continue
		}
		if newlyCached {
			m.bus.Emit(EventCache, sibling)
		}
	}
}

// cacheOne copies path from the source root into the cache tree.
// Idempotent: caching an already-cached path is a no-op and is
// reported as such via the bool return rather than an event.
func (m *mutator) cacheOne(path string) (newlyCached bool, err error) {
	info, err := m.locator.Locate(path)
	if err != nil {
		return false, fmt.Errorf("locating %s before cache: %w", path, err)
	}
	if info.Cached {
		return false, nil
	}

	sourcePath := filepath.Join(m.sourceRoot, path)
	cachePath := filepath.Join(m.cacheRoot, path)

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return false, &MkdirFailed{Path: path, Err: err}
	}

	if err := copyFile(sourcePath, cachePath); err != nil {
		return false, &CopyFailed{Path: path, Err: err}
	}

	if err := os.Chtimes(cachePath, info.Stats.Atime, info.Stats.Mtime); err != nil {
		return false, &UtimesFailed{Path: path, Err: err}
	}

	m.locator.Invalidate(path)
	return true, nil
}

// uncache removes path's cached copy. The MRU is updated to point at
// the source *before* the unlink, so that a Locate racing with
// eviction never observes a path that claims to be cached but whose
// file is gone.
func (m *mutator) uncache(path string) error {
	m.locator.MarkUncached(path)

	cachePath := filepath.Join(m.cacheRoot, path)
	if err := os.Remove(cachePath); err != nil {
		return &UnlinkFailed{Path: path, Err: err}
	}

	m.removeEmptyParents(filepath.Dir(cachePath))

	m.bus.Emit(EventUncache, path)
	return nil
}

// removeEmptyParents walks upward from dir, removing empty
// directories until reaching the cache root (exclusive) or hitting a
// non-empty directory. ENOTEMPTY there is silent and expected; any
// other error is wrapped as [RmdirFailed] and emitted on the bus.
func (m *mutator) removeEmptyParents(dir string) {
	for {
		cleanDir := filepath.Clean(dir)
		cleanRoot := filepath.Clean(m.cacheRoot)
		if cleanDir == cleanRoot || !isWithin(cleanRoot, cleanDir) {
			return
		}
		if err := os.Remove(cleanDir); err != nil {
			if !errors.Is(err, syscall.ENOTEMPTY) {
				m.bus.Emit(EventError, &RmdirFailed{Path: cleanDir, Err: err})
			}
			return
		}
		dir = filepath.Dir(cleanDir)
	}
}

// isWithin reports whether path is root or a descendant of root.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}

// copyFile copies src to a temporary file alongside dst and renames
// it into place, so that a partially copied file is never visible
// under the cache root.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".siphon-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}
