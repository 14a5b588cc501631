// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"regexp"
	"time"

	"github.com/siphonfs/siphon/lib/clock"
)

// DefaultPreloadFilter matches basenames ending in ".flac", the
// default cacheability filter.
var DefaultPreloadFilter = regexp.MustCompile(`^.*\.flac$`)

// DefaultCleanAfter is the default staleness threshold for the
// cleaner, 6 hours.
const DefaultCleanAfter = 6 * time.Hour

// Config configures a [Core]. Fields with a zero value fall back to
// the documented default.
type Config struct {
	// SourceRoot is the slow, authoritative upstream directory.
	SourceRoot string

	// CacheRoot is the fast local mirror directory. Strictly a
	// subtree the cache mutator owns: nothing outside it is ever
	// written or removed.
	CacheRoot string

	// PreloadFilter matches basenames eligible for caching. Defaults
	// to [DefaultPreloadFilter].
	PreloadFilter *regexp.Regexp

	// PreloadSiblings is the number of siblings after the triggering
	// path to preload alongside it.
	PreloadSiblings int

	// PreloadRead is the percentage of a file's size that must be
	// read before the volume-based trigger fires. In [0, 100]; 0
	// fires on the first byte read.
	PreloadRead int

	// PreloadOpen is how long a cacheable file must stay open before
	// the time-based trigger fires. Zero fires immediately.
	PreloadOpen time.Duration

	// CleanAfter is the cleaner's staleness threshold: files whose
	// access time is older than now-CleanAfter are eligible for
	// eviction. Defaults to [DefaultCleanAfter].
	CleanAfter time.Duration

	// CleanIgnore matches basenames the cleaner never evicts,
	// regardless of age. Nil means nothing is exempt.
	CleanIgnore *regexp.Regexp

	// MRUSize bounds the path-locator MRU. Defaults to
	// [DefaultMRUSize].
	MRUSize int

	// Clock is the time source for triggers and the cleaner. Defaults
	// to [clock.Real].
	Clock clock.Clock
}

func (c *Config) setDefaults() {
	if c.PreloadFilter == nil {
		c.PreloadFilter = DefaultPreloadFilter
	}
	if c.CleanAfter == 0 {
		c.CleanAfter = DefaultCleanAfter
	}
	if c.MRUSize == 0 {
		c.MRUSize = DefaultMRUSize
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
}

// Core is the caching policy engine: the component a VFS adapter
// drives via Locate/OnOpen/OnRead/OnClose, and which drives the cache
// mutator's serialized executor in the background.
//
// A Core owns its Locator, open-file table, and executor; none of
// that state is shared globally. Construct one Core per mounted
// union.
type Core struct {
	config Config
	bus    *Bus

	locator *Locator
	open    *openFileTable
	mutator *mutator
}

// New constructs a Core from config. The cache and source roots are
// not created or validated here — callers that need the cache
// directory to exist should create it before mounting.
func New(config Config) *Core {
	config.setDefaults()

	bus := NewBus()
	locator := NewLocator(config.SourceRoot, config.CacheRoot, config.PreloadFilter, config.MRUSize)
	m := newMutator(locator, bus, config.SourceRoot, config.CacheRoot, config.PreloadFilter, config.PreloadSiblings)

	return &Core{
		config:  config,
		bus:     bus,
		locator: locator,
		open:    newOpenFileTable(),
		mutator: m,
	}
}

// Events returns the Core's event bus. Observers attach with
// [Bus.On] before traffic starts, or at any time — emissions after
// attachment are delivered; emissions before are not replayed.
func (c *Core) Events() *Bus { return c.bus }

// Locate resolves a virtual path to its current physical location and
// caching state.
func (c *Core) Locate(path string) (PathInfo, error) {
	return c.locator.Locate(path)
}

// OnOpen records that descriptor fd was opened against path.
// Non-cacheable files are not tracked: OnOpen emits
// [EventRead] and returns immediately. Cacheable files are tracked
// with a fresh [Trigger] armed to fire after config.PreloadOpen; its
// resolution (whichever reason) enqueues a preload unless the
// resolution was a cancellation.
func (c *Core) OnOpen(fd Descriptor, path string) error {
	info, err := c.locator.Locate(path)
	if err != nil {
		return err
	}

	if !info.Cacheable {
		c.bus.Emit(EventRead, path)
		return nil
	}

	if info.Cached {
		c.bus.Emit(EventHit, path)
	} else {
		c.bus.Emit(EventMiss, path)
	}

	record := newOpenFileRecord(path)
	record.Trigger = NewTrigger(c.config.Clock, c.config.PreloadOpen, ReasonTime)
	record.Trigger.OnResolve(func(reason Reason) {
		c.mutator.requestPreload(reason, path)
	})

	c.open.insert(fd, record)

	// Non-blocking size fetch: locate again (the MRU makes the
	// repeat cheap) and stash the size once known.
	go func() {
		info, err := c.locator.Locate(path)
		if err != nil {
			return
		}
		record.setSize(info.Stats.Size)
	}()

	return nil
}

// OnRead records bytes successfully read from fd. Unknown descriptors
// (untracked, non-cacheable files) are a no-op.
// Once cumulative bytes read exceeds size * preloadRead / 100, the
// trigger fires with [ReasonRead]; a second fire is a no-op (the
// Trigger's own monotonic transition).
func (c *Core) OnRead(fd Descriptor, bytes int64) {
	record, ok := c.open.get(fd)
	if !ok {
		return
	}
	record.BytesRead += bytes

	size := record.Size()
	if size == SizeUnknown {
		return
	}
	if record.BytesRead > size*int64(c.config.PreloadRead)/100 {
		record.Trigger.Fire(ReasonRead)
	}
}

// OnClose releases descriptor fd: cancels the trigger (a no-op if it
// already fired) and removes the record. A
// preload already enqueued by a prior firing still runs — cancellation
// only affects a trigger still in the armed state.
func (c *Core) OnClose(fd Descriptor) {
	record, ok := c.open.get(fd)
	if !ok {
		return
	}
	record.Trigger.Cancel()
	c.open.remove(fd)
}

// Clean enqueues a single cleaner pass, serialized against preloads
// on the same executor.
func (c *Core) Clean() {
	c.mutator.requestClean(c.config.Clock, c.config.CleanIgnore, c.config.CleanAfter)
}

// CoreStats reports operational counters useful for monitoring.
type CoreStats struct {
	OpenFiles  int
	MRUSize    int
	QueueDepth int
}

// Stats returns current occupancy of the open-file table and MRU,
// plus the executor's pending work-item count.
func (c *Core) Stats() CoreStats {
	return CoreStats{
		OpenFiles:  c.open.len(),
		MRUSize:    c.locator.Len(),
		QueueDepth: c.mutator.queueDepth(),
	}
}

// Flush blocks until every preload and clean request enqueued before
// the call to Flush has finished running. Useful for tests and for
// an orderly shutdown sequence that wants the cache settled before
// unmounting.
func (c *Core) Flush() {
	c.mutator.flush()
}

// Close lets the executor's in-flight item finish, discards any work
// still queued, and stops accepting new work. Call [Core.Flush] first
// to run the queued work instead. Close does not close open file
// descriptors — those are owned
// by the VFS adapter.
func (c *Core) Close() {
	c.mutator.stop()
}
