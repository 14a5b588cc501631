// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"container/list"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// Stats holds the subset of a physical file's stat(2) result that the
// cache policy engine cares about.
type Stats struct {
	Size  int64
	Atime time.Time
	Mtime time.Time
}

// PathInfo is the result of resolving a virtual path to its physical
// location.
type PathInfo struct {
	// Path is the virtual path, relative to the mount.
	Path string

	// FullPath is the resolved physical path: under the cache root
	// if Cached is true, under the source root otherwise.
	FullPath string

	// Cached is true iff a regular file exists at the cache
	// location at the moment of observation.
	Cached bool

	// Cacheable is true iff the basename of Path matches the
	// preload filter.
	Cacheable bool

	// Stats holds size/atime/mtime of the resolved physical file.
	Stats Stats
}

// Locator resolves virtual paths to [PathInfo], backed by a small
// most-recently-used cache that avoids repeated stat calls for
// recently resolved paths.
//
// A Locator is safe for concurrent use.
type Locator struct {
	sourceRoot    string
	cacheRoot     string
	preloadFilter *regexp.Regexp

	mu       sync.Mutex
	mruSize  int
	entries  map[string]*list.Element // path -> element holding *PathInfo
	order    *list.List                // front = most recently used
}

// NewLocator creates a Locator rooted at sourceRoot/cacheRoot, with an
// MRU bounded to mruSize entries.
func NewLocator(sourceRoot, cacheRoot string, preloadFilter *regexp.Regexp, mruSize int) *Locator {
	if mruSize <= 0 {
		mruSize = DefaultMRUSize
	}
	return &Locator{
		sourceRoot:    sourceRoot,
		cacheRoot:     cacheRoot,
		preloadFilter: preloadFilter,
		mruSize:       mruSize,
		entries:       make(map[string]*list.Element),
		order:         list.New(),
	}
}

// DefaultMRUSize is used when no explicit size is configured.
const DefaultMRUSize = 10

// Locate resolves path:
//
//  1. MRU hit: move to MRU-front and return a copy.
//  2. Compute cacheable from the preload filter.
//  3. lstat the cache-root location; if it exists, that is the
//     resolved location and Cached is true.
//  4. Otherwise lstat the source-root location; if it exists, that is
//     the resolved location and Cached is false.
//  5. Any other stat failure is returned as [LocateFailed] and the
//     result is not cached.
//  6. The resolved record is inserted at the MRU-front, evicting the
//     MRU-back if the MRU has grown past its configured size.
func (l *Locator) Locate(path string) (PathInfo, error) {
	l.mu.Lock()
	if element, ok := l.entries[path]; ok {
		l.order.MoveToFront(element)
		info := element.Value.(*PathInfo)
		l.mu.Unlock()
		return *info, nil
	}
	l.mu.Unlock()

	cacheable := l.preloadFilter.MatchString(filepath.Base(path))

	cachePath := filepath.Join(l.cacheRoot, path)
	if stats, err := lstatInfo(cachePath); err == nil {
		info := PathInfo{Path: path, FullPath: cachePath, Cached: true, Cacheable: cacheable, Stats: stats}
		l.insert(path, info)
		return info, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return PathInfo{}, &LocateFailed{Path: path, Err: err}
	}

	sourcePath := filepath.Join(l.sourceRoot, path)
	stats, err := lstatInfo(sourcePath)
	if err != nil {
		return PathInfo{}, &LocateFailed{Path: path, Err: err}
	}

	info := PathInfo{Path: path, FullPath: sourcePath, Cached: false, Cacheable: cacheable, Stats: stats}
	l.insert(path, info)
	return info, nil
}

// Invalidate removes any MRU entry for path. Called after a cache
// mutation (copy or unlink) so that the next Locate observes the new
// filesystem state rather than a stale cached answer.
func (l *Locator) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if element, ok := l.entries[path]; ok {
		l.order.Remove(element)
		delete(l.entries, path)
	}
}

// InvalidateAll clears the MRU entirely. Called after a clean pass,
// since eviction can change the resolved location of any path that
// was scanned.
func (l *Locator) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*list.Element)
	l.order = list.New()
}

// MarkUncached mutates any MRU entry for path to point at the source
// and sets Cached to false, without removing the entry outright. This
// happens before the unlink so that a Locate racing with eviction
// never returns a stale cached FullPath.
func (l *Locator) MarkUncached(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	element, ok := l.entries[path]
	if !ok {
		return
	}
	info := element.Value.(*PathInfo)
	info.Cached = false
	info.FullPath = filepath.Join(l.sourceRoot, path)
}

func (l *Locator) insert(path string, info PathInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if element, ok := l.entries[path]; ok {
		element.Value = &info
		l.order.MoveToFront(element)
		return
	}

	element := l.order.PushFront(&info)
	l.entries[path] = element

	for l.order.Len() > l.mruSize {
		back := l.order.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*PathInfo)
		delete(l.entries, evicted.Path)
		l.order.Remove(back)
	}
}

// Len reports the current MRU occupancy (invariant I5: always <=
// mruSize).
func (l *Locator) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

func lstatInfo(path string) (Stats, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Stats{}, err
	}
	if !info.Mode().IsRegular() {
		return Stats{}, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return Stats{
		Size:  info.Size(),
		Atime: atime(info),
		Mtime: info.ModTime(),
	}, nil
}
