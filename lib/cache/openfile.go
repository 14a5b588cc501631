// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"sync/atomic"
)

// Descriptor is the opaque, open-unique file handle the VFS adapter
// uses to identify an open file across OnOpen/OnRead/OnClose. Any
// value unique among currently open files works; lib/fuseadapter
// hands out values from a process-wide counter.
type Descriptor uint64

// OpenFileRecord is the per-descriptor state tracked from OnOpen to
// OnClose for a cacheable file. Non-cacheable files are not tracked.
type OpenFileRecord struct {
	Path      string
	BytesRead int64 // mutated only by OnRead, which is sequential per fd

	// size is -1 until the asynchronous size-fetch started by OnOpen
	// resolves it; a caller may observe SizeUnknown briefly right
	// after opening. Accessed with atomics because the size-fetch
	// goroutine writes it concurrently with OnRead reading it.
	size atomic.Int64

	// sizeReady is closed once setSize has been called for the
	// first time. Tests use it to deterministically wait for the
	// asynchronous size-fetch instead of sleeping.
	sizeReady chan struct{}

	Trigger *Trigger
}

// SizeUnknown is the sentinel value of [OpenFileRecord.Size] before
// the asynchronous locate in on_open resolves the file's size.
const SizeUnknown int64 = -1

func newOpenFileRecord(path string) *OpenFileRecord {
	record := &OpenFileRecord{Path: path, sizeReady: make(chan struct{})}
	record.size.Store(SizeUnknown)
	return record
}

// Size returns the file's size, or [SizeUnknown] if the asynchronous
// size-fetch has not resolved yet.
func (r *OpenFileRecord) Size() int64 { return r.size.Load() }

func (r *OpenFileRecord) setSize(size int64) {
	r.size.Store(size)
	select {
	case <-r.sizeReady:
	default:
		close(r.sizeReady)
	}
}

// openFileTable is a concurrency-safe mapping of descriptor to
// OpenFileRecord.
type openFileTable struct {
	mu      sync.Mutex
	records map[Descriptor]*OpenFileRecord
}

func newOpenFileTable() *openFileTable {
	return &openFileTable{records: make(map[Descriptor]*OpenFileRecord)}
}

func (t *openFileTable) insert(fd Descriptor, record *OpenFileRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[fd] = record
}

func (t *openFileTable) get(fd Descriptor) (*OpenFileRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[fd]
	return record, ok
}

func (t *openFileTable) remove(fd Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, fd)
}

func (t *openFileTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
