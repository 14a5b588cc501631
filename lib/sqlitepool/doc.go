// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite with the pragma set
// and pooling behavior siphon's SQLite-backed components share. Right
// now that's one component, lib/eventlog, but the pool carries nothing
// event-log-specific: it is generic enough for any future component
// that wants local structured storage without re-deriving the pragma
// list from scratch.
//
// The pool itself is a thin layer over sqlitex.Pool, which hands out a
// fixed number of connections. A caller [Pool.Take]s one, does its
// work, and [Pool.Put]s it back; connections are not shared across
// goroutines, so each caller holds its own for the duration of its
// work.
//
// # Connection setup
//
// Every connection gets the same pragmas before it's handed to a
// caller:
//
//   - journal_mode=WAL — write-ahead logging, so readers never block
//     writers and vice versa.
//   - synchronous=NORMAL — transactions survive a process crash but not
//     a kernel panic or power loss. For an event log whose own source
//     of truth is the cache's bus (replayable from the next round of
//     traffic), that tradeoff favors write throughput.
//   - busy_timeout=5000 — wait 5s for a write lock before surfacing
//     SQLITE_BUSY, rather than failing a write the instant another
//     connection holds the lock.
//   - foreign_keys=OFF — referential integrity is the caller's job; FK
//     cascades firing inside a materialized view are a surprise no one
//     wants.
//   - cache_size=-8192 — an 8 MB page cache per connection.
//   - mmap_size=268435456 — 256 MB of memory-mapped I/O, letting the
//     OS page cache serve reads without a read(2) round trip.
//   - temp_store=MEMORY — scratch tables and indexes never touch disk.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     "/var/cache/siphon/events.db",
//	    PoolSize: 8,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// # Why this stays thin
//
// There is no query builder and no attempt to hide the zombiezen API:
// callers write SQL directly, reach for sqlitex.Execute for cached
// statements, and manage transactions with
// sqlitex.ImmediateTransaction. The value this package adds is a
// single shared pragma policy and pool lifecycle, not an abstraction
// over SQLite.
package sqlitepool
