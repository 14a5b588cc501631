// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventlog durably records the caching policy engine's event
// bus to SQLite, so that a crashed or restarted daemon — or a
// separate status viewer process — can inspect recent cache activity
// without having observed it live.
//
// The source of truth for caching decisions is always the filesystem
// and the in-memory core; the event log is a best-effort audit trail,
// not a journal the core replays on startup. A gap in the log (the
// daemon was down, a write failed) is never a correctness problem for
// [lib/cache.Core] — only for anyone reading the log's history.
//
// [Log.Subscribe] attaches every recorded event kind to a
// [lib/cache.Bus] and uses the WAL-mode pool from [lib/sqlitepool].
package eventlog
