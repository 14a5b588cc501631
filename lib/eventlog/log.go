// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/siphonfs/siphon/lib/cache"
	"github.com/siphonfs/siphon/lib/clock"
	"github.com/siphonfs/siphon/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	time     INTEGER NOT NULL,
	event    TEXT NOT NULL,
	path     TEXT NOT NULL,
	reason   TEXT,
	message  TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
CREATE INDEX IF NOT EXISTS idx_events_event ON events(event, time);
`

// Record is one durably recorded bus event.
type Record struct {
	ID      int64
	Time    int64 // Unix nanoseconds
	Event   cache.Event
	Path    string
	Reason  string // set only for EventRequest
	Message string // set only for EventError
}

// Config holds the parameters for opening a Log.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 2: the event log is write-mostly with occasional reads from a
	// status viewer, not a high-concurrency read workload.
	PoolSize int

	// Clock provides the current time stamped on each record.
	// Defaults to [clock.Real].
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Log is a durable, append-only record of [cache.Bus] events.
type Log struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// Open creates or opens the event log database at cfg.Path, creating
// the schema if it does not already exist.
func Open(cfg Config) (*Log, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: %w", err)
	}

	return &Log{pool: pool, clock: clk}, nil
}

// Close closes the underlying connection pool.
func (l *Log) Close() error {
	return l.pool.Close()
}

// Subscribe attaches handlers for every cache event kind to bus,
// inserting a row per emission. Insert failures are logged to
// logger (if non-nil) and otherwise swallowed — a failing event-log
// write must never propagate back into the core's synchronous
// delivery path and stall the executor.
func (l *Log) Subscribe(bus *cache.Bus, logger *slog.Logger) {
	record := func(event cache.Event, path, reason, message string) {
		if err := l.insert(context.Background(), event, path, reason, message); err != nil && logger != nil {
			logger.Warn("eventlog: write failed", "event", event, "path", path, "error", err)
		}
	}

	bus.On(cache.EventHit, func(arg any) { record(cache.EventHit, arg.(string), "", "") })
	bus.On(cache.EventMiss, func(arg any) { record(cache.EventMiss, arg.(string), "", "") })
	bus.On(cache.EventRead, func(arg any) { record(cache.EventRead, arg.(string), "", "") })
	bus.On(cache.EventCache, func(arg any) { record(cache.EventCache, arg.(string), "", "") })
	bus.On(cache.EventUncache, func(arg any) { record(cache.EventUncache, arg.(string), "", "") })
	bus.On(cache.EventRequest, func(arg any) {
		args := arg.(cache.RequestArgs)
		record(cache.EventRequest, args.Path, args.Reason.String(), "")
	})
	bus.On(cache.EventError, func(arg any) {
		record(cache.EventError, "", "", arg.(error).Error())
	})
}

func (l *Log) insert(ctx context.Context, event cache.Event, path, reason, message string) error {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer l.pool.Put(conn)

	return sqlitex.Execute(conn,
		"INSERT INTO events (time, event, path, reason, message) VALUES (?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{l.clock.Now().UnixNano(), string(event), path, reason, message},
		})
}

// Recent returns the most recently recorded events, newest first,
// bounded by limit.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer l.pool.Put(conn)

	var records []Record
	err = sqlitex.Execute(conn,
		"SELECT id, time, event, path, reason, message FROM events ORDER BY id DESC LIMIT ?",
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, Record{
					ID:      stmt.ColumnInt64(0),
					Time:    stmt.ColumnInt64(1),
					Event:   cache.Event(stmt.ColumnText(2)),
					Path:    stmt.ColumnText(3),
					Reason:  stmt.ColumnText(4),
					Message: stmt.ColumnText(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("eventlog: recent: %w", err)
	}
	return records, nil
}

// CountByEvent returns the number of recorded rows for each event
// kind, for a status viewer's summary counters.
func (l *Log) CountByEvent(ctx context.Context) (map[cache.Event]int64, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer l.pool.Put(conn)

	counts := make(map[cache.Event]int64)
	err = sqlitex.Execute(conn, "SELECT event, COUNT(*) FROM events GROUP BY event", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			counts[cache.Event(stmt.ColumnText(0))] = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: count by event: %w", err)
	}
	return counts, nil
}

// Trim deletes all but the newest keep rows, for periodic
// housekeeping by the daemon.
func (l *Log) Trim(ctx context.Context, keep int64) error {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer l.pool.Put(conn)

	return sqlitex.Execute(conn,
		"DELETE FROM events WHERE id <= (SELECT COALESCE(MAX(id), 0) FROM events) - ?",
		&sqlitex.ExecOptions{Args: []any{keep}})
}
