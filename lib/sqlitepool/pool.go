// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a connection pool. Path is
// the only required field.
type Config struct {
	// Path is the SQLite database file. Its parent directory must
	// already exist; the file itself is created on first open.
	// ":memory:" works for tests, but pair it with PoolSize: 1 — each
	// in-memory connection is its own independent database.
	Path string

	// PoolSize caps the number of live connections. Non-positive
	// values fall back to defaultPoolSize. SQLite serializes writes
	// regardless of pool size, so a large pool only helps workloads
	// with several concurrent readers.
	PoolSize int

	// Logger receives pool lifecycle messages. A nil Logger discards
	// them.
	Logger *slog.Logger

	// OnConnect runs once per connection, right after the standard
	// pragmas are applied — the hook for schema creation or extra,
	// caller-specific pragmas. An error here discards the connection
	// and surfaces from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// defaultPoolSize is used when Config.PoolSize is unset.
func defaultPoolSize() int {
	if n := runtime.NumCPU(); n > 4 {
		return n
	}
	return 4
}

// Pool is a fixed-size set of SQLite connections, each carrying the
// same pragma set. Pool itself is safe for concurrent use; a borrowed
// connection is not — it belongs to whichever goroutine holds it
// between Take and Put.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the database file if needed and starts a pool against
// it. Connections are established lazily, on first Take, rather than
// all at once.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize()
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return applyPragmas(conn, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)

	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection, blocking until one is free or ctx is
// cancelled. Every successful Take must be matched by a Put, typically
// via defer.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. A nil conn is a no-op, so
// callers may defer Put unconditionally after a Take that might have
// failed. The caller must not touch conn again after calling Put.
func (p *Pool) Put(conn *sqlite.Conn) {
	if conn == nil {
		return
	}
	p.inner.Put(conn)
}

// Close shuts the pool down, blocking until every borrowed connection
// has been returned. Take fails on a closed pool.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

// pragma is one PRAGMA statement to run against a freshly opened
// connection.
type pragma struct {
	name  string
	value string
}

// standardPragmas is the fixed policy applied to every connection this
// pool hands out, documented in full in doc.go.
var standardPragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "OFF"},
	{"cache_size", "-8192"},
	{"mmap_size", "268435456"},
	{"temp_store", "MEMORY"},
}

// applyPragmas sets standardPragmas on conn, then runs the caller's
// OnConnect hook if one was given.
func applyPragmas(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	for _, p := range standardPragmas {
		stmt := fmt.Sprintf("PRAGMA %s=%s", p.name, p.value)
		if err := sqlitex.ExecuteTransient(conn, stmt, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", stmt, err)
		}
	}

	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}

	return nil
}
