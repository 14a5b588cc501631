// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Command siphon-top is a terminal status viewer for a running siphon
// daemon. It reads the same config file the daemon loads, queries the
// durable event log for hit/miss/cache/uncache/error counts and the
// most recent events, and walks the cache root to report occupancy
// on disk.
//
// siphon-top is a separate process from siphon-daemon and never talks
// to it directly; the event log database is the only channel between
// them, so the viewer works even against a daemon that was restarted
// since the last event, and multiple viewers can run concurrently
// against one daemon.
package main
