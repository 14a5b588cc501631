// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the caching policy engine for a read-only
// union filesystem that overlays a fast local cache directory on a
// slow source directory.
//
// The package is organized around six cooperating components:
//
//   - [Locator]: resolves a virtual path to a [PathInfo], backed by a
//     small most-recently-used cache to amortize repeated stat calls.
//   - The open-file tracker, embedded in [Core]: per-descriptor state
//     that arms a [Trigger] on open and watches read volume.
//   - [Trigger]: a single-firing, cancellable latch gating a preload.
//   - [Siblings]: computes the set of sibling files to preload
//     alongside a triggered path.
//   - The cache mutator, embedded in [Core]: a single-concurrency FIFO
//     executor that copies files into the cache and evicts stale ones.
//   - [Bus]: named event emission to external observers.
//
// [Core] wires all of these together and is the type that a VFS
// adapter (a FUSE filesystem, typically — deliberately not
// implemented by this package) drives via [Core.Locate],
// [Core.OnOpen], [Core.OnRead], and [Core.OnClose].
//
// The package does not implement any VFS operations, argument
// parsing, configuration loading, or human-readable reporting — those
// are the responsibility of the surrounding program. This package is
// reactive: it drives no goroutines of its own beyond the single
// background executor that serializes cache mutations and a
// short-lived size-fetch goroutine per tracked open, and it owns no
// global mutable state — every [Core] instance is independent.
package cache
