// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuseadapter mounts a [lib/cache.Core]-backed union as a
// read-only FUSE filesystem.
//
// The mounted namespace mirrors the directories and regular files
// under the core's source root — mounting never adds or renames
// anything; source entries of any other type (symlinks, devices,
// sockets) are left out. Cache
// occupancy is invisible at the namespace level; it only changes
// where bytes physically come from, never what paths exist.
//
// Every regular-file open is routed through [lib/cache.Core.OnOpen],
// every read through [lib/cache.Core.OnRead], and every release
// through [lib/cache.Core.OnClose], so kernel-driven traffic drives
// the same policy engine a test driving Core directly would exercise.
// The adapter itself does no caching decisions; it only translates
// FUSE calls into Core calls and serves bytes from whichever physical
// location [lib/cache.Core.Locate] names at the time of the read.
package fuseadapter
