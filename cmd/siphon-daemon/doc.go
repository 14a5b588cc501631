// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Command siphon-daemon mounts a siphon union filesystem and runs its
// caching policy engine for the life of the process.
//
// On startup the daemon loads configuration (see lib/config), mounts
// the FUSE union at the configured mount point (see lib/fuseadapter),
// runs one reconciliation clean pass so a changed clean_after or
// clean_ignore setting takes effect immediately, and then starts a
// ticker that re-runs the clean pass on the configured interval.
//
// SIGINT and SIGTERM trigger a graceful shutdown: the FUSE mount is
// unmounted, any in-flight cache mutator work finishes, and the
// process exits. SIGHUP and SIGUSR1 trigger an immediate clean pass
// without otherwise disturbing the running daemon, for operators who
// don't want to wait for the next tick.
package main
