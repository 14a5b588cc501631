// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for siphon
// components.
//
// Configuration is loaded from a single file specified by either the
// SIPHON_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${SIPHON_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths and Cache sections
//   - [Default] -- returns a Config with sensible zero-values
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// The only siphon packages it imports are lib/cache and lib/clock,
// for [Config.ToCoreConfig].
package config
