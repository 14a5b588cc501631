// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/siphonfs/siphon/lib/cache"
	"github.com/siphonfs/siphon/lib/clock"
)

// Config is the master configuration for a siphon daemon instance.
type Config struct {
	// Paths configures the source, cache, and mount locations.
	Paths PathsConfig `yaml:"paths"`

	// Cache configures the caching policy engine's defaults: how long
	// an untouched cached file survives and which paths the cleaner
	// leaves alone.
	Cache CacheConfig `yaml:"cache"`
}

// PathsConfig configures directory and mount locations.
type PathsConfig struct {
	// SourceRoot is the slow, authoritative upstream directory the
	// union filesystem mirrors.
	SourceRoot string `yaml:"source_root"`

	// CacheRoot is the fast local mirror directory. Nothing outside
	// it is ever written or removed by the Cache Mutator.
	CacheRoot string `yaml:"cache_root"`

	// MountPoint is where the FUSE union filesystem is mounted.
	MountPoint string `yaml:"mount_point"`

	// EventLog is the path to the sqlite database that durably
	// records bus events for later inspection. Empty disables
	// persistence.
	EventLog string `yaml:"event_log"`

	// EventLogMaxRows bounds how many rows the event log keeps,
	// trimmed to the newest EventLogMaxRows after each clean pass.
	// Zero disables trimming. Default 100000.
	EventLogMaxRows int64 `yaml:"event_log_max_rows"`
}

// CacheConfig configures the caching policy engine. Field names match
// the vocabulary of the "Initial configuration" parameters:
// preloadSiblings, preloadFilter, preloadRead, preloadOpen,
// cleanAfter, cleanIgnore, mruSize. Durations and regexes are stored
// as strings in the file and parsed by [Config.ToCoreConfig].
type CacheConfig struct {
	// PreloadSiblings is the number of siblings after the triggering
	// path to preload alongside it. Default 3.
	PreloadSiblings int `yaml:"preload_siblings"`

	// PreloadFilter is a regex on basename selecting cacheable
	// files. Default `^.*\.flac$`.
	PreloadFilter string `yaml:"preload_filter"`

	// PreloadRead is the percentage of a file's size that must be
	// read before the volume-based trigger fires, in [0, 100].
	// Default 50.
	PreloadRead int `yaml:"preload_read"`

	// PreloadOpen is how long a cacheable file must stay open
	// before the time-based trigger fires. Default 2s.
	PreloadOpen string `yaml:"preload_open"`

	// CleanAfter is the cleaner's staleness threshold. Default 6h.
	CleanAfter string `yaml:"clean_after"`

	// CleanIgnore is a regex on basename exempting matches from
	// eviction regardless of age, e.g. `^.*01\.flac$` to always
	// keep first tracks. Empty exempts nothing.
	CleanIgnore string `yaml:"clean_ignore"`

	// CleanInterval is how often the daemon runs an unprompted
	// cleaner pass, independent of the VFS adapter. Default 30m.
	// This is not part of the core's own configuration; the core
	// only exposes [cache.Core.Clean] for a caller to invoke on
	// whatever schedule it likes.
	CleanInterval string `yaml:"clean_interval"`

	// MRUSize bounds the path-locator MRU. Default 10.
	MRUSize int `yaml:"mru_size"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback —
// the config file is required for SourceRoot, CacheRoot, and
// MountPoint.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			EventLogMaxRows: 100_000,
		},
		Cache: CacheConfig{
			PreloadSiblings: 3,
			PreloadFilter:   `^.*\.flac$`,
			PreloadRead:     50,
			PreloadOpen:     "2s",
			CleanAfter:      "6h",
			CleanIgnore:     "",
			CleanInterval:   "30m",
			MRUSize:         cache.DefaultMRUSize,
		},
	}
}

// Load loads configuration from the SIPHON_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults — if SIPHON_CONFIG is not
// set, this fails. This ensures deterministic, auditable
// configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("SIPHON_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SIPHON_CONFIG environment variable not set; " +
			"set it to the path of your siphon.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.SourceRoot = expandVars(c.Paths.SourceRoot, vars)
	c.Paths.CacheRoot = expandVars(c.Paths.CacheRoot, vars)
	c.Paths.MountPoint = expandVars(c.Paths.MountPoint, vars)
	c.Paths.EventLog = expandVars(c.Paths.EventLog, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.SourceRoot == "" {
		errs = append(errs, fmt.Errorf("paths.source_root is required"))
	}
	if c.Paths.CacheRoot == "" {
		errs = append(errs, fmt.Errorf("paths.cache_root is required"))
	}
	if c.Paths.MountPoint == "" {
		errs = append(errs, fmt.Errorf("paths.mount_point is required"))
	}
	if c.Cache.PreloadRead < 0 || c.Cache.PreloadRead > 100 {
		errs = append(errs, fmt.Errorf("cache.preload_read must be in [0, 100], got %d", c.Cache.PreloadRead))
	}
	if c.Cache.PreloadSiblings < 0 {
		errs = append(errs, fmt.Errorf("cache.preload_siblings must be non-negative, got %d", c.Cache.PreloadSiblings))
	}
	if c.Cache.MRUSize < 0 {
		errs = append(errs, fmt.Errorf("cache.mru_size must be non-negative, got %d", c.Cache.MRUSize))
	}
	if _, err := regexp.Compile(c.Cache.PreloadFilter); err != nil {
		errs = append(errs, fmt.Errorf("cache.preload_filter: %w", err))
	}
	if c.Cache.CleanIgnore != "" {
		if _, err := regexp.Compile(c.Cache.CleanIgnore); err != nil {
			errs = append(errs, fmt.Errorf("cache.clean_ignore: %w", err))
		}
	}
	if d, err := time.ParseDuration(c.Cache.PreloadOpen); err != nil {
		errs = append(errs, fmt.Errorf("cache.preload_open: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("cache.preload_open must not be negative, got %s", units.HumanDuration(d)))
	}
	if d, err := time.ParseDuration(c.Cache.CleanAfter); err != nil {
		errs = append(errs, fmt.Errorf("cache.clean_after: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("cache.clean_after must not be negative, got %s", units.HumanDuration(d)))
	}
	if c.Cache.CleanInterval != "" {
		if d, err := time.ParseDuration(c.Cache.CleanInterval); err != nil {
			errs = append(errs, fmt.Errorf("cache.clean_interval: %w", err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("cache.clean_interval must not be negative, got %s", units.HumanDuration(d)))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the cache root and mount point directories if
// they don't exist. SourceRoot is never created — it is the
// authoritative upstream and must already exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.CacheRoot, c.Paths.MountPoint} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// CleanIntervalDuration parses CleanInterval, returning zero if
// unset.
func (c *Config) CleanIntervalDuration() (time.Duration, error) {
	if c.Cache.CleanInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Cache.CleanInterval)
}

// EventLogPath returns the configured sqlite database path for the
// event log, joined against CacheRoot's parent if relative. An empty
// Paths.EventLog disables persistence.
func (c *Config) EventLogPath() string {
	if c.Paths.EventLog == "" {
		return ""
	}
	if filepath.IsAbs(c.Paths.EventLog) {
		return c.Paths.EventLog
	}
	return filepath.Join(filepath.Dir(c.Paths.CacheRoot), c.Paths.EventLog)
}

// ToCoreConfig translates the loaded configuration into a
// [cache.Config], parsing durations and compiling regexes. clk is
// injected separately since [Config] carries no clock of its own.
func (c *Config) ToCoreConfig(clk clock.Clock) (cache.Config, error) {
	preloadFilter, err := regexp.Compile(c.Cache.PreloadFilter)
	if err != nil {
		return cache.Config{}, fmt.Errorf("cache.preload_filter: %w", err)
	}

	var cleanIgnore *regexp.Regexp
	if c.Cache.CleanIgnore != "" {
		cleanIgnore, err = regexp.Compile(c.Cache.CleanIgnore)
		if err != nil {
			return cache.Config{}, fmt.Errorf("cache.clean_ignore: %w", err)
		}
	}

	preloadOpen, err := time.ParseDuration(c.Cache.PreloadOpen)
	if err != nil {
		return cache.Config{}, fmt.Errorf("cache.preload_open: %w", err)
	}
	cleanAfter, err := time.ParseDuration(c.Cache.CleanAfter)
	if err != nil {
		return cache.Config{}, fmt.Errorf("cache.clean_after: %w", err)
	}

	return cache.Config{
		SourceRoot:      c.Paths.SourceRoot,
		CacheRoot:       c.Paths.CacheRoot,
		PreloadFilter:   preloadFilter,
		PreloadSiblings: c.Cache.PreloadSiblings,
		PreloadRead:     c.Cache.PreloadRead,
		PreloadOpen:     preloadOpen,
		CleanAfter:      cleanAfter,
		CleanIgnore:     cleanIgnore,
		MRUSize:         c.Cache.MRUSize,
		Clock:           clk,
	}, nil
}
