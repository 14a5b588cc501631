// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siphonfs/siphon/lib/cache"
	"github.com/siphonfs/siphon/lib/clock"
	"github.com/siphonfs/siphon/lib/config"
	"github.com/siphonfs/siphon/lib/eventlog"
	"github.com/siphonfs/siphon/lib/fuseadapter"
	"github.com/siphonfs/siphon/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the daemon's structured logger: JSON on stderr.
func newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

func run() error {
	var showVersion bool
	var configPath string
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "path to the siphon config file (overrides SIPHON_CONFIG)")
	flag.Parse()

	if showVersion {
		fmt.Printf("siphon-daemon %s\n", version.Info())
		return nil
	}

	logger := newLogger()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.EnsurePaths(); err != nil {
		return fmt.Errorf("preparing cache/mount directories: %w", err)
	}

	clk := clock.Real()
	coreConfig, err := cfg.ToCoreConfig(clk)
	if err != nil {
		return fmt.Errorf("building core config: %w", err)
	}

	core := cache.New(coreConfig)
	subscribeLogger(core.Events(), logger)

	var eventLog *eventlog.Log
	if eventLogPath := cfg.EventLogPath(); eventLogPath != "" {
		eventLog, err = eventlog.Open(eventlog.Config{Path: eventLogPath, Clock: clk, Logger: logger})
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		defer eventLog.Close()
		eventLog.Subscribe(core.Events(), logger)
		logger.Info("event log enabled", "path", eventLogPath)
	}

	server, err := fuseadapter.Mount(fuseadapter.Options{
		Mountpoint: cfg.Paths.MountPoint,
		Core:       core,
		SourceRoot: cfg.Paths.SourceRoot,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting union filesystem: %w", err)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	cleanSignals := make(chan os.Signal, 1)
	signal.Notify(cleanSignals, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(cleanSignals)

	// Startup reconciliation pass: a changed clean_after/clean_ignore
	// setting takes effect immediately rather than waiting for the
	// first tick.
	core.Clean()

	cleanInterval, err := cfg.CleanIntervalDuration()
	if err != nil {
		return fmt.Errorf("parsing clean interval: %w", err)
	}

	done := make(chan struct{})
	go runCleanLoop(ctx, core, eventLog, clk, cleanInterval, cfg.Paths.EventLogMaxRows, cleanSignals, done, logger)

	logger.Info("siphon daemon running",
		"source_root", cfg.Paths.SourceRoot,
		"cache_root", cfg.Paths.CacheRoot,
		"mount_point", cfg.Paths.MountPoint,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	<-done

	if err := server.Unmount(); err != nil {
		logger.Error("failed to unmount union filesystem", "error", err)
	}

	core.Flush()
	core.Close()

	return nil
}

// runCleanLoop drives Core.Clean on both the configured tick interval
// and an out-of-band SIGHUP/SIGUSR1 request, until ctx is cancelled.
// interval of zero disables the ticker; signal-triggered cleans still
// work in that case. If eventLog is non-nil, each clean pass is
// followed by trimming the log to maxRows so a long-running daemon's
// event history doesn't grow unbounded.
func runCleanLoop(ctx context.Context, core *cache.Core, eventLog *eventlog.Log, clk clock.Clock, interval time.Duration, maxRows int64, signals <-chan os.Signal, done chan<- struct{}, logger *slog.Logger) {
	defer close(done)

	runClean := func() {
		core.Clean()
		if eventLog != nil && maxRows > 0 {
			core.Flush()
			if err := eventLog.Trim(context.Background(), maxRows); err != nil {
				logger.Warn("eventlog: trim failed", "error", err)
			}
		}
	}

	var tickC <-chan time.Time
	if interval > 0 {
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
			runClean()
		case <-signals:
			runClean()
		}
	}
}

// subscribeLogger attaches a structured-logging subscriber to bus,
// turning every cache event into a log line. The core itself never
// writes a log; logging is purely this external observer's job, so
// running without it (or swapping it for eventlog.Log.Subscribe)
// leaves the core's behavior unchanged.
func subscribeLogger(bus *cache.Bus, logger *slog.Logger) {
	bus.On(cache.EventHit, func(arg any) { logger.Info("cache hit", "path", arg) })
	bus.On(cache.EventMiss, func(arg any) { logger.Info("cache miss", "path", arg) })
	bus.On(cache.EventRead, func(arg any) { logger.Debug("non-cacheable read", "path", arg) })
	bus.On(cache.EventCache, func(arg any) { logger.Info("cached", "path", arg) })
	bus.On(cache.EventUncache, func(arg any) { logger.Info("evicted", "path", arg) })
	bus.On(cache.EventRequest, func(arg any) {
		args := arg.(cache.RequestArgs)
		logger.Debug("preload requested", "reason", args.Reason.String(), "path", args.Path)
	})
	bus.On(cache.EventError, func(arg any) {
		logger.Warn("cache mutator error", "error", arg.(error))
	})
}
