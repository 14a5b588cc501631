// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/siphonfs/siphon/lib/config"
	"github.com/siphonfs/siphon/lib/eventlog"
	"github.com/siphonfs/siphon/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var showVersion bool
	var configPath string
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "path to the siphon config file (overrides SIPHON_CONFIG)")
	flag.Parse()

	if showVersion {
		fmt.Printf("siphon-top %s\n", version.Info())
		return nil
	}

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

	eventLogPath := cfg.EventLogPath()
	if eventLogPath == "" {
		return fmt.Errorf("paths.event_log is not set in %s; siphon-top has nothing to read", configPath)
	}

	log, err := eventlog.Open(eventlog.Config{Path: eventLogPath})
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer log.Close()

	model := newModel(log, cfg.Paths.CacheRoot)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
