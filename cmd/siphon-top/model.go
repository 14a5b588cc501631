// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	units "github.com/docker/go-units"

	"github.com/siphonfs/siphon/lib/eventlog"
)

const (
	refreshInterval  = time.Second
	recentEventLimit = 20
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// model is the Bubble Tea model driving siphon-top's display. It owns
// no mutable cache state of its own: every value shown is re-derived
// from the event log and the cache root on each refresh tick.
type model struct {
	log       *eventlog.Log
	cacheRoot string

	counts      map[string]int64
	recent      []eventlog.Record
	cacheSize   int64
	cacheFiles  int
	lastRefresh time.Time
	err         error

	width  int
	height int
}

func newModel(log *eventlog.Log, cacheRoot string) model {
	return model{
		log:       log,
		cacheRoot: cacheRoot,
		counts:    make(map[string]int64),
		width:     100,
		height:    30,
	}
}

type refreshMsg struct {
	counts     map[string]int64
	recent     []eventlog.Record
	cacheSize  int64
	cacheFiles int
	at         time.Time
	err        error
}

type tickMsg struct{}

func (m model) Init() tea.Cmd {
	return m.refresh
}

// refresh queries the event log and walks the cache root. Run as a
// tea.Cmd so it never blocks the UI loop.
func (m model) refresh() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts := make(map[string]int64)
	if raw, err := m.log.CountByEvent(ctx); err != nil {
		return refreshMsg{err: fmt.Errorf("querying event counts: %w", err)}
	} else {
		for event, count := range raw {
			counts[string(event)] = count
		}
	}

	recent, err := m.log.Recent(ctx, recentEventLimit)
	if err != nil {
		return refreshMsg{err: fmt.Errorf("querying recent events: %w", err)}
	}

	size, files, err := diskUsage(m.cacheRoot)
	if err != nil {
		return refreshMsg{err: fmt.Errorf("walking cache root: %w", err)}
	}

	return refreshMsg{counts: counts, recent: recent, cacheSize: size, cacheFiles: files, at: time.Now()}
}

func diskUsage(root string) (size int64, files int, err error) {
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		size += info.Size()
		files++
		return nil
	})
	if walkErr != nil {
		return 0, 0, walkErr
	}
	return size, files, nil
}

func tickAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.counts = msg.counts
			m.recent = msg.recent
			m.cacheSize = msg.cacheSize
			m.cacheFiles = msg.cacheFiles
			m.lastRefresh = msg.at
		}
		return m, tickAfter(refreshInterval)

	case tickMsg:
		return m, m.refresh

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("siphon-top"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderCounters())
	b.WriteString("\n\n")
	b.WriteString(m.renderDisk())
	b.WriteString("\n\n")
	b.WriteString(m.renderRecent())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q quit"))

	return b.String()
}

func (m model) renderCounters() string {
	order := []string{"hit", "miss", "request", "cache", "uncache", "read", "error"}

	var rows []string
	for _, event := range order {
		count := m.counts[event]
		label := statLabelStyle.Render(fmt.Sprintf("%-8s", event))
		value := styleForEvent(event).Render(fmt.Sprintf("%d", count))
		rows = append(rows, label+" "+value)
	}

	hits, misses := m.counts["hit"], m.counts["miss"]
	if total := hits + misses; total > 0 {
		rate := float64(hits) / float64(total) * 100
		rows = append(rows, statLabelStyle.Render(fmt.Sprintf("%-8s", "hit rate"))+" "+
			statValueStyle.Render(fmt.Sprintf("%.1f%%", rate)))
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m model) renderDisk() string {
	size := units.BytesSize(float64(m.cacheSize))
	line := statLabelStyle.Render("cache on disk") + " " +
		statValueStyle.Render(fmt.Sprintf("%s (%d files)", size, m.cacheFiles))
	if !m.lastRefresh.IsZero() {
		line += "  " + helpStyle.Render("updated "+m.lastRefresh.Format("15:04:05"))
	}
	return panelStyle.Render(line)
}

func (m model) renderRecent() string {
	if len(m.recent) == 0 {
		return panelStyle.Render(helpStyle.Render("no events recorded yet"))
	}

	var rows []string
	for _, record := range m.recent {
		at := time.Unix(0, record.Time).Format("15:04:05")
		line := helpStyle.Render(at) + " " + styleForEvent(string(record.Event)).Render(fmt.Sprintf("%-8s", record.Event)) + " " + record.Path
		if record.Reason != "" {
			line += helpStyle.Render(" [" + record.Reason + "]")
		}
		if record.Message != "" {
			line += errStyle.Render(" " + record.Message)
		}
		rows = append(rows, line)
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
