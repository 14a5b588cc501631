// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/charmbracelet/lipgloss"

var (
	colorBg      = lipgloss.Color("#0d1117")
	colorBorder  = lipgloss.Color("#30363d")
	colorText    = lipgloss.Color("#c9d1d9")
	colorTextDim = lipgloss.Color("#8b949e")
	colorAccent  = lipgloss.Color("#58a6ff")
	colorSuccess = lipgloss.Color("#3fb950")
	colorWarning = lipgloss.Color("#d29922")
	colorDanger  = lipgloss.Color("#f85149")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f0f6fc")).
			Background(colorAccent).
			Padding(0, 2)

	statLabelStyle = lipgloss.NewStyle().Foreground(colorTextDim)
	statValueStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(colorTextDim)
	errStyle  = lipgloss.NewStyle().Foreground(colorDanger)

	eventColor = map[string]lipgloss.Color{
		"hit":     colorSuccess,
		"miss":    colorWarning,
		"cache":   colorAccent,
		"uncache": colorTextDim,
		"error":   colorDanger,
		"request": colorAccent,
		"read":    colorTextDim,
	}
)

func styleForEvent(event string) lipgloss.Style {
	color, ok := eventColor[event]
	if !ok {
		color = colorText
	}
	return lipgloss.NewStyle().Foreground(color)
}
