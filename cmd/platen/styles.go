package main

import "github.com/charmbracelet/lipgloss"

// Terminal styles shared across commands. The palette matches the lint
// report renderer in internal/lint.
var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	labelStyle   = lipgloss.NewStyle().Faint(true).Width(12)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)
