// Package watch implements the live fleet monitor TUI behind `muster watch`.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI. A single default theme
// today, but keeping the colors in one place makes adding more trivial.
type Theme struct {
	// Agent status colors
	StatusRunning    lipgloss.Style
	StatusCompleted  lipgloss.Style
	StatusErrored    lipgloss.Style
	StatusTerminated lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	// Indicators
	PulseActive   lipgloss.Style
	PulseInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusRunning:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusErrored:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusTerminated: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		PulseActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		PulseInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}
