package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stagetrack/internal/stages"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusOverdue = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleStatusNoTimeline = lipgloss.NewStyle().
				Foreground(lipgloss.Color("111"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))
)

// StatusStyle returns the style used for a countdown status.
func StatusStyle(status stages.CountdownStatus) lipgloss.Style {
	switch status {
	case stages.CountdownInProgress:
		return StyleStatusRunning
	case stages.CountdownCompleted:
		return StyleStatusComplete
	case stages.CountdownOverdue:
		return StyleStatusOverdue
	case stages.CountdownNoTimeline:
		return StyleStatusNoTimeline
	default:
		return StyleStatusPending
	}
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status stages.CountdownStatus) string {
	switch status {
	case stages.CountdownInProgress:
		return StyleStatusRunning.Render("●")
	case stages.CountdownCompleted:
		return StyleStatusComplete.Render("✓")
	case stages.CountdownOverdue:
		return StyleStatusOverdue.Render("!")
	case stages.CountdownNoTimeline:
		return StyleStatusNoTimeline.Render("◆")
	default:
		return StyleStatusPending.Render("○")
	}
}
