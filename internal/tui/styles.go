package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	// Sidecar state colors
	runningColor   = lipgloss.Color("10") // Green
	stoppedColor   = lipgloss.Color("9")  // Red
	unstartedColor = lipgloss.Color("8")  // Gray
	unknownColor   = lipgloss.Color("11") // Yellow

	// UI colors
	headerBg   = lipgloss.Color("235")
	statusBg   = lipgloss.Color("236")
	helpBg     = lipgloss.Color("234")
	errorColor = lipgloss.Color("9")
	dimColor   = lipgloss.Color("8")
	sourceFg   = lipgloss.Color("14") // Cyan
)

// Styles
var (
	runningStyle = lipgloss.NewStyle().
			Foreground(runningColor).
			Bold(true)

	stoppedStyle = lipgloss.NewStyle().
			Foreground(stoppedColor).
			Bold(true)

	unstartedStyle = lipgloss.NewStyle().
			Foreground(unstartedColor)

	unknownStyle = lipgloss.NewStyle().
			Foreground(unknownColor)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Background(headerBg).
			Padding(0, 1).
			MarginBottom(1)

	// Status bar style
	statusStyle = lipgloss.NewStyle().
			Background(statusBg).
			Padding(0, 1)

	// Help overlay style
	helpStyle = lipgloss.NewStyle().
			Background(helpBg).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	// Error indicator style
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(errorColor).
			Bold(true)

	// Dim style for timestamps
	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Source prefix on output lines
	sourceStyle = lipgloss.NewStyle().
			Foreground(sourceFg)
)
