package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#00B4D8")
	magenta = lipgloss.Color("#C77DFF")
	green   = lipgloss.Color("#57CC99")
	yellow  = lipgloss.Color("#FFD166")
	orange  = lipgloss.Color("#F4A261")
	red     = lipgloss.Color("#EF476F")
	dim     = lipgloss.Color("#8D99AE")

	headerStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(magenta).
			Foreground(lipgloss.Color("#10002B")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(yellow)

	successStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(orange).
			Bold(true)

	activeItemStyle = lipgloss.NewStyle().
			Foreground(green).
			PaddingLeft(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(dim)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 0, 0, 1)
)
