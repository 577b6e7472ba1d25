package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"yggharvest/pkg/ui"
)

func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{
		headerStyle.Render(fmt.Sprintf("%s yggharvest • %s", m.spinner.View(), m.title)),
		m.renderOverall(),
	}

	colWidth := (m.width - 4) / 2
	sections = append(sections, lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderActive(colWidth),
		"  ",
		m.renderLogs(colWidth),
	))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • ? help"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderOverall() string {
	m.bar.Width = m.width - 4
	if m.bar.Width < 10 {
		m.bar.Width = 10
	}

	s := m.Summary()
	stats := []string{
		fmt.Sprintf("%s %s", labelStyle.Render("Done:"), valueStyle.Render(fmt.Sprintf("%d/%d", s.Total, m.expected))),
		fmt.Sprintf("%s %s", labelStyle.Render("New:"), successStyle.Render(fmt.Sprint(s.Downloaded))),
		fmt.Sprintf("%s %s", labelStyle.Render("Present:"), valueStyle.Render(fmt.Sprint(s.AlreadyPresent))),
		fmt.Sprintf("%s %s", labelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprint(s.Failed))),
		fmt.Sprintf("%s %s", labelStyle.Render("Suspect:"), warningStyle.Render(fmt.Sprint(s.FormatMismatch))),
		fmt.Sprintf("%s %s", labelStyle.Render("Size:"), valueStyle.Render(ui.FormatBytes(s.Bytes))),
		fmt.Sprintf("%s %s", labelStyle.Render("Elapsed:"), valueStyle.Render(ui.FormatDuration(time.Since(m.startTime)))),
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.bar.ViewAs(m.overall()),
		strings.Join(stats, "  "),
	)
}

func (m *Model) renderActive(width int) string {
	title := titleStyle.Render(fmt.Sprintf(" ACTIVE (%d workers) ", m.concurrency))
	active := m.itemsIn(DownloadActive)
	if len(active) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Waiting...")),
		)
	}

	lines := make([]string, 0, len(active))
	for _, item := range active {
		progress := mutedStyle.Render("size unknown")
		if item.Total > 0 {
			progress = fmt.Sprintf("%s %3.0f%% of %s",
				ui.Bar(item.Percent/100, 15), item.Percent, ui.FormatBytes(item.Total))
		}
		lines = append(lines, activeItemStyle.Render(ui.Truncate(item.Name, width-6)), "  "+progress)
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderLogs(width int) string {
	title := titleStyle.Render(" ACTIVITY ")

	start := len(m.logMessages) - 12
	if start < 0 {
		start = 0
	}
	var lines []string
	for _, l := range m.logMessages[start:] {
		level := lipgloss.NewStyle().Foreground(l.Color).Bold(true).Render(fmt.Sprintf("%-7s", l.Level))
		lines = append(lines, fmt.Sprintf("%s %s %s",
			mutedStyle.Render(l.Time.Format("15:04:05")), level, ui.Truncate(l.Message, width-22)))
	}
	content := strings.Join(lines, "\n")
	if content == "" {
		content = mutedStyle.Render("No activity yet...")
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderHelp() string {
	help := strings.Join([]string{
		"q / ctrl+c   quit (downloads in progress are cancelled)",
		"?            toggle this help",
		"ctrl+l       clear the activity panel",
	}, "\n")
	return panelStyle.Width(m.width - 2).Render(help)
}
