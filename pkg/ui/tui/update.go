package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"yggharvest/pkg/models"
)

// BatchStartMsg announces how many downloads to expect.
type BatchStartMsg struct {
	Total int
}

// DownloadStartMsg is sent when a transfer begins.
type DownloadStartMsg struct {
	Name  string
	Total int64
}

// DownloadProgressMsg carries transfer progress.
type DownloadProgressMsg struct {
	Name       string
	Percent    float64
	Downloaded int64
}

// DownloadResultMsg is sent once per submitted entry.
type DownloadResultMsg struct {
	Result models.DownloadResult
}

// LogMsg adds a line to the activity panel.
type LogMsg struct {
	Level   string
	Message string
}

// FinishedMsg ends the batch and quits the program.
type FinishedMsg struct{}

// TickMsg refreshes elapsed time.
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case BatchStartMsg:
		m.expected = msg.Total
		m.addLog("INFO", fmt.Sprintf("%d downloads queued", msg.Total))
		return m, nil

	case DownloadStartMsg:
		m.startDownload(msg.Name, msg.Total)
		return m, nil

	case DownloadProgressMsg:
		m.updateProgress(msg.Name, msg.Percent, msg.Downloaded)
		return m, nil

	case DownloadResultMsg:
		m.finishDownload(msg.Result)
		return m, nil

	case LogMsg:
		m.addLog(msg.Level, msg.Message)
		return m, nil

	case FinishedMsg:
		m.finished = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "ctrl+l":
		m.logMessages = nil
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
