package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/models"
)

// DownloadState tracks one artifact through the batch.
type DownloadState int

const (
	DownloadActive DownloadState = iota
	DownloadCompleted
	DownloadSkipped
	DownloadFailed
)

// DownloadItem is one artifact shown in the TUI.
type DownloadItem struct {
	Name       string
	Total      int64
	Downloaded int64
	Percent    float64
	State      DownloadState
	StartTime  time.Time
	Err        error
}

// LogMessage is a line in the activity panel.
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model. All mutation happens in Update, so no
// locking is needed.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	title       string
	expected    int
	concurrency int

	items map[string]*DownloadItem
	order []string

	summary   models.Summary
	bytes     int64
	startTime time.Time
	finished  bool

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel returns a model for a batch of expected downloads.
func NewModel(title string, expected, concurrency int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		spinner:        s,
		bar:            progress.New(progress.WithDefaultGradient()),
		title:          title,
		expected:       expected,
		concurrency:    concurrency,
		items:          make(map[string]*DownloadItem),
		startTime:      time.Now(),
		maxLogMessages: 50,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) startDownload(name string, total int64) {
	item, ok := m.items[name]
	if !ok {
		item = &DownloadItem{Name: name}
		m.items[name] = item
		m.order = append(m.order, name)
	}
	item.Total = total
	item.State = DownloadActive
	item.StartTime = time.Now()
}

func (m *Model) updateProgress(name string, percent float64, downloaded int64) {
	if item, ok := m.items[name]; ok {
		item.Percent = percent
		item.Downloaded = downloaded
	}
}

func (m *Model) finishDownload(r models.DownloadResult) {
	item, ok := m.items[r.Filename]
	if !ok {
		item = &DownloadItem{Name: r.Filename}
		m.items[r.Filename] = item
		m.order = append(m.order, r.Filename)
	}

	m.summary.Total++
	switch {
	case r.AlreadyPresent && r.Reason == "":
		item.State = DownloadSkipped
		m.summary.AlreadyPresent++
		m.addLog("INFO", "Already present: "+r.Filename)
	case r.Succeeded():
		item.State = DownloadCompleted
		item.Percent = 100
		m.summary.Downloaded++
		m.bytes += r.Bytes
		m.addLog("SUCCESS", "Downloaded: "+r.Filename)
	default:
		item.State = DownloadFailed
		item.Err = r.Err
		msg := "Failed: " + r.Filename
		if r.Err != nil {
			msg += " - " + r.Err.Error()
		}
		if r.Reason == errs.ErrorTypeFormatMismatch {
			m.summary.FormatMismatch++
		} else {
			m.summary.Failed++
		}
		m.addLog("ERROR", msg)
	}
}

func (m *Model) addLog(level, message string) {
	color := dim
	switch level {
	case "ERROR":
		color = red
	case "WARN":
		color = orange
	case "SUCCESS":
		color = green
	case "INFO":
		color = accent
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

func (m *Model) itemsIn(state DownloadState) []*DownloadItem {
	var out []*DownloadItem
	for _, name := range m.order {
		if item := m.items[name]; item.State == state {
			out = append(out, item)
		}
	}
	return out
}

// Done reports how many results arrived.
func (m *Model) Done() int { return m.summary.Total }

// Summary returns the counts collected so far.
func (m *Model) Summary() models.Summary {
	s := m.summary
	s.Bytes = m.bytes
	return s
}

// overall returns the fraction of the batch that is finished.
func (m *Model) overall() float64 {
	if m.expected <= 0 {
		return 0
	}
	f := float64(m.summary.Total) / float64(m.expected)
	if f > 1 {
		f = 1
	}
	return f
}
