// Package tui renders a download batch full screen with bubbletea.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"yggharvest/pkg/models"
)

// TUI drives a bubbletea program from download hooks. Its methods are safe
// to call from worker goroutines.
type TUI struct {
	program *tea.Program
	model   *Model
}

// New prepares a program for a batch of expected downloads.
func New(title string, expected, concurrency int, opts ...tea.ProgramOption) *TUI {
	model := NewModel(title, expected, concurrency)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// Run blocks until the batch finishes or the user quits.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit stops the program.
func (t *TUI) Quit() { t.program.Quit() }

func (t *TUI) BatchStarted(total int) {
	t.program.Send(BatchStartMsg{Total: total})
}

func (t *TUI) DownloadStarted(name string, total int64) {
	t.program.Send(DownloadStartMsg{Name: name, Total: total})
}

func (t *TUI) DownloadProgress(name string, percent float64, downloaded, total int64) {
	t.program.Send(DownloadProgressMsg{Name: name, Percent: percent, Downloaded: downloaded})
}

func (t *TUI) DownloadFinished(r models.DownloadResult) {
	t.program.Send(DownloadResultMsg{Result: r})
}

// Finish ends the program; the summary is printed by the caller once the
// alternate screen is gone.
func (t *TUI) Finish(models.Summary) {
	t.program.Send(FinishedMsg{})
}

// Log adds a line to the activity panel.
func (t *TUI) Log(level, message string) {
	t.program.Send(LogMsg{Level: level, Message: message})
}
