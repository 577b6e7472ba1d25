package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"yggharvest/pkg/models"
)

// ProgressDisplay redraws a single status line while a batch downloads.
// In verbose mode it prints one line per finished artifact instead.
type ProgressDisplay struct {
	mu        sync.Mutex
	w         io.Writer
	label     string
	total     int
	done      int
	failed    int
	bytes     int64
	current   string
	percent   float64
	startTime time.Time
	verbose   bool
}

func NewProgressDisplay(w io.Writer, label string, total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		w:         w,
		label:     label,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// BatchStarted sets the number of downloads to expect.
func (p *ProgressDisplay) BatchStarted(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

func (p *ProgressDisplay) DownloadStarted(name string, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = name
	p.percent = 0
	if !p.verbose {
		p.printLine()
	}
}

func (p *ProgressDisplay) DownloadProgress(name string, percent float64, downloaded, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = name
	p.percent = percent
	if !p.verbose {
		p.printLine()
	}
}

func (p *ProgressDisplay) DownloadFinished(r models.DownloadResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if !r.Succeeded() {
		p.failed++
	}
	if !r.AlreadyPresent {
		p.bytes += r.Bytes
	}

	if p.verbose {
		p.printResult(r)
		return
	}
	p.printLine()
}

// Finish clears the status line and prints the summary.
func (p *ProgressDisplay) Finish(s models.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose && p.total > 0 {
		fmt.Fprintln(p.w)
	}
	PrintSummary(p.w, s)
	fmt.Fprintf(p.w, "  %s %s in %s\n", Dim("•"), FormatBytes(p.bytes), FormatDuration(time.Since(p.startTime)))
}

func (p *ProgressDisplay) printLine() {
	fraction := 0.0
	if p.total > 0 {
		fraction = float64(p.done) / float64(p.total)
	}
	line := fmt.Sprintf("%s [%s] %d/%d • %s",
		Cyan(p.label), Bar(fraction, 20), p.done, p.total, FormatBytes(p.bytes))
	if p.current != "" && p.done < p.total {
		line += fmt.Sprintf(" • %s", Truncate(p.current, 40))
		if p.percent > 0 {
			line += fmt.Sprintf(" %3.0f%%", p.percent)
		}
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) printResult(r models.DownloadResult) {
	switch {
	case r.AlreadyPresent:
		fmt.Fprintf(p.w, "%s %s %s\n", Dim("="), r.Filename, Dim("already present"))
	case r.Succeeded():
		fmt.Fprintf(p.w, "%s %s • %s\n", Green("✓"), r.Filename, FormatBytes(r.Bytes))
	default:
		reason := string(r.Reason)
		if r.Err != nil {
			reason = r.Err.Error()
		}
		fmt.Fprintf(p.w, "%s %s • %s\n", Red("✗"), r.Filename, reason)
	}
}
