package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"yggharvest/pkg/models"
	"yggharvest/pkg/stats"
)

const titleWidth = 60

// PrintEntries writes entries as an aligned table.
func PrintEntries(w io.Writer, entries []*models.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, Yellow("No entries."))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tSIZE\tSEEDS\tPEERS\tDL")
	for i, e := range entries {
		dl := ""
		if e.Downloaded {
			dl = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, Truncate(e.Title, titleWidth), orDash(e.Size), count(e.Seeds), count(e.Peers), dl)
	}
	tw.Flush()
}

// PrintSummary writes a one-block download summary.
func PrintSummary(w io.Writer, s models.Summary) {
	fmt.Fprintf(w, "%s %d downloaded (%s), %d already present",
		Green("✓"), s.Downloaded, FormatBytes(s.Bytes), s.AlreadyPresent)
	if s.FormatMismatch > 0 {
		fmt.Fprintf(w, ", %s", Yellow(fmt.Sprintf("%d not torrent files", s.FormatMismatch)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, ", %s", Red(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintln(w)
}

// PrintFailures lists results that did not produce a valid artifact.
func PrintFailures(w io.Writer, results []models.DownloadResult) {
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		reason := string(r.Reason)
		if r.Err != nil {
			reason = r.Err.Error()
		}
		fmt.Fprintf(w, "  %s %s: %s\n", Red("✗"), Truncate(r.Title, titleWidth), Dim(reason))
	}
}

// PrintStats writes a directory summary followed by the newest files.
func PrintStats(w io.Writer, dir string, s *stats.Stats, limit int) {
	fmt.Fprintf(w, "%s: %s\n", Cyan("Directory"), Yellow(dir))
	fmt.Fprintf(w, "%s: %s\n", Cyan("Files"), Yellow(fmt.Sprint(s.TotalFiles)))
	fmt.Fprintf(w, "%s: %s\n", Cyan("Total size"), Yellow(fmt.Sprintf("%.2f MB", s.TotalSizeMB)))
	if len(s.Files) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODIFIED\tSIZE\tNAME")
	for i, f := range s.Files {
		if limit > 0 && i == limit {
			fmt.Fprintf(tw, "\t\t... and %d more\n", len(s.Files)-limit)
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Modified.Format("2006-01-02 15:04"), FormatBytes(f.Size), f.Name)
	}
	tw.Flush()
}

func count(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
