package ui

import "yggharvest/pkg/models"

// Reporter follows a download batch. Both the progress line and the
// full-screen TUI implement it.
type Reporter interface {
	BatchStarted(total int)
	DownloadStarted(name string, total int64)
	DownloadProgress(name string, percent float64, downloaded, total int64)
	DownloadFinished(r models.DownloadResult)
	Finish(s models.Summary)
}
