// Package models holds the records that flow through the harvesting
// pipeline: feed entries and per-entry download outcomes.
package models

import (
	"time"

	errs "yggharvest/pkg/errors"
)

// Entry is one listing from the feed.
type Entry struct {
	Title       string    `json:"title" yaml:"title"`
	Link        string    `json:"link,omitempty" yaml:"link,omitempty"`
	ArtifactURL string    `json:"torrent_link,omitempty" yaml:"torrent_link,omitempty"`
	GUID        string    `json:"guid,omitempty" yaml:"guid,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	InfoHash    string    `json:"info_hash,omitempty" yaml:"info_hash,omitempty"`
	MagnetURI   string    `json:"magnet_uri,omitempty" yaml:"magnet_uri,omitempty"`
	Size        string    `json:"size,omitempty" yaml:"size,omitempty"`
	Seeds       *int      `json:"seeds,omitempty" yaml:"seeds,omitempty"`
	Peers       *int      `json:"peers,omitempty" yaml:"peers,omitempty"`
	PubDate     string    `json:"pub_date,omitempty" yaml:"pub_date,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	ParsedAt    time.Time `json:"parsed_at" yaml:"parsed_at"`

	// Fallback marks entries recovered by link scraping rather than a
	// well-formed feed document. Only Title and ArtifactURL are set.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	Downloaded   bool   `json:"downloaded" yaml:"downloaded"`
	DownloadPath string `json:"download_path,omitempty" yaml:"download_path,omitempty"`
}

// Downloadable reports whether the entry carries a direct artifact URL.
func (e *Entry) Downloadable() bool {
	return e.ArtifactURL != ""
}

// Key identifies the entry across runs, preferring the most stable field.
func (e *Entry) Key() string {
	switch {
	case e.InfoHash != "":
		return "hash:" + e.InfoHash
	case e.GUID != "":
		return "guid:" + e.GUID
	case e.Link != "":
		return "link:" + e.Link
	case e.ArtifactURL != "":
		return "url:" + e.ArtifactURL
	default:
		return "title:" + e.Title
	}
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Seeds != nil {
		v := *e.Seeds
		c.Seeds = &v
	}
	if e.Peers != nil {
		v := *e.Peers
		c.Peers = &v
	}
	return &c
}

// IntPtr is a small helper for optional counts.
func IntPtr(v int) *int { return &v }

// DownloadResult is the outcome of one submitted entry.
type DownloadResult struct {
	Title          string         `json:"title"`
	Entry          *Entry         `json:"-"`
	Filename       string         `json:"filename"`
	Path           string         `json:"path,omitempty"`
	Bytes          int64          `json:"bytes"`
	Checksum       string         `json:"sha256,omitempty"`
	AlreadyPresent bool           `json:"already_present,omitempty"`
	Suspect        bool           `json:"suspect,omitempty"`
	Reason         errs.ErrorType `json:"reason,omitempty"`
	Err            error          `json:"-"`
	Duration       time.Duration  `json:"duration"`
}

// Succeeded is true when an artifact is on disk for the entry. An
// already-present file may still be Suspect.
func (r DownloadResult) Succeeded() bool {
	return r.Path != "" && r.Reason == ""
}

// Summary aggregates a batch of results.
type Summary struct {
	Total          int   `json:"total" yaml:"total"`
	Downloaded     int   `json:"downloaded" yaml:"downloaded"`
	AlreadyPresent int   `json:"already_present" yaml:"already_present"`
	Failed         int   `json:"failed" yaml:"failed"`
	FormatMismatch int   `json:"format_mismatch" yaml:"format_mismatch"`
	Bytes          int64 `json:"bytes" yaml:"bytes"`
}

// Summarize counts outcomes. A format mismatch counts only as a mismatch;
// the file exists but is suspect.
func Summarize(results []DownloadResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Reason == errs.ErrorTypeFormatMismatch:
			s.FormatMismatch++
		case r.Reason != "":
			s.Failed++
		case r.AlreadyPresent:
			s.AlreadyPresent++
		default:
			s.Downloaded++
			s.Bytes += r.Bytes
		}
	}
	return s
}
