// Package pipeline runs one harvest: fetch a category feed, parse it,
// download the matching artifacts and record the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yggharvest/internal/downloader"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/export"
	"yggharvest/pkg/feed"
	"yggharvest/pkg/filter"
	"yggharvest/pkg/history"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/metrics"
	"yggharvest/pkg/models"
	"yggharvest/pkg/retry"
	"yggharvest/pkg/session"
)

// Options tune a single run.
type Options struct {
	Criteria      *filter.Criteria
	CategoryLabel string
	// NoDownload stops after parsing; entries are still exported.
	NoDownload bool
	// NewOnly drops entries already recorded in the history ledger.
	NewOnly bool
	// NoExport skips writing the export file.
	NoExport bool
}

// Report is everything a run produced.
type Report struct {
	Category     int
	Entries      []*models.Entry
	Results      []models.DownloadResult
	Summary      models.Summary
	ExportPath   string
	FallbackUsed bool
	// Skipped counts entries dropped by NewOnly.
	Skipped  int
	Duration time.Duration
}

// Harvester wires the pipeline stages together. Only the fetcher is
// required; a nil downloader, history store or exporter disables that
// stage.
type Harvester struct {
	fetcher    *feed.Fetcher
	downloader *downloader.Orchestrator
	history    *history.Store
	exporter   *export.Exporter
	policy     *retry.Policy
	metrics    *metrics.Recorder
	logger     logger.Logger
	now        func() time.Time
}

// Option configures a Harvester.
type Option func(*Harvester)

func WithDownloader(o *downloader.Orchestrator) Option {
	return func(h *Harvester) { h.downloader = o }
}

func WithHistory(s *history.Store) Option {
	return func(h *Harvester) { h.history = s }
}

func WithExporter(e *export.Exporter) Option {
	return func(h *Harvester) { h.exporter = e }
}

// WithRetryPolicy replaces the default fetch retry policy.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(h *Harvester) { h.policy = p }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(h *Harvester) { h.metrics = r }
}

// New returns a Harvester around fetcher.
func New(fetcher *feed.Fetcher, log logger.Logger, opts ...Option) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	h := &Harvester{
		fetcher: fetcher,
		policy:  retry.DefaultPolicy(3, 2*time.Second),
		logger:  log.WithField("component", "pipeline"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.policy.Logger == nil {
		h.policy.Logger = h.logger
	}
	return h
}

// Run executes the pipeline for req. Fetch errors are returned unchanged
// in type so callers can tell an expired session from a network failure.
// Errors after the fetch (history, export) are returned together with the
// report.
func (hv *Harvester) Run(ctx context.Context, h *session.Handle, req feed.Request, opts Options) (*Report, error) {
	start := hv.now()
	report := &Report{Category: req.CategoryID}

	content, err := hv.fetch(ctx, h, req)
	if err != nil {
		return nil, err
	}

	result := feed.NewParser(h.Origin(), hv.logger).Parse(content.Body)
	report.FallbackUsed = result.FallbackUsed
	path := "strict"
	if result.FallbackUsed {
		path = "fallback"
		hv.logger.WithError(result.Warning).WarnWithFields("Feed recovered with lenient parsing", map[string]interface{}{
			"category_id": req.CategoryID,
			"entries":     len(result.Entries),
		})
	}
	hv.metrics.EntriesParsed(path, len(result.Entries))
	entries := result.Entries

	var ledger *history.Ledger
	if hv.history != nil {
		if ledger, err = hv.history.Load(); err != nil {
			return nil, err
		}
		if opts.NewOnly {
			fresh := ledger.FilterNew(entries)
			report.Skipped = len(entries) - len(fresh)
			entries = fresh
		}
	}
	report.Entries = entries

	return hv.finish(ctx, h, report, ledger, opts, start)
}

// DownloadEntries runs the download and record stages for entries that
// were obtained elsewhere, such as a previous export.
func (hv *Harvester) DownloadEntries(ctx context.Context, h *session.Handle, entries []*models.Entry, category int, opts Options) (*Report, error) {
	start := hv.now()
	report := &Report{Category: category, Entries: entries}

	var ledger *history.Ledger
	if hv.history != nil {
		var err error
		if ledger, err = hv.history.Load(); err != nil {
			return nil, err
		}
	}
	return hv.finish(ctx, h, report, ledger, opts, start)
}

func (hv *Harvester) finish(ctx context.Context, h *session.Handle, report *Report, ledger *history.Ledger, opts Options, start time.Time) (*Report, error) {
	if !opts.NoDownload && hv.downloader != nil {
		report.Results = hv.downloader.DownloadAll(ctx, h, report.Entries, opts.Criteria)
		report.Summary = models.Summarize(report.Results)
	}

	var errList []error
	if ledger != nil {
		seen := report.Entries
		if report.Results != nil {
			seen = seen[:0:0]
			for _, r := range report.Results {
				if r.Succeeded() && !r.Suspect {
					seen = append(seen, r.Entry)
				}
			}
		}
		if len(seen) > 0 {
			ledger.MarkSeen(seen, hv.now())
			if err := hv.history.Save(ledger); err != nil {
				errList = append(errList, err)
			}
		}
	}

	if hv.exporter != nil && !opts.NoExport {
		meta := export.Meta{Category: report.Category, CategoryLabel: opts.CategoryLabel}
		if report.Results != nil {
			summary := report.Summary
			meta.Summary = &summary
		}
		path, err := hv.exporter.Export(ctx, report.Entries, meta)
		if err != nil {
			errList = append(errList, err)
		}
		report.ExportPath = path
	}

	report.Duration = hv.now().Sub(start)
	hv.logger.InfoWithFields("Harvest finished", map[string]interface{}{
		"category_id": report.Category,
		"entries":     len(report.Entries),
		"downloaded":  report.Summary.Downloaded,
		"failed":      report.Summary.Failed,
		"export":      report.ExportPath,
		"duration_ms": report.Duration.Milliseconds(),
	})

	if len(errList) > 0 {
		return report, fmt.Errorf("harvest completed with errors: %w", errors.Join(errList...))
	}
	return report, nil
}

func (hv *Harvester) fetch(ctx context.Context, h *session.Handle, req feed.Request) (*feed.Content, error) {
	content, err := retry.DoWithResult(ctx, hv.policy, func(ctx context.Context) (*feed.Content, error) {
		c, err := hv.fetcher.Fetch(ctx, h, req)
		if err != nil {
			hv.metrics.FetchOutcome(string(errs.TypeOf(err)))
		}
		return c, err
	})
	if err != nil {
		hv.logger.WithError(err).ErrorWithFields("Feed fetch failed", map[string]interface{}{
			"category_id": req.CategoryID,
			"reason":      string(errs.TypeOf(err)),
		})
		return nil, err
	}
	hv.metrics.FetchOutcome("ok")
	return content, nil
}
