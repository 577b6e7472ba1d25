// Package downloader fetches artifacts for feed entries with a bounded
// number of concurrent transfers.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/filter"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/metrics"
	"yggharvest/pkg/models"
	"yggharvest/pkg/ratelimit"
	"yggharvest/pkg/session"
)

// ArtifactStore is where downloaded artifacts land.
type ArtifactStore interface {
	Exists(name string) bool
	Head(name string, n int) ([]byte, error)
	Path(name string) string
	Save(r io.Reader, name string) (int64, error)
}

// Options tunes an Orchestrator.
type Options struct {
	Concurrency   int
	Timeout       time.Duration
	MaxNameLength int
	VerifyFormat  bool
	Disambiguate  bool
}

// DefaultOptions mirrors the stock configuration.
func DefaultOptions() Options {
	return Options{
		Concurrency:   3,
		Timeout:       30 * time.Second,
		MaxNameLength: 100,
		VerifyFormat:  true,
		Disambiguate:  true,
	}
}

// Hooks observe a batch. OnStart and OnProgress run on worker goroutines;
// OnBatch and OnResult run on the caller's goroutine and a single collector
// goroutine respectively.
type Hooks struct {
	OnBatch    func(eligible int)
	OnStart    func(name string, total int64)
	OnProgress ProgressFunc
	OnResult   func(models.DownloadResult)
}

// Orchestrator downloads the artifacts of a batch of entries.
type Orchestrator struct {
	client  session.Doer
	store   ArtifactStore
	limiter ratelimit.Limiter
	opts    Options
	hooks   Hooks
	metrics *metrics.Recorder
	logger  logger.Logger
}

func NewOrchestrator(client session.Doer, store ArtifactStore, limiter ratelimit.Limiter, opts Options, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		client:  client,
		store:   store,
		limiter: limiter,
		opts:    opts,
		logger:  log.WithField("component", "downloader"),
	}
}

// SetHooks installs progress observers.
func (o *Orchestrator) SetHooks(h Hooks) { o.hooks = h }

// SetMetrics attaches a metrics recorder.
func (o *Orchestrator) SetMetrics(r *metrics.Recorder) { o.metrics = r }

// Eligible returns the entries DownloadAll would submit: those with an
// artifact URL that pass criteria.
func Eligible(entries []*models.Entry, criteria *filter.Criteria) []*models.Entry {
	out := make([]*models.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Downloadable() && filter.Matches(e, criteria) {
			out = append(out, e)
		}
	}
	return out
}

// DownloadAll downloads every eligible entry and returns one result per
// submitted entry, in submission order. Entries are annotated with
// Downloaded and DownloadPath once all workers are done.
func (o *Orchestrator) DownloadAll(ctx context.Context, h *session.Handle, entries []*models.Entry, criteria *filter.Criteria) []models.DownloadResult {
	eligible := Eligible(entries, criteria)
	results := make([]models.DownloadResult, len(eligible))
	if len(eligible) == 0 {
		o.logger.Info("No entries eligible for download")
		return results
	}

	if o.hooks.OnBatch != nil {
		o.hooks.OnBatch(len(eligible))
	}
	names := assignNames(eligible, o.opts.MaxNameLength, o.opts.Disambiguate)
	o.logger.InfoWithFields("Starting downloads", map[string]interface{}{
		"eligible": len(eligible),
		"skipped":  len(entries) - len(eligible),
		"workers":  o.opts.Concurrency,
	})

	pool := newWorkerPool(o.opts.Concurrency, func(ctx context.Context, workerID int, j job) models.DownloadResult {
		return o.download(ctx, h, workerID, j)
	}, o.logger)
	pool.Start(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results[r.index] = r.result
			o.record(r.result)
			if o.hooks.OnResult != nil {
				o.hooks.OnResult(r.result)
			}
		}
	}()

	for i, e := range eligible {
		pool.Submit(job{index: i, entry: e, name: names[i]})
	}
	pool.Stop()
	<-done

	for _, r := range results {
		r.Entry.Downloaded = r.Succeeded()
		r.Entry.DownloadPath = r.Path
	}

	summary := models.Summarize(results)
	o.logger.InfoWithFields("Downloads finished", map[string]interface{}{
		"downloaded":      summary.Downloaded,
		"already_present": summary.AlreadyPresent,
		"failed":          summary.Failed,
		"format_mismatch": summary.FormatMismatch,
		"bytes":           summary.Bytes,
	})
	return results
}

func (o *Orchestrator) download(ctx context.Context, h *session.Handle, workerID int, j job) models.DownloadResult {
	start := time.Now()
	res := models.DownloadResult{Title: j.entry.Title, Entry: j.entry, Filename: j.name}
	log := o.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"file":      j.name,
	})

	fail := func(code int, err error) models.DownloadResult {
		res.Reason = errs.ErrorTypeDownloadFailed
		res.Err = &errs.Error{Type: errs.ErrorTypeDownloadFailed, Message: "download " + j.name, Code: code, Err: err}
		res.Duration = time.Since(start)
		log.WithError(err).Warn("Download failed")
		return res
	}

	if o.store.Exists(j.name) {
		res.Path = o.store.Path(j.name)
		res.AlreadyPresent = true
		if o.opts.VerifyFormat {
			if head, err := o.store.Head(j.name, sniffLen); err != nil || !LooksLikeTorrent(head) {
				res.Suspect = true
				log.Warn("Existing file does not look like a torrent, delete it to fetch again")
			}
		}
		res.Duration = time.Since(start)
		log.Debug("Artifact already present")
		return res
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return fail(0, err)
	}

	reqCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, j.entry.ArtifactURL, nil)
	if err != nil {
		return fail(0, err)
	}
	if sameHost(req, h) {
		h.Apply(req)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode == http.StatusForbidden {
			msg = fmt.Errorf("unexpected status %s, session or passkey may be expired", resp.Status)
		}
		return fail(resp.StatusCode, msg)
	}

	total := resp.ContentLength
	if o.hooks.OnStart != nil {
		o.hooks.OnStart(j.name, total)
	}
	o.metrics.DownloadStarted()

	hasher := sha256.New()
	head := &headBuffer{}
	body := &progressReader{
		r:      io.TeeReader(resp.Body, io.MultiWriter(hasher, head)),
		name:   j.name,
		total:  total,
		report: o.hooks.OnProgress,
	}

	n, err := o.store.Save(body, j.name)
	o.metrics.DownloadFinished(n, time.Since(start))
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	res.Path = o.store.Path(j.name)
	res.Bytes = n
	res.Checksum = hex.EncodeToString(hasher.Sum(nil))
	res.Duration = time.Since(start)

	if o.opts.VerifyFormat && !LooksLikeTorrent(head.Bytes()) {
		res.Reason = errs.ErrorTypeFormatMismatch
		res.Err = errs.New(errs.ErrorTypeFormatMismatch,
			fmt.Sprintf("%s does not look like a torrent file (content-type %q)", j.name, resp.Header.Get("Content-Type")), resp.StatusCode)
		log.WarnWithFields("Downloaded file is not a torrent", map[string]interface{}{
			"content_type": resp.Header.Get("Content-Type"),
			"bytes":        n,
		})
		return res
	}

	log.DebugWithFields("Download completed", map[string]interface{}{
		"bytes":    n,
		"duration": res.Duration,
	})
	return res
}

func (o *Orchestrator) record(r models.DownloadResult) {
	switch {
	case r.Reason == errs.ErrorTypeFormatMismatch:
		o.metrics.DownloadOutcome("format_mismatch")
	case r.Reason != "":
		o.metrics.DownloadOutcome("failed")
	case r.AlreadyPresent:
		o.metrics.DownloadOutcome("already_present")
	default:
		o.metrics.DownloadOutcome("downloaded")
	}
}

// sameHost limits cookie forwarding to the tracker itself.
func sameHost(req *http.Request, h *session.Handle) bool {
	return strings.EqualFold(req.URL.Host, h.Origin().Host)
}
