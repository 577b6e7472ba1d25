// Package metrics exposes pipeline counters in Prometheus format. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yggharvest"

// Recorder owns a private registry so tests and embedded uses do not
// collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal       *prometheus.CounterVec
	entriesParsed    *prometheus.CounterVec
	downloadsTotal   *prometheus.CounterVec
	downloadBytes    prometheus.Counter
	downloadDuration prometheus.Histogram
	inFlight         prometheus.Gauge
}

// New creates a Recorder with Go runtime collectors attached.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Feed fetches by outcome.",
	}, []string{"outcome"})

	r.entriesParsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_parsed_total",
		Help:      "Entries produced by the parser, by path (strict or fallback).",
	}, []string{"path"})

	r.downloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Download results by outcome.",
	}, []string{"outcome"})

	r.downloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "download_bytes_total",
		Help:      "Bytes written to the artifact directory.",
	})

	r.downloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "download_duration_seconds",
		Help:      "Time spent transferring one artifact.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	r.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "downloads_in_flight",
		Help:      "Downloads currently transferring.",
	})

	r.registry.MustRegister(
		r.fetchTotal,
		r.entriesParsed,
		r.downloadsTotal,
		r.downloadBytes,
		r.downloadDuration,
		r.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// FetchOutcome labels a fetch attempt ("ok", "auth_expired", ...).
func (r *Recorder) FetchOutcome(outcome string) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(outcome).Inc()
}

// EntriesParsed adds n entries parsed through path.
func (r *Recorder) EntriesParsed(path string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.entriesParsed.WithLabelValues(path).Add(float64(n))
}

// DownloadStarted marks one transfer in flight.
func (r *Recorder) DownloadStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// DownloadFinished closes a transfer opened with DownloadStarted.
func (r *Recorder) DownloadFinished(bytes int64, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	if bytes > 0 {
		r.downloadBytes.Add(float64(bytes))
	}
	r.downloadDuration.Observe(elapsed.Seconds())
}

// DownloadOutcome counts one download result.
func (r *Recorder) DownloadOutcome(outcome string) {
	if r == nil {
		return
	}
	r.downloadsTotal.WithLabelValues(outcome).Inc()
}
