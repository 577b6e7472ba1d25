package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/filter"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/metrics"
	"yggharvest/pkg/models"
	"yggharvest/pkg/session"
	"yggharvest/pkg/storage"
)

const torrentBody = "d8:announce35:http://tracker.example/announce4:infod4:name4:testee"

type tracker struct {
	srv      *httptest.Server
	requests atomic.Int32
	mu       sync.Mutex
	cookies  []string
}

func newTracker(t *testing.T) *tracker {
	t.Helper()
	tr := &tracker{}
	tr.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr.requests.Add(1)
		tr.mu.Lock()
		tr.cookies = append(tr.cookies, r.Header.Get("Cookie"))
		tr.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/html/"):
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>Please log in</body></html>"))
		case strings.HasPrefix(r.URL.Path, "/missing/"):
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "application/x-bittorrent")
			w.Header().Set("Content-Length", strconv.Itoa(len(torrentBody)))
			_, _ = w.Write([]byte(torrentBody))
		}
	}))
	t.Cleanup(tr.srv.Close)
	return tr
}

func (tr *tracker) handle(t *testing.T) *session.Handle {
	t.Helper()
	h, err := session.New(tr.srv.URL, map[string]string{"ygg_": "abc"})
	require.NoError(t, err)
	return h
}

func entry(title, guid, url string, seeds int) *models.Entry {
	return &models.Entry{Title: title, GUID: guid, ArtifactURL: url, Seeds: models.IntPtr(seeds)}
}

func newTestOrchestrator(t *testing.T, tr *tracker, opts Options) (*Orchestrator, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := storage.NewManager(fs, "/downloads")
	require.NoError(t, err)
	return NewOrchestrator(tr.srv.Client(), store, nil, opts, logger.NewNopLogger()), fs
}

func TestDownloadAllIsIdempotent(t *testing.T) {
	tr := newTracker(t)
	o, fs := newTestOrchestrator(t, tr, DefaultOptions())
	h := tr.handle(t)

	entries := []*models.Entry{
		entry("Zelda", "1", tr.srv.URL+"/dl/1", 5),
		entry("Mario", "2", tr.srv.URL+"/dl/2", 3),
	}

	first := o.DownloadAll(context.Background(), h, entries, nil)
	require.Len(t, first, 2)
	sum := models.Summarize(first)
	assert.Equal(t, 2, sum.Downloaded)
	assert.EqualValues(t, 2*len(torrentBody), sum.Bytes)
	assert.EqualValues(t, 2, tr.requests.Load())

	data, err := afero.ReadFile(fs, filepath.Join("/downloads", "Zelda.torrent"))
	require.NoError(t, err)
	assert.Equal(t, torrentBody, string(data))

	digest := sha256.Sum256([]byte(torrentBody))
	assert.Equal(t, hex.EncodeToString(digest[:]), first[0].Checksum)

	second := o.DownloadAll(context.Background(), h, entries, nil)
	require.Len(t, second, 2)
	for _, r := range second {
		assert.True(t, r.AlreadyPresent)
		assert.True(t, r.Succeeded())
		assert.False(t, r.Suspect)
	}
	assert.EqualValues(t, 2, tr.requests.Load(), "second run must not hit the network")
	assert.Equal(t, 2, models.Summarize(second).AlreadyPresent)
}

func TestDownloadAllAnnotatesEntries(t *testing.T) {
	tr := newTracker(t)
	o, _ := newTestOrchestrator(t, tr, DefaultOptions())

	ok := entry("Good", "1", tr.srv.URL+"/dl/1", 1)
	bad := entry("Gone", "2", tr.srv.URL+"/missing/2", 1)
	noLink := &models.Entry{Title: "No link"}

	results := o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{ok, bad, noLink}, nil)
	require.Len(t, results, 2)

	assert.True(t, ok.Downloaded)
	assert.Equal(t, filepath.Join("/downloads", "Good.torrent"), ok.DownloadPath)

	assert.False(t, bad.Downloaded)
	assert.Empty(t, bad.DownloadPath)
	assert.Equal(t, errs.ErrorTypeDownloadFailed, results[1].Reason)
	assert.Equal(t, http.StatusNotFound, errs.StatusCode(results[1].Err))

	assert.False(t, noLink.Downloaded)
}

func TestDownloadAllAppliesCriteria(t *testing.T) {
	tr := newTracker(t)
	o, _ := newTestOrchestrator(t, tr, DefaultOptions())

	entries := []*models.Entry{
		entry("A", "1", tr.srv.URL+"/dl/1", 0),
		entry("B", "2", tr.srv.URL+"/dl/2", 0),
		{Title: "C", GUID: "3", ArtifactURL: tr.srv.URL + "/dl/3"},
	}

	results := o.DownloadAll(context.Background(), tr.handle(t), entries, &filter.Criteria{MinSeeds: 1})
	assert.Empty(t, results)
	assert.Zero(t, tr.requests.Load())
}

func TestDownloadAllFormatMismatch(t *testing.T) {
	tr := newTracker(t)
	o, fs := newTestOrchestrator(t, tr, DefaultOptions())
	e := entry("Fake", "1", tr.srv.URL+"/html/1", 2)

	results := o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{e}, nil)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, errs.ErrorTypeFormatMismatch, r.Reason)
	assert.False(t, r.Succeeded())
	assert.NotEmpty(t, r.Path)
	assert.Equal(t, r.Path, e.DownloadPath)
	assert.False(t, e.Downloaded)

	exists, err := afero.Exists(fs, r.Path)
	require.NoError(t, err)
	assert.True(t, exists, "suspect file is kept for inspection")
	assert.Equal(t, 1, models.Summarize(results).FormatMismatch)

	again := o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{e}, nil)
	require.Len(t, again, 1)
	assert.True(t, again[0].AlreadyPresent)
	assert.True(t, again[0].Suspect)
	assert.True(t, again[0].Succeeded())
	assert.EqualValues(t, 1, tr.requests.Load(), "present file is not fetched again")
}

func TestDownloadAllSkipsEntriesWithoutArtifact(t *testing.T) {
	tr := newTracker(t)
	o, _ := newTestOrchestrator(t, tr, DefaultOptions())

	var batch int
	o.SetHooks(Hooks{OnBatch: func(n int) { batch = n }})

	bare := &models.Entry{Title: "x"}
	results := o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{bare}, nil)
	assert.Empty(t, results)
	assert.Zero(t, batch)
	assert.Zero(t, tr.requests.Load())
	assert.False(t, bare.Downloaded)
	assert.Empty(t, bare.DownloadPath)
}

func TestDownloadAllSkipsSniffWhenDisabled(t *testing.T) {
	tr := newTracker(t)
	opts := DefaultOptions()
	opts.VerifyFormat = false
	o, _ := newTestOrchestrator(t, tr, opts)

	results := o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{entry("Fake", "1", tr.srv.URL+"/html/1", 2)}, nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded())
}

func TestDownloadAllDisambiguatesCollisions(t *testing.T) {
	tr := newTracker(t)
	o, fs := newTestOrchestrator(t, tr, DefaultOptions())

	entries := []*models.Entry{
		entry("Same: Title", "1", tr.srv.URL+"/dl/1", 1),
		entry("Same/ Title", "2", tr.srv.URL+"/dl/2", 1),
	}

	results := o.DownloadAll(context.Background(), tr.handle(t), entries, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "Same_ Title.torrent", results[0].Filename)
	assert.NotEqual(t, results[0].Filename, results[1].Filename)
	assert.Regexp(t, `^Same_ Title-[0-9a-f]{8}\.torrent$`, results[1].Filename)

	files, err := afero.ReadDir(fs, "/downloads")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	again := assignNames(entries, 100, true)
	assert.Equal(t, results[1].Filename, again[1], "names are stable across runs")
}

func TestDownloadAllForwardsCookiesToOriginOnly(t *testing.T) {
	origin := newTracker(t)
	mirror := newTracker(t)
	o, _ := newTestOrchestrator(t, origin, DefaultOptions())

	entries := []*models.Entry{
		entry("Local", "1", origin.srv.URL+"/dl/1", 1),
		entry("Remote", "2", mirror.srv.URL+"/dl/2", 1),
	}
	results := o.DownloadAll(context.Background(), origin.handle(t), entries, nil)
	require.Len(t, results, 2)

	assert.Equal(t, []string{"ygg_=abc"}, origin.cookies)
	assert.Equal(t, []string{""}, mirror.cookies)
}

func TestDownloadAllReportsProgress(t *testing.T) {
	tr := newTracker(t)
	o, _ := newTestOrchestrator(t, tr, DefaultOptions())

	var mu sync.Mutex
	var started []string
	var last float64
	var seen []models.DownloadResult
	batch := -1
	o.SetHooks(Hooks{
		OnBatch: func(n int) { batch = n },
		OnStart: func(name string, total int64) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, name)
			assert.EqualValues(t, len(torrentBody), total)
		},
		OnProgress: func(name string, percent float64, downloaded, total int64) {
			mu.Lock()
			defer mu.Unlock()
			last = percent
		},
		OnResult: func(r models.DownloadResult) { seen = append(seen, r) },
	})

	o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{entry("One", "1", tr.srv.URL+"/dl/1", 1)}, nil)
	assert.Equal(t, 1, batch)
	assert.Equal(t, []string{"One.torrent"}, started)
	assert.Equal(t, 100.0, last)
	assert.Len(t, seen, 1)
}

func TestDownloadAllCancelledStillAccountsForEveryEntry(t *testing.T) {
	tr := newTracker(t)
	opts := DefaultOptions()
	opts.Concurrency = 2
	o, _ := newTestOrchestrator(t, tr, opts)

	entries := make([]*models.Entry, 6)
	for i := range entries {
		id := strconv.Itoa(i)
		entries[i] = entry("T"+id, id, tr.srv.URL+"/dl/"+id, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := o.DownloadAll(ctx, tr.handle(t), entries, nil)
	require.Len(t, results, len(entries))
	for _, r := range results {
		assert.Equal(t, errs.ErrorTypeDownloadFailed, r.Reason)
	}
	assert.Equal(t, len(entries), models.Summarize(results).Failed)
}

func TestDownloadAllRecordsMetrics(t *testing.T) {
	tr := newTracker(t)
	o, _ := newTestOrchestrator(t, tr, DefaultOptions())
	rec := metrics.New()
	o.SetMetrics(rec)

	o.DownloadAll(context.Background(), tr.handle(t), []*models.Entry{
		entry("A", "1", tr.srv.URL+"/dl/1", 1),
		entry("B", "2", tr.srv.URL+"/missing/2", 1),
	}, nil)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if strings.HasSuffix(mf.GetName(), "downloads_total") {
			found = true
			assert.Len(t, mf.GetMetric(), 2)
		}
	}
	assert.True(t, found)
}

func TestDownloadTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	fs := afero.NewMemMapFs()
	store, err := storage.NewManager(fs, "/d")
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Timeout = 50 * time.Millisecond
	o := NewOrchestrator(slow.Client(), store, nil, opts, logger.NewNopLogger())

	h, err := session.New(slow.URL, map[string]string{"a": "1"})
	require.NoError(t, err)

	results := o.DownloadAll(context.Background(), h, []*models.Entry{entry("Slow", "1", slow.URL+"/x", 1)}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, errs.ErrorTypeDownloadFailed, results[0].Reason)
}
