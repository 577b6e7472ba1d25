package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.FetchOutcome("ok")
	r.FetchOutcome("ok")
	r.FetchOutcome("auth_expired")
	r.EntriesParsed("strict", 12)
	r.EntriesParsed("fallback", 0)
	r.DownloadStarted()
	r.DownloadFinished(2048, 150*time.Millisecond)
	r.DownloadOutcome("downloaded")
	r.DownloadOutcome("already_present")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("auth_expired")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.entriesParsed.WithLabelValues("strict")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.entriesParsed.WithLabelValues("fallback")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(r.downloadBytes))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.downloadsTotal.WithLabelValues("downloaded")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.FetchOutcome("ok")
		r.EntriesParsed("strict", 3)
		r.DownloadStarted()
		r.DownloadFinished(1, time.Second)
		r.DownloadOutcome("failed")
	})
	assert.Nil(t, r.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.DownloadOutcome("downloaded")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `yggharvest_downloads_total{outcome="downloaded"} 1`)
}
