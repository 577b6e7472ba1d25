package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/logger"
)

func TestParseCookieString(t *testing.T) {
	got := ParseCookieString(" ygg_=abc123; cf_clearance=x=y=z ;; =orphan; flag ; theme=dark ")
	assert.Equal(t, map[string]string{
		"ygg_":         "abc123",
		"cf_clearance": "x=y=z",
		"theme":        "dark",
	}, got)

	assert.Empty(t, ParseCookieString(""))
}

func TestFormatCookieString(t *testing.T) {
	raw := "ygg_=abc; cf_clearance=x=y"
	assert.Equal(t, "cf_clearance=x=y; ygg_=abc", FormatCookieString(ParseCookieString(raw)))
	assert.Empty(t, FormatCookieString(nil))
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New("www.yggtorrent.top", map[string]string{"a": "1"})
	assert.Equal(t, errs.ErrorTypeInvalidInput, errs.TypeOf(err))

	_, err = New("https://www.yggtorrent.top", nil)
	assert.Equal(t, errs.ErrorTypeInvalidInput, errs.TypeOf(err))

	_, err = New("https://www.yggtorrent.top", map[string]string{"": "x"})
	assert.Error(t, err)

	h, err := New("https://www.yggtorrent.top/some/path?q=1", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.yggtorrent.top", h.OriginString())
}

func TestHandleIsImmutable(t *testing.T) {
	src := map[string]string{"ygg_": "abc"}
	h, err := New("https://www.yggtorrent.top", src)
	require.NoError(t, err)

	src["ygg_"] = "changed"
	assert.Equal(t, "abc", h.Cookies()["ygg_"])

	cookies := h.Cookies()
	cookies["ygg_"] = "changed"
	assert.Equal(t, "abc", h.Cookies()["ygg_"])

	o := h.Origin()
	o.Host = "evil.example"
	assert.Equal(t, "https://www.yggtorrent.top", h.OriginString())
}

func TestExpiryHint(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	h, err := New("https://www.yggtorrent.top", map[string]string{"a": "1"})
	require.NoError(t, err)
	_, ok := h.ExpiresAt()
	assert.False(t, ok)
	assert.False(t, h.ExpiredAt(now))

	h, err = New("https://www.yggtorrent.top", map[string]string{"a": "1"}, WithExpiry(now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.True(t, h.ExpiredAt(now))
}

func TestApplyAndResolve(t *testing.T) {
	h, err := FromCookieString("https://www.yggtorrent.top", "b=2; a=1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://www.yggtorrent.top/rss", nil)
	h.Apply(req)
	assert.Equal(t, "a=1; b=2", req.Header.Get("Cookie"))

	abs, err := h.Resolve("/engine/download_torrent?id=42")
	require.NoError(t, err)
	assert.Equal(t, "https://www.yggtorrent.top/engine/download_torrent?id=42", abs)

	abs, err = h.Resolve("https://mirror.example/file.torrent")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/file.torrent", abs)
}

func TestHTTPClientSetsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := NewHTTPClient(5*time.Second, "TestAgent/1.0")
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "TestAgent/1.0", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("Accept"))
	assert.Contains(t, got.Get("Accept-Language"), "fr-FR")
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    State
		wantErr bool
	}{
		{"logged in page", http.StatusOK, `<a href="/user/logout">Déconnexion</a>`, StateValid, false},
		{"neutral page", http.StatusOK, `<html>torrents</html>`, StateValid, false},
		{"login form", http.StatusOK, `<form id="login">`, StateExpired, false},
		{"forbidden", http.StatusForbidden, ``, StateExpired, false},
		{"server error", http.StatusBadGateway, ``, StateUnvalidated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookie string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cookie = r.Header.Get("Cookie")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h, err := New(srv.URL, map[string]string{"ygg_": "abc"})
			require.NoError(t, err)

			p := NewProber(srv.Client(), time.Second, logger.NewNopLogger())
			state, err := p.Probe(context.Background(), h)
			assert.Equal(t, tt.want, state)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, "ygg_=abc", cookie)
		})
	}
}

func TestProbeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h, err := New(url, map[string]string{"a": "1"})
	require.NoError(t, err)

	state, err := NewProber(http.DefaultClient, time.Second, logger.NewNopLogger()).Probe(context.Background(), h)
	assert.Equal(t, StateUnvalidated, state)
	assert.True(t, errs.IsTransient(err))
}
