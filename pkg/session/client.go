package session

import (
	"net/http"
	"time"
)

// Doer is the subset of *http.Client the fetcher and downloader rely on.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// browserHeaders are sent on every request; the tracker's edge rejects
// clients that look scripted.
var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/rss+xml,*/*;q=0.8",
	"Accept-Language": "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
}

type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range browserHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns a client that stamps browser-like headers on every
// request. Timeouts are applied per call through contexts; timeout here is
// only the hard ceiling for a whole exchange.
func NewHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	return &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base:      transport,
			userAgent: userAgent,
		},
	}
}
