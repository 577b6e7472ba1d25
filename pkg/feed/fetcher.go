package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/session"
)

// maxFeedBytes caps how much of a response is buffered.
const maxFeedBytes = 16 << 20

// Content is a successfully fetched feed body.
type Content struct {
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Fetcher performs one authenticated feed request and classifies the
// outcome. It never retries; callers decide.
type Fetcher struct {
	client  session.Doer
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time
}

// NewFetcher creates a Fetcher. A zero timeout leaves the deadline to ctx.
func NewFetcher(client session.Doer, timeout time.Duration, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:  client,
		timeout: timeout,
		logger:  log.WithField("component", "fetcher"),
		now:     time.Now,
	}
}

// Fetch retrieves the feed for req using the session cookies.
func (f *Fetcher) Fetch(ctx context.Context, h *session.Handle, req Request) (*Content, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	feedURL := FeedURL(h.Origin(), req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidInput, "building feed request", err)
	}
	h.Apply(httpReq)

	start := f.now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.logger.WithError(err).WarnWithFields("Feed request failed", map[string]interface{}{
			"url": logger.RedactURL(feedURL),
		})
		return nil, errs.Wrap(errs.ErrorTypeTransient, "feed request failed", err)
	}
	defer resp.Body.Close()

	logger.LogRequest(f.logger, http.MethodGet, logger.RedactURL(feedURL), resp.StatusCode, f.now().Sub(start))

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransient, "reading feed body", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !LooksLikeFeed(body) {
		f.logger.WarnWithFields("Response does not look like a feed", map[string]interface{}{
			"content_type": contentType,
			"preview":      preview(body, 200),
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeMalformedContent,
			Message: fmt.Sprintf("response is not feed data (content-type %q)", contentType),
			Code:    resp.StatusCode,
		}
	}

	f.logger.InfoWithFields("Feed fetched", map[string]interface{}{
		"category_id": req.CategoryID,
		"bytes":       len(body),
	})

	return &Content{
		URL:         feedURL,
		ContentType: contentType,
		Body:        body,
		FetchedAt:   f.now(),
	}, nil
}

func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuthExpired, "session rejected by tracker, refresh cookies", resp.StatusCode)
	default:
		return errs.New(errs.ErrorTypeTransient, fmt.Sprintf("unexpected status %s", resp.Status), resp.StatusCode)
	}
}

var feedMarkers = [][]byte{
	[]byte("<?xml"),
	[]byte("<rss"),
	[]byte("<feed"),
	[]byte("<channel"),
	[]byte("<item"),
}

// LooksLikeFeed reports whether body plausibly holds feed markup rather
// than a challenge or login page.
func LooksLikeFeed(body []byte) bool {
	head := body
	if len(head) > 64<<10 {
		head = head[:64<<10]
	}
	head = bytes.ToLower(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))
	for _, m := range feedMarkers {
		if bytes.Contains(head, m) {
			return true
		}
	}
	return false
}

func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(bytes.TrimSpace(body))
}
