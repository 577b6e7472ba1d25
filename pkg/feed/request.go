package feed

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	errs "yggharvest/pkg/errors"
)

// Request selects one category feed.
type Request struct {
	CategoryID int
	AccessKey  string
}

// Validate rejects requests the tracker would refuse anyway.
func (r Request) Validate() error {
	if r.CategoryID <= 0 {
		return errs.New(errs.ErrorTypeInvalidInput, fmt.Sprintf("category id must be positive, got %d", r.CategoryID), 0)
	}
	if strings.TrimSpace(r.AccessKey) == "" {
		return errs.New(errs.ErrorTypeInvalidInput, "access key (passkey) is required", 0)
	}
	return nil
}

// FeedURL builds the category RSS URL for origin.
func FeedURL(origin *url.URL, r Request) string {
	u := *origin
	u.Path = "/rss"
	q := url.Values{}
	q.Set("action", "generate")
	q.Set("type", "subcat")
	q.Set("id", strconv.Itoa(r.CategoryID))
	q.Set("passkey", r.AccessKey)
	u.RawQuery = encodeOrdered(q, "action", "type", "id", "passkey")
	return u.String()
}

// DownloadURL builds the passkey-authenticated artifact URL for a torrent id.
func DownloadURL(origin *url.URL, torrentID, accessKey string) string {
	u := *origin
	u.Path = "/rss/download"
	q := url.Values{}
	q.Set("id", torrentID)
	q.Set("passkey", accessKey)
	u.RawQuery = encodeOrdered(q, "id", "passkey")
	return u.String()
}

// EngineDownloadURL builds the cookie-authenticated artifact URL used by the
// site's own download button.
func EngineDownloadURL(origin *url.URL, torrentID string) string {
	u := *origin
	u.Path = "/engine/download_torrent"
	u.RawQuery = url.Values{"id": {torrentID}}.Encode()
	return u.String()
}

// TorrentID extracts the numeric id from a detail link such as
// https://host/torrent/games/nintendo/123456-some-title.
func TorrentID(detailLink string) (string, bool) {
	u, err := url.Parse(detailLink)
	if err != nil {
		return "", false
	}
	if id := u.Query().Get("id"); id != "" {
		return id, true
	}
	last := path.Base(strings.TrimRight(u.Path, "/"))
	id, _, _ := strings.Cut(last, "-")
	if _, err := strconv.Atoi(id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// encodeOrdered keeps the tracker's parameter order, which makes logged
// URLs match what a browser sends.
func encodeOrdered(q url.Values, keys ...string) string {
	var b strings.Builder
	for _, k := range keys {
		v := q.Get(k)
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}
