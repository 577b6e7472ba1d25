package feed

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "yggharvest/pkg/errors"
)

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, Request{CategoryID: 2163, AccessKey: "pk"}.Validate())

	err := Request{CategoryID: 0, AccessKey: "pk"}.Validate()
	assert.Equal(t, errs.ErrorTypeInvalidInput, errs.TypeOf(err))

	err = Request{CategoryID: 2163, AccessKey: "  "}.Validate()
	assert.Equal(t, errs.ErrorTypeInvalidInput, errs.TypeOf(err))
}

func TestURLBuilders(t *testing.T) {
	origin, err := url.Parse("https://www.yggtorrent.top")
	require.NoError(t, err)

	assert.Equal(t,
		"https://www.yggtorrent.top/rss?action=generate&type=subcat&id=2163&passkey=a%2Bb",
		FeedURL(origin, Request{CategoryID: 2163, AccessKey: "a+b"}))
	assert.Equal(t,
		"https://www.yggtorrent.top/rss/download?id=42&passkey=pk",
		DownloadURL(origin, "42", "pk"))
	assert.Equal(t,
		"https://www.yggtorrent.top/engine/download_torrent?id=42",
		EngineDownloadURL(origin, "42"))
	assert.Equal(t, "https://www.yggtorrent.top", origin.String(), "origin is not modified")
}

func TestTorrentID(t *testing.T) {
	tests := []struct {
		link string
		want string
		ok   bool
	}{
		{"https://www.yggtorrent.top/torrent/jeux-video/nintendo/1234567-zelda-totk", "1234567", true},
		{"https://www.yggtorrent.top/torrent/films/42/", "42", true},
		{"https://www.yggtorrent.top/engine/download_torrent?id=99", "99", true},
		{"https://www.yggtorrent.top/torrent/films/zelda", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := TorrentID(tt.link)
		assert.Equal(t, tt.ok, ok, tt.link)
		assert.Equal(t, tt.want, got, tt.link)
	}
}
