package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	errs "yggharvest/pkg/errors"
)

func TestEntryKeyPrecedence(t *testing.T) {
	e := &Entry{Title: "Zelda", ArtifactURL: "https://x/a.torrent"}
	assert.Equal(t, "url:https://x/a.torrent", e.Key())

	e.Link = "https://x/torrent/1-zelda"
	assert.Equal(t, "link:https://x/torrent/1-zelda", e.Key())

	e.GUID = "1"
	assert.Equal(t, "guid:1", e.Key())

	e.InfoHash = "ABCDEF"
	assert.Equal(t, "hash:ABCDEF", e.Key())

	assert.Equal(t, "title:Only", (&Entry{Title: "Only"}).Key())
}

func TestEntryClone(t *testing.T) {
	e := &Entry{Title: "a", Seeds: IntPtr(3)}
	c := e.Clone()
	*c.Seeds = 9
	c.Title = "b"

	assert.Equal(t, 3, *e.Seeds)
	assert.Equal(t, "a", e.Title)
	assert.Nil(t, (&Entry{}).Clone().Peers)
}

func TestSummarize(t *testing.T) {
	results := []DownloadResult{
		{Path: "a", Bytes: 100},
		{Path: "b", Bytes: 50},
		{Path: "c", AlreadyPresent: true, Bytes: 70},
		{Reason: errs.ErrorTypeDownloadFailed, Err: errors.New("503")},
		{Path: "d", Reason: errs.ErrorTypeFormatMismatch, Bytes: 10},
	}

	s := Summarize(results)
	assert.Equal(t, Summary{Total: 5, Downloaded: 2, AlreadyPresent: 1, Failed: 1, FormatMismatch: 1, Bytes: 150}, s)

	assert.True(t, results[0].Succeeded())
	assert.True(t, results[2].Succeeded())
	assert.False(t, results[3].Succeeded())
	assert.False(t, results[4].Succeeded())
}
