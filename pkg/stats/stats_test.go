package stats

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	write := func(name string, size int, mtime time.Time) {
		require.NoError(t, afero.WriteFile(fs, "/dl/"+name, make([]byte, size), 0644))
		require.NoError(t, fs.Chtimes("/dl/"+name, mtime, mtime))
	}
	write("old.torrent", 1024*1024, base)
	write("new.TORRENT", 512*1024, base.Add(time.Hour))
	write("notes.txt", 10, base.Add(2*time.Hour))
	require.NoError(t, fs.MkdirAll("/dl/sub.torrent", 0755))

	s, err := Collect(fs, "/dl")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalFiles)
	assert.EqualValues(t, 1536*1024, s.TotalSize)
	assert.Equal(t, 1.5, s.TotalSizeMB)
	require.Len(t, s.Files, 2)
	assert.Equal(t, "new.TORRENT", s.Files[0].Name)
	assert.Equal(t, 0.5, s.Files[0].SizeMB)
	assert.Equal(t, "old.torrent", s.Files[1].Name)
}

func TestCollectMissingDirectory(t *testing.T) {
	s, err := Collect(afero.NewMemMapFs(), "/nowhere")
	require.NoError(t, err)
	assert.Zero(t, s.TotalFiles)
	assert.Empty(t, s.Files)
}
