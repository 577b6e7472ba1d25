package export

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/models"
)

func sampleEntries() []*models.Entry {
	return []*models.Entry{
		{
			Title:       "Zelda | Tears",
			Link:        "https://www.yggtorrent.top/torrent/games/123-zelda",
			ArtifactURL: "https://www.yggtorrent.top/rss/download?id=123&passkey=x",
			Size:        "16.2 GB",
			Seeds:       models.IntPtr(42),
			Downloaded:  true,
		},
		{Title: "Mario <Kart>", Size: "5 GB"},
	}
}

func fixedExporter(t *testing.T, fs afero.Fs, format string) *Exporter {
	t.Helper()
	e, err := New(fs, "/data", format, logger.NewNopLogger())
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 15, 0, time.UTC) }
	return e
}

func TestExportNeverOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := fixedExporter(t, fs, FormatJSON)

	first, err := e.Export(context.Background(), sampleEntries(), Meta{Category: 2163})
	require.NoError(t, err)
	second, err := e.Export(context.Background(), sampleEntries(), Meta{Category: 2163})
	require.NoError(t, err)
	third, err := e.Export(context.Background(), nil, Meta{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/data", "ygg_torrents_20250601_093015.json"), first)
	assert.Equal(t, filepath.Join("/data", "ygg_torrents_20250601_093015_1.json"), second)
	assert.Equal(t, filepath.Join("/data", "ygg_torrents_20250601_093015_2.json"), third)

	files, err := afero.ReadDir(fs, "/data")
	require.NoError(t, err)
	assert.Len(t, files, 3, "no temporary files left behind")
}

func TestExportLoadRoundTrip(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			e := fixedExporter(t, fs, format)
			summary := &models.Summary{Total: 1, Downloaded: 1}

			path, err := e.Export(context.Background(), sampleEntries(), Meta{Category: 2163, CategoryLabel: "Nintendo Games", Summary: summary})
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(path, "."+format))

			doc, err := Load(fs, path)
			require.NoError(t, err)
			assert.NotEmpty(t, doc.RunID)
			assert.Equal(t, 2163, doc.Category)
			assert.Equal(t, "Nintendo Games", doc.CategoryLabel)
			assert.Equal(t, summary, doc.Summary)
			require.Len(t, doc.Entries, 2)
			assert.Equal(t, "Zelda | Tears", doc.Entries[0].Title)
			assert.Equal(t, 42, *doc.Entries[0].Seeds)
			assert.Nil(t, doc.Entries[1].Seeds)
			assert.True(t, doc.Entries[0].Downloaded)
		})
	}
}

func TestExportDoesNotMutateEntries(t *testing.T) {
	entries := sampleEntries()
	before := make([]models.Entry, len(entries))
	for i, e := range entries {
		before[i] = *e.Clone()
	}

	_, err := fixedExporter(t, afero.NewMemMapFs(), FormatYAML).Export(context.Background(), entries, Meta{})
	require.NoError(t, err)
	for i, e := range entries {
		assert.Equal(t, before[i], *e)
	}
}

func TestExportHTML(t *testing.T) {
	fs := afero.NewMemMapFs()
	path, err := fixedExporter(t, fs, FormatHTML).Export(context.Background(), sampleEntries(), Meta{
		CategoryLabel: "Nintendo Games",
		Summary:       &models.Summary{Downloaded: 1},
	})
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "Zelda | Tears")
	assert.Contains(t, html, `href="https://www.yggtorrent.top/torrent/games/123-zelda"`)
	assert.Contains(t, html, "Mario &lt;Kart&gt;")
	assert.NotContains(t, html, "<Kart>")

	_, err = Load(fs, path)
	assert.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "/data", "xml", nil)
	assert.Error(t, err)
}

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkReceivesExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := &fakeS3{}
	e := fixedExporter(t, fs, FormatJSON)
	e.AddSink(newS3Sink(fake, "archive", "ygg/exports", logger.NewNopLogger()))

	path, err := e.Export(context.Background(), sampleEntries(), Meta{})
	require.NoError(t, err)

	local, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "archive", fake.bucket)
	assert.Equal(t, "ygg/exports/ygg_torrents_20250601_093015.json", fake.key)
	assert.Equal(t, "application/json", fake.contentType)
	assert.Equal(t, local, fake.body)
}

func TestS3SinkFailureKeepsLocalExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	tl := logger.NewTestLogger()
	e := fixedExporter(t, fs, FormatJSON)
	e.logger = tl
	e.AddSink(newS3Sink(&fakeS3{err: errors.New("access denied")}, "archive", "", tl))

	path, err := e.Export(context.Background(), sampleEntries(), Meta{})
	require.NoError(t, err)

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, tl.HasMessage("WARN", "Export upload failed"))
}
