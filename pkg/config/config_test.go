package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.yggtorrent.top", cfg.Site.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 3, cfg.Request.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Request.RetryDelay)
	assert.Equal(t, 3, cfg.Download.Concurrency)
	assert.Equal(t, 100, cfg.Download.MaxFilenameLength)
	assert.Equal(t, "downloads", cfg.Download.Directory)
	assert.Equal(t, "data", cfg.Export.Directory)
	assert.Len(t, cfg.Site.Categories, 16)
	assert.Equal(t, "Nintendo Games", cfg.CategoryLabel(2163))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("YGGHARVEST_PASSKEY", "pk")
	t.Setenv("YGGHARVEST_COOKIES", "a=1; b=2")
	t.Setenv("YGGHARVEST_TIMEOUT", "10s")
	t.Setenv("YGGHARVEST_CONCURRENCY", "5")
	t.Setenv("YGGHARVEST_VERIFY_FORMAT", "false")
	t.Setenv("YGGHARVEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "pk", cfg.Site.Passkey)
	assert.Equal(t, "a=1; b=2", cfg.Site.Cookies)
	assert.Equal(t, 10*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 5, cfg.Download.Concurrency)
	assert.False(t, cfg.Download.VerifyFormat)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("YGGHARVEST_CONCURRENCY", "three")
	t.Setenv("YGGHARVEST_RETRY_DELAY", "soon")

	err := DefaultConfig().LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YGGHARVEST_CONCURRENCY")
	assert.Contains(t, err.Error(), "YGGHARVEST_RETRY_DELAY")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  base_url: https://ygg.example.org
  passkey: filekey
  categories:
    9999: Custom
request:
  timeout: 45s
  retry_delay: 500ms
download:
  directory: /srv/torrents
  concurrency: 4
export:
  format: yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://ygg.example.org", cfg.Site.BaseURL)
	assert.Equal(t, "filekey", cfg.Site.Passkey)
	assert.Equal(t, 45*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Request.RetryDelay)
	assert.Equal(t, "/srv/torrents", cfg.Download.Directory)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, "yaml", cfg.Export.Format)
	assert.Equal(t, "Custom", cfg.CategoryLabel(9999))
	assert.Equal(t, "Movies", cfg.CategoryLabel(2188), "defaults are kept alongside file entries")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.Site.BaseURL = "ygg.top" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Request.Timeout = 0 }, "timeout"},
		{"zero retries", func(c *Config) { c.Request.MaxRetries = 0 }, "max retries"},
		{"too many workers", func(c *Config) { c.Download.Concurrency = 50 }, "exceed 10"},
		{"no workers", func(c *Config) { c.Download.Concurrency = 0 }, "positive"},
		{"bad export format", func(c *Config) { c.Export.Format = "xml" }, "export format"},
		{"negative seeds", func(c *Config) { c.Filter.MinSeeds = -1 }, "min seeds"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Request.Timeout = 0
	cfg.Download.Directory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 2, len(strings.Split(err.Error(), "\n")))
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"passkey":      "flagkey",
		"output":       "out",
		"concurrency":  7,
		"min-seeds":    2,
		"max-size":     1024.0,
		"keyword":      []string{"zelda"},
		"metrics-addr": ":9100",
		"log-level":    "",
	})

	assert.Equal(t, "flagkey", cfg.Site.Passkey)
	assert.Equal(t, "out", cfg.Download.Directory)
	assert.Equal(t, filepath.Join("data", "history.json"), cfg.Export.HistoryFile)
	assert.Equal(t, 7, cfg.Download.Concurrency)
	assert.Equal(t, 2, cfg.Filter.MinSeeds)
	assert.Equal(t, 1024.0, cfg.Filter.MaxSizeMB)
	assert.Equal(t, []string{"zelda"}, cfg.Filter.Keywords)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.Equal(t, "info", cfg.Logging.Level, "empty flag values do not override")
}

func TestDataDirMovesHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{"data-dir": "/var/lib/ygg"})
	assert.Equal(t, "/var/lib/ygg", cfg.Export.Directory)
	assert.Equal(t, filepath.Join("/var/lib/ygg", "history.json"), cfg.Export.HistoryFile)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  passkey: from-file\ndownload:\n  concurrency: 2\n"), 0600))

	t.Setenv("YGGHARVEST_PASSKEY", "from-env")

	cfg, err := Load(path, map[string]interface{}{"concurrency": 6})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Site.Passkey)
	assert.Equal(t, 6, cfg.Download.Concurrency)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Site.Passkey = "secret"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "secret", loaded.Site.Passkey)
	assert.Equal(t, cfg.Request.Timeout, loaded.Request.Timeout)
}

func TestResolveCategory(t *testing.T) {
	cfg := DefaultConfig()

	id, err := cfg.ResolveCategory("2163")
	require.NoError(t, err)
	assert.Equal(t, 2163, id)

	id, err = cfg.ResolveCategory("movies")
	require.NoError(t, err)
	assert.Equal(t, 2188, id)

	_, err = cfg.ResolveCategory("-4")
	assert.Error(t, err)
	_, err = cfg.ResolveCategory("polka")
	assert.Error(t, err)

	ids := cfg.SortedCategoryIDs()
	assert.Equal(t, 2142, ids[0])
	assert.Equal(t, 2198, ids[len(ids)-1])
}
