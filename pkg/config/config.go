package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "YGGHARVEST_"

// DefaultUserAgent mimics a desktop browser; the tracker rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all yggharvest settings.
type Config struct {
	Site     SiteConfig     `yaml:"site" json:"site"`
	Request  RequestConfig  `yaml:"request" json:"request"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Filter   FilterConfig   `yaml:"filter" json:"filter"`
	Export   ExportConfig   `yaml:"export" json:"export"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// SiteConfig describes the tracker and the session material used against it.
type SiteConfig struct {
	BaseURL    string         `yaml:"base_url" json:"base_url"`
	Passkey    string         `yaml:"passkey,omitempty" json:"passkey,omitempty"`
	Cookies    string         `yaml:"cookies,omitempty" json:"cookies,omitempty"`
	Profile    string         `yaml:"profile,omitempty" json:"profile,omitempty"`
	UserAgent  string         `yaml:"user_agent" json:"user_agent"`
	Categories map[int]string `yaml:"categories" json:"categories"`
}

// RequestConfig bounds every outbound request.
type RequestConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

type DownloadConfig struct {
	Directory              string `yaml:"directory" json:"directory"`
	Concurrency            int    `yaml:"concurrency" json:"concurrency"`
	MaxFilenameLength      int    `yaml:"max_filename_length" json:"max_filename_length"`
	VerifyFormat           bool   `yaml:"verify_format" json:"verify_format"`
	DisambiguateCollisions bool   `yaml:"disambiguate_collisions" json:"disambiguate_collisions"`
}

// FilterConfig holds default selection criteria. Flags override it per run.
type FilterConfig struct {
	MinSeeds  int      `yaml:"min_seeds" json:"min_seeds"`
	MaxSizeMB float64  `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	Keywords  []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

type ExportConfig struct {
	Directory   string   `yaml:"directory" json:"directory"`
	Format      string   `yaml:"format" json:"format"`
	HistoryFile string   `yaml:"history_file" json:"history_file"`
	S3          S3Config `yaml:"s3" json:"s3"`
}

// S3Config enables uploading exports. An empty bucket disables it.
type S3Config struct {
	Bucket       string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Region       string `yaml:"region,omitempty" json:"region,omitempty"`
	Prefix       string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty" json:"use_path_style,omitempty"`

	// Static credentials. When empty the default AWS chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	File     string `yaml:"file,omitempty" json:"file,omitempty"`
	FileOnly bool   `yaml:"file_only,omitempty" json:"file_only,omitempty"`
	NoColor  bool   `yaml:"no_color,omitempty" json:"no_color,omitempty"`
}

// DefaultCategories maps the tracker's sub-category ids to labels.
func DefaultCategories() map[int]string {
	return map[int]string{
		2163: "Nintendo Games",
		2145: "PlayStation Games",
		2146: "Xbox Games",
		2142: "PC Games",
		2188: "Movies",
		2189: "TV Shows",
		2190: "Music",
		2144: "Software",
		2191: "Books",
		2192: "Anime",
		2193: "Documentaries",
		2194: "Sports",
		2195: "E-books",
		2196: "Comics",
		2197: "Mobile Games",
		2198: "Retro Games",
	}
}

// DefaultConfig returns a Config with the stock tracker settings.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:    "https://www.yggtorrent.top",
			UserAgent:  DefaultUserAgent,
			Categories: DefaultCategories(),
		},
		Request: RequestConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryDelay:        2 * time.Second,
			RequestsPerMinute: 60,
		},
		Download: DownloadConfig{
			Directory:              "downloads",
			Concurrency:            3,
			MaxFilenameLength:      100,
			VerifyFormat:           true,
			DisambiguateCollisions: true,
		},
		Export: ExportConfig{
			Directory:   "data",
			Format:      "json",
			HistoryFile: filepath.Join("data", "history.json"),
		},
		Metrics: MetricsConfig{
			Address: "127.0.0.1:9310",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides fields from YGGHARVEST_* variables.
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	setString("BASE_URL", &c.Site.BaseURL)
	setString("PASSKEY", &c.Site.Passkey)
	setString("COOKIES", &c.Site.Cookies)
	setString("PROFILE", &c.Site.Profile)
	setString("USER_AGENT", &c.Site.UserAgent)

	setDuration("TIMEOUT", &c.Request.Timeout)
	setInt("MAX_RETRIES", &c.Request.MaxRetries)
	setDuration("RETRY_DELAY", &c.Request.RetryDelay)
	setInt("REQUESTS_PER_MINUTE", &c.Request.RequestsPerMinute)

	setString("DOWNLOAD_DIR", &c.Download.Directory)
	setInt("CONCURRENCY", &c.Download.Concurrency)
	setBool("VERIFY_FORMAT", &c.Download.VerifyFormat)

	setString("DATA_DIR", &c.Export.Directory)
	setString("EXPORT_FORMAT", &c.Export.Format)
	setString("S3_BUCKET", &c.Export.S3.Bucket)
	setString("S3_REGION", &c.Export.S3.Region)
	setString("S3_PREFIX", &c.Export.S3.Prefix)
	setString("S3_ENDPOINT", &c.Export.S3.Endpoint)
	setString("S3_ACCESS_KEY_ID", &c.Export.S3.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &c.Export.S3.SecretAccessKey)

	setBool("METRICS_ENABLED", &c.Metrics.Enabled)
	setString("METRICS_ADDR", &c.Metrics.Address)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile reads YAML from path, or from the first default location
// that exists when path is empty.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// FindConfigFile returns the first existing default config path.
func FindConfigFile() string {
	for _, loc := range SearchPaths() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// SearchPaths lists default config locations in precedence order.
func SearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		".yggharvest.yaml",
		".yggharvest.yml",
		filepath.Join(home, ".config", "yggharvest", "config.yaml"),
		filepath.Join(home, ".config", "yggharvest", "config.yml"),
		filepath.Join(home, ".yggharvest.yaml"),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("site base_url must be an absolute http(s) URL, got %q", c.Site.BaseURL))
	}
	if c.Request.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Request.MaxRetries < 1 {
		errs = append(errs, errors.New("max retries must be at least 1"))
	}
	if c.Request.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.Request.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("download concurrency must be positive"))
	}
	if c.Download.Concurrency > 10 {
		errs = append(errs, errors.New("download concurrency should not exceed 10"))
	}
	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.MaxFilenameLength < 16 {
		errs = append(errs, errors.New("max filename length must be at least 16"))
	}

	if c.Filter.MinSeeds < 0 {
		errs = append(errs, errors.New("min seeds cannot be negative"))
	}
	if c.Filter.MaxSizeMB < 0 {
		errs = append(errs, errors.New("max size cannot be negative"))
	}

	if c.Export.Directory == "" {
		errs = append(errs, errors.New("export directory is required"))
	}
	switch strings.ToLower(c.Export.Format) {
	case "json", "yaml", "html":
	default:
		errs = append(errs, fmt.Errorf("invalid export format %q", c.Export.Format))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML. The file may contain cookies, so
// it is created owner-readable only.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies explicitly set CLI flags. Keys are flag names.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Site.BaseURL = v
	}
	if v, ok := flags["passkey"].(string); ok && v != "" {
		c.Site.Passkey = v
	}
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.Site.Cookies = v
	}
	if v, ok := flags["profile"].(string); ok && v != "" {
		c.Site.Profile = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Download.Directory = v
	}
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Export.Directory = v
		c.Export.HistoryFile = filepath.Join(v, filepath.Base(c.Export.HistoryFile))
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Export.Format = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Request.Timeout = v
	}
	if v, ok := flags["min-seeds"].(int); ok && v >= 0 {
		c.Filter.MinSeeds = v
	}
	if v, ok := flags["max-size"].(float64); ok && v > 0 {
		c.Filter.MaxSizeMB = v
	}
	if v, ok := flags["keyword"].([]string); ok && len(v) > 0 {
		c.Filter.Keywords = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load builds the effective configuration.
// Precedence: flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".yggharvest.env"))
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// CategoryLabel returns the configured label for id, or "" when unknown.
func (c *Config) CategoryLabel(id int) string {
	return c.Site.Categories[id]
}

// ResolveCategory accepts a numeric id or a case-insensitive label.
func (c *Config) ResolveCategory(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if id, err := strconv.Atoi(arg); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("category id must be positive, got %d", id)
		}
		return id, nil
	}
	for id, label := range c.Site.Categories {
		if strings.EqualFold(label, arg) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", arg)
}

// SortedCategoryIDs returns configured category ids in ascending order.
func (c *Config) SortedCategoryIDs() []int {
	ids := make([]int, 0, len(c.Site.Categories))
	for id := range c.Site.Categories {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
