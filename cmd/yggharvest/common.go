package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"yggharvest/internal/downloader"
	"yggharvest/pkg/auth"
	"yggharvest/pkg/config"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/export"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/metrics"
	"yggharvest/pkg/ratelimit"
	"yggharvest/pkg/session"
	"yggharvest/pkg/storage"
	"yggharvest/pkg/ui"
)

func defaultConfigHint() string {
	return strings.Join(config.SearchPaths()[:2], ", ")
}

// changedFlags collects the flags the user actually set, keyed by name.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{"log-level": logLevel, "no-color": noColor}
	set := func(name string, get func(string) (interface{}, error)) {
		if f := cmd.Flags().Lookup(name); f == nil || !f.Changed {
			return
		}
		if v, err := get(name); err == nil {
			flags[name] = v
		}
	}
	for _, name := range []string{"base-url", "passkey", "cookies", "profile", "output", "data-dir", "format", "metrics-addr"} {
		set(name, func(n string) (interface{}, error) { return cmd.Flags().GetString(n) })
	}
	for _, name := range []string{"concurrency", "min-seeds"} {
		set(name, func(n string) (interface{}, error) { return cmd.Flags().GetInt(n) })
	}
	set("max-size", func(n string) (interface{}, error) { return cmd.Flags().GetFloat64(n) })
	set("timeout", func(n string) (interface{}, error) { return cmd.Flags().GetDuration(n) })
	set("keyword", func(n string) (interface{}, error) { return cmd.Flags().GetStringSlice(n) })
	return flags
}

// setup loads the configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeConfig, "loading configuration", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeConfig, "initializing logger", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("yggharvest starting")
	return cfg, log, nil
}

// quietConsoleLogs raises the console log level while a progress display
// owns the terminal. An explicit level from flags or configuration wins.
func quietConsoleLogs(cfg *config.Config, level string) logger.Logger {
	if verbose || logLevel != "" || cfg.Logging.FileOnly || cfg.Logging.Level != "info" {
		return logger.GetLogger()
	}
	lc := cfg.Logging
	lc.Level = level
	if err := logger.Initialize(&lc); err != nil {
		logger.WithError(err).Warn("Could not adjust log level")
	}
	return logger.GetLogger()
}

// credentials is the session material for one run.
type credentials struct {
	handle    *session.Handle
	passkey   string
	userAgent string
	source    string
}

// resolveCredentials picks cookies from, in order, explicit flags or
// configuration, then the named or default stored profile.
func resolveCredentials(cfg *config.Config) (*credentials, error) {
	creds := &credentials{passkey: cfg.Site.Passkey, userAgent: cfg.Site.UserAgent}

	if cfg.Site.Cookies != "" && cfg.Site.Profile == "" {
		h, err := session.FromCookieString(cfg.Site.BaseURL, cfg.Site.Cookies)
		if err != nil {
			return nil, err
		}
		creds.handle = h
		creds.source = "configuration"
		return creds, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "opening profile store", err)
	}
	p, err := manager.Retrieve(cfg.Site.Profile)
	if err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			return nil, errs.New(errs.ErrorTypeInvalidInput,
				"no session cookies found; run 'yggharvest auth login' or set "+config.EnvPrefix+"COOKIES", 0)
		}
		return nil, err
	}
	h, err := p.Handle(cfg.Site.BaseURL)
	if err != nil {
		return nil, err
	}
	creds.handle = h
	creds.source = "profile " + p.Name
	if creds.passkey == "" {
		creds.passkey = p.Passkey
	}
	if p.UserAgent != "" {
		creds.userAgent = p.UserAgent
	}
	return creds, nil
}

func newClient(cfg *config.Config, creds *credentials) *http.Client {
	ua := cfg.Site.UserAgent
	if creds != nil && creds.userAgent != "" {
		ua = creds.userAgent
	}
	return session.NewHTTPClient(cfg.Request.Timeout, ua)
}

func newOrchestrator(cfg *config.Config, client *http.Client, recorder *metrics.Recorder, log logger.Logger) (*downloader.Orchestrator, error) {
	store, err := storage.NewManager(afero.NewOsFs(), cfg.Download.Directory)
	if err != nil {
		return nil, err
	}
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.Request.RequestsPerMinute > 0 {
		limiter = ratelimit.NewPerMinute(cfg.Request.RequestsPerMinute)
	}
	o := downloader.NewOrchestrator(client, store, limiter, downloader.Options{
		Concurrency:   cfg.Download.Concurrency,
		Timeout:       cfg.Request.Timeout,
		MaxNameLength: cfg.Download.MaxFilenameLength,
		VerifyFormat:  cfg.Download.VerifyFormat,
		Disambiguate:  cfg.Download.DisambiguateCollisions,
	}, log)
	o.SetMetrics(recorder)
	return o, nil
}

func newExporter(ctx context.Context, cfg *config.Config, log logger.Logger) (*export.Exporter, error) {
	exp, err := export.New(afero.NewOsFs(), cfg.Export.Directory, cfg.Export.Format, log)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "export", err)
	}
	if cfg.Export.S3.Bucket != "" {
		sink, err := export.NewS3Sink(ctx, cfg.Export.S3, log)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeConfig, "s3 export", err)
		}
		exp.AddSink(sink)
	}
	return exp, nil
}

// hooksFor forwards orchestrator callbacks to a reporter.
func hooksFor(r ui.Reporter) downloader.Hooks {
	return downloader.Hooks{
		OnBatch:    r.BatchStarted,
		OnStart:    r.DownloadStarted,
		OnProgress: r.DownloadProgress,
		OnResult:   r.DownloadFinished,
	}
}

// withMetrics runs fn while serving the recorder on addr. A nil recorder
// runs fn alone. The listener is bound before fn starts so a busy port
// fails the command up front; a server that dies later is only logged and
// never cancels fn. The server stops once fn returns.
func withMetrics(ctx context.Context, recorder *metrics.Recorder, addr string, log logger.Logger, fn func(ctx context.Context) error) error {
	if recorder == nil {
		return fn(ctx)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, "metrics server", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var g errgroup.Group
	g.Go(func() error {
		log.WithField("address", ln.Addr().String()).Info("Serving metrics")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("Metrics server stopped")
		}
		return nil
	})

	runErr := fn(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Debug("Metrics server shutdown")
	}
	_ = g.Wait()
	return runErr
}

func notify(enabled bool, title, message string) {
	if !enabled {
		return
	}
	if err := ui.NewNotifier().Notify(title, message); err != nil {
		logger.WithError(err).Debug("Desktop notification failed")
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
