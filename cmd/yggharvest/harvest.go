package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"yggharvest/internal/downloader"
	"yggharvest/internal/pipeline"
	"yggharvest/pkg/config"
	"yggharvest/pkg/feed"
	"yggharvest/pkg/filter"
	"yggharvest/pkg/history"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/metrics"
	"yggharvest/pkg/retry"
	"yggharvest/pkg/ui"
	"yggharvest/pkg/ui/tui"
)

var (
	categoryArg   string
	noDownload    bool
	newOnly       bool
	useTUI        bool
	notifications bool
	showLimit     int
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Fetch a category feed and download the matching torrents",
	Long: `Fetch the RSS feed of one category, keep the listings that match the
filter criteria and download their .torrent files. Files already on disk are
skipped without a request. The full listing is exported to the data
directory, annotated with what was downloaded.`,
	Example: `  # Nintendo games with at least 5 seeders
  yggharvest harvest --category 2163 --min-seeds 5

  # By label, only titles mentioning zelda or mario, under 8 GB
  yggharvest harvest -C "nintendo games" -k zelda -k mario --max-size 8192

  # Only listings not seen by a previous run, with the full-screen view
  yggharvest harvest -C 2163 --new-only --tui`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(cmd, false)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and list a category feed without downloading",
	Example: `  yggharvest fetch --category 2188
  yggharvest fetch -C movies --min-seeds 10 --format html`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(cmd, true)
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd, fetchCmd)

	for _, cmd := range []*cobra.Command{harvestCmd, fetchCmd} {
		f := cmd.Flags()
		f.StringVarP(&categoryArg, "category", "C", "", "category id or label (see 'yggharvest categories')")
		f.String("passkey", "", "account passkey used in feed URLs")
		f.String("cookies", "", "raw Cookie header copied from the browser")
		f.StringP("profile", "a", "", "stored session profile to use")
		f.String("base-url", "", "tracker origin")
		f.IntP("min-seeds", "s", 0, "minimum number of seeders")
		f.Float64("max-size", 0, "maximum size in MB")
		f.StringSliceP("keyword", "k", nil, "keep titles containing any of these words (repeatable)")
		f.StringP("format", "f", "", "export format: json, yaml or html")
		f.String("data-dir", "", "directory for exports and history")
		f.Duration("timeout", 0, "per-request timeout")
		f.BoolVar(&newOnly, "new-only", false, "skip listings already seen by a previous run")
		f.IntVar(&showLimit, "show", 25, "listings to print (0 for all)")
		_ = cmd.MarkFlagRequired("category")
	}

	f := harvestCmd.Flags()
	f.StringP("output", "o", "", "directory for downloaded .torrent files")
	f.IntP("concurrency", "j", 0, "parallel downloads (1-10)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.BoolVar(&noDownload, "no-download", false, "stop after fetching and exporting")
	f.BoolVar(&useTUI, "tui", false, "full-screen progress view")
	f.BoolVar(&notifications, "notify", false, "desktop notification when the run ends")
}

// criteriaFrom builds the filter from configuration, which already holds
// any flag overrides.
func criteriaFrom(cfg *config.Config) *filter.Criteria {
	c := &filter.Criteria{MinSeeds: cfg.Filter.MinSeeds, Keywords: cfg.Filter.Keywords}
	if cfg.Filter.MaxSizeMB > 0 {
		limit := cfg.Filter.MaxSizeMB
		c.MaxSizeMB = &limit
	}
	return c
}

// newHarvester wires the pipeline. A nil hooks value leaves out the
// download stage.
func newHarvester(ctx context.Context, cfg *config.Config, creds *credentials, recorder *metrics.Recorder, log logger.Logger, hooks *downloader.Hooks) (*pipeline.Harvester, error) {
	client := newClient(cfg, creds)

	exporter, err := newExporter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	policy := retry.DefaultPolicy(cfg.Request.MaxRetries, cfg.Request.RetryDelay)
	opts := []pipeline.Option{
		pipeline.WithExporter(exporter),
		pipeline.WithRetryPolicy(policy),
		pipeline.WithHistory(history.NewStore(afero.NewOsFs(), cfg.Export.HistoryFile)),
		pipeline.WithMetrics(recorder),
	}
	if hooks != nil {
		orch, err := newOrchestrator(cfg, client, recorder, log)
		if err != nil {
			return nil, err
		}
		orch.SetHooks(*hooks)
		opts = append(opts, pipeline.WithDownloader(orch))
	}
	return pipeline.New(feed.NewFetcher(client, cfg.Request.Timeout, log), log, opts...), nil
}

func runHarvest(cmd *cobra.Command, listOnly bool) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	category, err := cfg.ResolveCategory(categoryArg)
	if err != nil {
		return err
	}
	label := cfg.CategoryLabel(category)
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}
	skipDownloads := listOnly || noDownload
	if !skipDownloads {
		level := "warn"
		if useTUI {
			level = "error"
		}
		log = quietConsoleLogs(cfg, level)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	if !quiet {
		ui.PrintInfo("Category", fmt.Sprintf("%d %s", category, label))
		ui.PrintInfo("Session", creds.source)
	}

	req := feed.Request{CategoryID: category, AccessKey: creds.passkey}
	opts := pipeline.Options{
		Criteria:      criteriaFrom(cfg),
		CategoryLabel: label,
		NoDownload:    skipDownloads,
		NewOnly:       newOnly,
	}

	var hooks *downloader.Hooks
	var reporter ui.Reporter
	wait := func() {}
	if !skipDownloads {
		reporter, wait = startReporter(ctx, cfg, label)
		h := hooksFor(reporter)
		hooks = &h
	}
	hv, err := newHarvester(ctx, cfg, creds, recorder, log, hooks)
	if err != nil {
		if t, ok := reporter.(*tui.TUI); ok {
			t.Quit()
		}
		wait()
		return err
	}

	var report *pipeline.Report
	run := func(ctx context.Context) error {
		var err error
		report, err = hv.Run(ctx, creds.handle, req, opts)
		return err
	}

	if reporter != nil {
		inner := run
		run = func(ctx context.Context) error {
			err := inner(ctx)
			if report != nil {
				reporter.Finish(report.Summary)
			} else if t, ok := reporter.(*tui.TUI); ok {
				t.Quit()
			}
			wait()
			return err
		}
	}

	err = withMetrics(ctx, recorder, cfg.Metrics.Address, log, run)
	if report == nil {
		return err
	}

	_, usedTUI := reporter.(*tui.TUI)
	printReport(report, opts.Criteria, skipDownloads, usedTUI)
	if !skipDownloads {
		notify(notifications, "yggharvest", fmt.Sprintf("%s: %d downloaded, %d failed",
			label, report.Summary.Downloaded, report.Summary.Failed+report.Summary.FormatMismatch))
	}
	if err != nil {
		return err
	}
	if report.Summary.Failed > 0 {
		return fmt.Errorf("%d downloads failed", report.Summary.Failed)
	}
	return nil
}

// startReporter returns the progress reporter for a run and a function that
// blocks until it has stopped drawing.
func startReporter(ctx context.Context, cfg *config.Config, label string) (ui.Reporter, func()) {
	if useTUI && isTerminal() {
		t := tui.New(label, 0, cfg.Download.Concurrency)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := t.Run(); err != nil {
				logger.WithError(err).Error("Terminal UI failed")
			}
		}()
		go func() {
			select {
			case <-ctx.Done():
				t.Quit()
			case <-done:
			}
		}()
		return t, func() { <-done }
	}
	return ui.NewProgressDisplay(ui.Out, label, 0, verbose), func() {}
}

// printReport prints what a run did. The progress line already printed the
// summary unless the full-screen view was used.
func printReport(r *pipeline.Report, criteria *filter.Criteria, listing, showSummary bool) {
	if quiet {
		return
	}
	fmt.Fprintln(ui.Out)
	if r.FallbackUsed {
		ui.PrintWarning("The feed was malformed; listings were recovered from links only")
	}
	if r.Skipped > 0 {
		ui.PrintInfo("Already seen", fmt.Sprintf("%d listings skipped", r.Skipped))
	}

	if listing || verbose {
		matching := filter.Apply(r.Entries, criteria)
		shown := matching
		if showLimit > 0 && len(shown) > showLimit {
			shown = shown[:showLimit]
		}
		ui.PrintEntries(ui.Out, shown)
		if len(shown) < len(matching) {
			fmt.Fprintln(ui.Out, ui.Dim(fmt.Sprintf("  ... %d more in the export", len(matching)-len(shown))))
		}
		ui.PrintInfo("Listings", fmt.Sprintf("%d fetched, %d match", len(r.Entries), len(matching)))
	}

	if r.Results != nil {
		if showSummary {
			ui.PrintSummary(ui.Out, r.Summary)
		}
		ui.PrintFailures(ui.Out, r.Results)
	}
	if r.ExportPath != "" {
		ui.PrintInfo("Export", r.ExportPath)
	}
}
