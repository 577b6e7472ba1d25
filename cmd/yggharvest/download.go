package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"yggharvest/internal/pipeline"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/export"
	"yggharvest/pkg/feed"
	"yggharvest/pkg/models"
	"yggharvest/pkg/ui"
)

var (
	useEngine bool
	getTitle  string
)

var downloadCmd = &cobra.Command{
	Use:   "download <export-file>",
	Short: "Download the torrents listed in a previous export",
	Long: `Read a JSON or YAML export written by 'harvest' or 'fetch' and download
the listings that match the filter criteria. Files already on disk are
skipped.`,
	Example: `  yggharvest download data/ygg_torrents_20250301_100000.json --min-seeds 3`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDownload,
}

var getCmd = &cobra.Command{
	Use:   "get <torrent-id>",
	Short: "Download a single torrent by id",
	Long: `Download one .torrent file by its tracker id. By default the passkey
download URL is used; --engine uses the site's own download button, which
needs only the session cookies.`,
	Example: `  yggharvest get 1234567
  yggharvest get https://www.yggtorrent.top/torrent/jeux-video/nintendo/1234567-zelda --engine`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(downloadCmd, getCmd)

	for _, cmd := range []*cobra.Command{downloadCmd, getCmd} {
		f := cmd.Flags()
		f.String("passkey", "", "account passkey")
		f.String("cookies", "", "raw Cookie header copied from the browser")
		f.StringP("profile", "a", "", "stored session profile to use")
		f.String("base-url", "", "tracker origin")
		f.StringP("output", "o", "", "directory for downloaded .torrent files")
		f.Duration("timeout", 0, "per-request timeout")
	}

	f := downloadCmd.Flags()
	f.IntP("concurrency", "j", 0, "parallel downloads (1-10)")
	f.IntP("min-seeds", "s", 0, "minimum number of seeders")
	f.Float64("max-size", 0, "maximum size in MB")
	f.StringSliceP("keyword", "k", nil, "keep titles containing any of these words (repeatable)")
	f.BoolVar(&notifications, "notify", false, "desktop notification when the batch ends")

	getCmd.Flags().BoolVar(&useEngine, "engine", false, "use the cookie-authenticated site download URL")
	getCmd.Flags().StringVar(&getTitle, "title", "", "file name to save as (default: torrent-<id>)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	doc, err := export.Load(afero.NewOsFs(), args[0])
	if err != nil {
		return errs.Wrap(errs.ErrorTypeInvalidInput, "reading export", err)
	}
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}
	log = quietConsoleLogs(cfg, "warn")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	label := doc.CategoryLabel
	if label == "" {
		label = fmt.Sprint(doc.Category)
	}
	if !quiet {
		ui.PrintInfo("Export", fmt.Sprintf("%s (%d listings)", args[0], len(doc.Entries)))
	}

	reporter, wait := startReporter(ctx, cfg, label)
	hooks := hooksFor(reporter)
	hv, err := newHarvester(ctx, cfg, creds, nil, log, &hooks)
	if err != nil {
		return err
	}

	report, err := hv.DownloadEntries(ctx, creds.handle, doc.Entries, doc.Category, pipeline.Options{
		Criteria:      criteriaFrom(cfg),
		CategoryLabel: doc.CategoryLabel,
	})
	if report == nil {
		wait()
		return err
	}
	reporter.Finish(report.Summary)
	wait()

	printReport(report, nil, false, false)
	notify(notifications, "yggharvest", fmt.Sprintf("%d downloaded, %d failed", report.Summary.Downloaded, report.Summary.Failed))
	if err != nil {
		return err
	}
	if report.Summary.Failed > 0 {
		return fmt.Errorf("%d downloads failed", report.Summary.Failed)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	id, ok := feed.TorrentID(strings.TrimSpace(args[0]))
	if !ok || strings.Trim(id, "0123456789") != "" {
		return errs.New(errs.ErrorTypeInvalidInput, fmt.Sprintf("%q is not a torrent id or torrent page URL", args[0]), 0)
	}

	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}

	var artifactURL string
	if useEngine {
		artifactURL = feed.EngineDownloadURL(creds.handle.Origin(), id)
	} else {
		if creds.passkey == "" {
			return errs.New(errs.ErrorTypeInvalidInput, "a passkey is required unless --engine is used", 0)
		}
		artifactURL = feed.DownloadURL(creds.handle.Origin(), id, creds.passkey)
	}

	title := getTitle
	if title == "" {
		title = "torrent-" + id
	}
	entry := &models.Entry{Title: title, GUID: id, ArtifactURL: artifactURL}

	client := newClient(cfg, creds)
	orch, err := newOrchestrator(cfg, client, nil, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := orch.DownloadAll(ctx, creds.handle, []*models.Entry{entry}, nil)
	r := results[0]
	switch {
	case r.AlreadyPresent:
		ui.PrintInfo("Already present", r.Path)
	case r.Succeeded():
		ui.PrintSuccess(fmt.Sprintf("Saved %s (%s)", r.Path, ui.FormatBytes(r.Bytes)))
	case r.Reason == errs.ErrorTypeFormatMismatch:
		ui.PrintWarning("Saved, but the response is not a torrent file", r.Path)
		return errs.New(errs.ErrorTypeFormatMismatch, "downloaded file is not a torrent", 0)
	default:
		if r.Err != nil {
			return r.Err
		}
		return errs.New(r.Reason, "download failed", 0)
	}
	return nil
}
