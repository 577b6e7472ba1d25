package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "yggharvest",
	Short: "Harvest torrent files from YggTorrent category feeds",
	Long: `yggharvest fetches the RSS feed of a YggTorrent category with your
browser session, filters the listings and downloads the matching .torrent
files.

Features:
  - Session profiles kept in the system keychain or an encrypted file
  - Strict feed parsing with a lenient fallback for broken markup
  - Bounded concurrent downloads that skip files already on disk
  - JSON, YAML and HTML exports, optionally mirrored to S3
  - Prometheus metrics and a full-screen progress view`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			logLevel = "error"
		}
		if verbose && logLevel == "" {
			logLevel = "debug"
		}
		switch cmd.Name() {
		case "version", "help", "completion", "path":
		default:
			if !quiet {
				ui.PrintLogo()
			}
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err with a hint for the failures a user can fix.
func reportError(err error) {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeAuthExpired:
		ui.PrintError("Session rejected by the tracker", err)
		fmt.Fprintln(ui.Out, "\nYour cookies have probably expired. Refresh them with:")
		fmt.Fprintln(ui.Out, "  yggharvest auth login")
	case errs.ErrorTypeMalformedContent:
		ui.PrintError("The tracker did not return a feed", err)
		fmt.Fprintln(ui.Out, "\nThis is usually a browser challenge page. Open the site in your")
		fmt.Fprintln(ui.Out, "browser, pass the check, then refresh your cookies with 'yggharvest auth login'.")
	case errs.ErrorTypeConfig:
		ui.PrintError("Configuration error", err)
		fmt.Fprintln(ui.Out, "\nRun 'yggharvest config validate' for details.")
	default:
		ui.PrintError("Error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: first of "+defaultConfigHint()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per download and debug logs")

	rootCmd.SetVersionTemplate(`yggharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
