package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"yggharvest/pkg/auth"
	"yggharvest/pkg/config"
	"yggharvest/pkg/ui"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the yggharvest configuration file.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (` + config.EnvPrefix + `*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to --config, or to the first search path
when no file is given. Existing files are kept unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging every source. Cookies, passkey and S3 credentials are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration search paths",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		active := configFile
		if active == "" {
			active = config.FindConfigFile()
		}
		for _, p := range config.SearchPaths() {
			marker := " "
			if p == active {
				marker = "*"
			}
			fmt.Fprintf(ui.Out, "%s %s\n", marker, p)
		}
		if configFile != "" {
			fmt.Fprintf(ui.Out, "* %s (--config)\n", configFile)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd, configPathCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.SearchPaths()[0]
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Store your session with 'yggharvest auth login'")
	fmt.Fprintln(ui.Out, "2. Run 'yggharvest config validate'")
	fmt.Fprintln(ui.Out, "3. Harvest a category with 'yggharvest harvest --category 2163'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	display := *cfg
	display.Site.Passkey = auth.Mask(display.Site.Passkey)
	display.Site.Cookies = auth.Mask(display.Site.Cookies)
	display.Export.S3.AccessKeyID = auth.Mask(display.Export.S3.AccessKeyID)
	display.Export.S3.SecretAccessKey = auth.Mask(display.Export.S3.SecretAccessKey)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	fmt.Fprintf(ui.Out, "\nConfiguration file: %s\n", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return errors.New("no configuration file found; specify one with --config or run 'yggharvest config init'")
	}
	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Site.Passkey == "" {
		warnings = append(warnings, "no passkey configured; feeds need one")
	}
	if cfg.Site.Cookies == "" && cfg.Site.Profile == "" {
		warnings = append(warnings, "no cookies or profile configured; the default stored profile will be used")
	}
	if cfg.Export.S3.Bucket != "" && cfg.Export.S3.Region == "" && cfg.Export.S3.Endpoint == "" {
		warnings = append(warnings, "s3 bucket set without region or endpoint; the AWS default region applies")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Out, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Out)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Tracker: %s\n", cfg.Site.BaseURL)
	fmt.Fprintf(ui.Out, "  Download directory: %s\n", cfg.Download.Directory)
	fmt.Fprintf(ui.Out, "  Concurrency: %d\n", cfg.Download.Concurrency)
	fmt.Fprintf(ui.Out, "  Rate limit: %d requests/minute\n", cfg.Request.RequestsPerMinute)
	fmt.Fprintf(ui.Out, "  Max retries: %d\n", cfg.Request.MaxRetries)
	fmt.Fprintf(ui.Out, "  Export: %s in %s\n", cfg.Export.Format, cfg.Export.Directory)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
