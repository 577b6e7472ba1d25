package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"yggharvest/pkg/history"
	"yggharvest/pkg/stats"
	"yggharvest/pkg/ui"
)

var (
	statsLimit   int
	resetHistory bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what is in the download directory",
	Example: `  yggharvest stats
  yggharvest stats -o /srv/torrents --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		fs := afero.NewOsFs()
		s, err := stats.Collect(fs, cfg.Download.Directory)
		if err != nil {
			return err
		}
		ui.PrintStats(ui.Out, cfg.Download.Directory, s, statsLimit)

		store := history.NewStore(fs, cfg.Export.HistoryFile)
		if resetHistory {
			if err := store.Reset(); err != nil {
				return err
			}
			ui.PrintSuccess("History cleared: " + store.Path())
			return nil
		}
		ledger, err := store.Load()
		if err != nil {
			return err
		}
		ui.PrintInfo("History", fmt.Sprintf("%d listings seen (%s)", ledger.Len(), store.Path()))
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List known category ids",
	Long: `List the category ids and labels known to the configuration. Labels can be
used instead of ids with --category. Add your own under site.categories in
the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(ui.Out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL")
		for _, id := range cfg.SortedCategoryIDs() {
			fmt.Fprintf(tw, "%d\t%s\n", id, cfg.CategoryLabel(id))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, categoriesCmd)

	statsCmd.Flags().StringP("output", "o", "", "download directory to inspect")
	statsCmd.Flags().String("data-dir", "", "directory holding the history file")
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "recent files to list (0 for none)")
	statsCmd.Flags().BoolVar(&resetHistory, "reset-history", false, "forget every listing seen by previous runs")
}
