package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mlara/diskmanager/internal/config"
	"github.com/mlara/diskmanager/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent operations and where their backups went",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fatal(err)
		}
		db, err := history.Open(cfg.HistoryDBPath)
		if err != nil {
			fatal(fmt.Errorf("opening history db: %w", err))
		}
		defer db.Close()

		records, err := db.Recent(limit)
		if err != nil {
			fatal(err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tTARGET\tOK\tMESSAGE\tBACKUP")
		for _, r := range records {
			okStr := "yes"
			if !r.OK {
				okStr = "no"
			}
			backup := r.BackupPath
			if backup == "" {
				backup = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Kind, r.Target, okStr, r.Message, backup)
		}
		tw.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of records to show")
	rootCmd.AddCommand(historyCmd)
}
