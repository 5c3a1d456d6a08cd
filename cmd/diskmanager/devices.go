package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mlara/diskmanager/internal/view"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List manageable block devices",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		rows := m.Devices()
		if jsonOut {
			if err := view.PrintJSON(os.Stdout, rows); err != nil {
				fatal(err)
			}
			return
		}
		view.PrintTable(os.Stdout, rows)
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List filesystem types this host can format",
	Run: func(cmd *cobra.Command, args []string) {
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.FormatOptions())
	},
}

func init() {
	devicesCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(formatsCmd)
}
