package main

import (
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format <device>",
	Short: "Wipe the whole disk and format it with a single partition",
	Long: `Wipes the physical disk behind the device (all partitions are lost),
creates one partition spanning the disk and formats it.

This is destructive: pass --confirm with the exact confirmation phrase.
The device must be unmounted, non-persistent and unshared first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fstype, _ := cmd.Flags().GetString("fs")
		label, _ := cmd.Flags().GetString("label")
		confirm, _ := cmd.Flags().GetString("confirm")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.Format(args[0], fstype, label, confirm))
	},
}

func init() {
	formatCmd.Flags().String("fs", "ext4", "filesystem type (see 'diskmanager formats')")
	formatCmd.Flags().String("label", "", "volume label")
	formatCmd.Flags().String("confirm", "", "confirmation phrase (required)")
	rootCmd.AddCommand(formatCmd)
}
