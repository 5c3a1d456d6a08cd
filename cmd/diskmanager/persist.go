package main

import (
	"github.com/spf13/cobra"
)

var persistCmd = &cobra.Command{
	Use:   "persist <device>",
	Short: "Add or remove the boot-time mount entry for a device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		remove, _ := cmd.Flags().GetBool("remove")
		dir, _ := cmd.Flags().GetString("dir")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.SetPersistence(args[0], !remove, dir))
	},
}

func init() {
	persistCmd.Flags().Bool("remove", false, "remove the entry instead of adding it")
	persistCmd.Flags().String("dir", "", "mount directory name under /mnt (default: device label)")
	rootCmd.AddCommand(persistCmd)
}
