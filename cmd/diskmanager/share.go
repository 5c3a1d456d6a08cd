package main

import (
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <device>",
	Short: "Create or remove the Samba share for a device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		remove, _ := cmd.Flags().GetBool("remove")
		path, _ := cmd.Flags().GetString("path")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.SetShare(args[0], !remove, path))
	},
}

var availCmd = &cobra.Command{
	Use:   "avail",
	Short: "Enable or disable an existing share without deleting it",
	Long: `Flips "available = yes/no" on an existing share block, locating it by
--path or --name. Disabling keeps the configuration so the disk can be
unplugged and reconnected safely.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		name, _ := cmd.Flags().GetString("name")
		off, _ := cmd.Flags().GetBool("off")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		if name != "" {
			printResult(m.SetShareAvailabilityByName(name, !off))
			return
		}
		printResult(m.SetShareAvailability(path, !off))
	},
}

func init() {
	shareCmd.Flags().Bool("remove", false, "remove the share instead of creating it")
	shareCmd.Flags().String("path", "", "share path override (for removing when unmounted)")
	availCmd.Flags().String("path", "", "share path")
	availCmd.Flags().String("name", "", "share name")
	availCmd.Flags().Bool("off", false, "disable instead of enable")
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(availCmd)
}
