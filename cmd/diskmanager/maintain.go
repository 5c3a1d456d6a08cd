package main

import (
	"github.com/spf13/cobra"
)

var reconnectCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Re-mount persistent disks that were unplugged and are back",
	Long: `Scans the mount table for managed entries whose disk is present but
not mounted, mounts them with their configured options, and re-enables any
share that was parked while the disk was away.`,
	Run: func(cmd *cobra.Command, args []string) {
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.Reconnect())
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove the stored configuration of a disconnected disk",
	Run: func(cmd *cobra.Command, args []string) {
		uuid, _ := cmd.Flags().GetString("uuid")
		mountpoint, _ := cmd.Flags().GetString("mountpoint")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.RemoveMissing(uuid, mountpoint))
	},
}

func init() {
	forgetCmd.Flags().String("uuid", "", "filesystem UUID of the missing disk (required)")
	forgetCmd.Flags().String("mountpoint", "", "mountpoint of the missing disk (narrows fstab match, enables share removal)")
	rootCmd.AddCommand(reconnectCmd)
	rootCmd.AddCommand(forgetCmd)
}
