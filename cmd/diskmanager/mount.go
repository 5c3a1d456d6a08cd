package main

import (
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount <device>",
	Short: "Mount a manageable device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.Mount(args[0], dir))
	},
}

var unmountCmd = &cobra.Command{
	Use:     "unmount <device>",
	Aliases: []string{"umount"},
	Short:   "Unmount a manageable device",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m, _, err := newManager()
		if err != nil {
			fatal(err)
		}
		printResult(m.Unmount(args[0]))
	},
}

func init() {
	mountCmd.Flags().String("dir", "", "mount directory name under /mnt (default: device label)")
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
}
