package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/ipc"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, err := config.SocketPath()
		if err != nil {
			return err
		}
		if ipc.Running(socketPath) {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon already running")
			return nil
		}
		lockPath, err := config.LockFilePath()
		if err != nil {
			return err
		}
		pidPath, err := config.PIDFilePath()
		if err != nil {
			return err
		}
		if err := ipc.EnsureDaemon(socketPath, lockPath, pidPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon started")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
