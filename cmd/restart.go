package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/config"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the rpswatch daemon",
	Long:  "Stops the daemon if it is running, then starts a fresh one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, _, err := config.ReadDaemonPID(); err == nil {
			if err := stopDaemon(pid); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
		}
		return startCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
