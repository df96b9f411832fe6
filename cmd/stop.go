package cmd

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the rpswatch daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, _, err := config.ReadDaemonPID()
		if err != nil {
			return fmt.Errorf("daemon not running (%v)", err)
		}
		if err := stopDaemon(pid); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
		return nil
	},
}

// stopDaemon sends SIGTERM and waits up to 5s for the process to exit.
func stopDaemon(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w (daemon may not be running)", err)
	}
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
	}
	return fmt.Errorf("daemon (PID %d) did not exit within 5s", pid)
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
