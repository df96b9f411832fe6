package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/config"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show daemon logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		logDir, err := config.LogDir()
		if err != nil {
			return err
		}

		logFile := filepath.Join(logDir, "daemon.log")
		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "No log file found at", logFile)
			return nil
		}

		tailArgs := []string{"-n", fmt.Sprint(logsLines), logFile}
		if logsFollow {
			tailArgs = []string{"-f", logFile}
		}
		tailCmd := exec.Command("tail", tailArgs...)
		tailCmd.Stdout = cmd.OutOrStdout()
		tailCmd.Stderr = cmd.ErrOrStderr()
		return tailCmd.Run()
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
	rootCmd.AddCommand(logsCmd)
}
