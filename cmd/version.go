package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/ipc"
)

var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rpswatch %s (commit: %s, protocol: v%d)\n", version, commit, ipc.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
