package cmd

import (
	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/admin"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:       "inspect sessions|events",
	Short:     "Dump the newest raw records of an account node",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(admin.NodeSessions), string(admin.NodeEvents)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			data, err := e.admin().Inspect(ctx, accountID, admin.Node(args[0]), admin.Format(inspectFormat))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", string(admin.FormatJSON), "Output format: json or yaml")
	rootCmd.AddCommand(inspectCmd)
}
