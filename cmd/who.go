package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoCmd = &cobra.Command{
	Use:   "who",
	Short: "Show who holds the shared seat",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		return withUserEnv(cmd, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			cu, err := e.admin().CurrentUser(ctx, accountID)
			if err != nil {
				return err
			}
			if cu == nil {
				fmt.Fprintln(out, "No one is using the shared account.")
				return nil
			}
			fmt.Fprintf(out, "%s since %s\n", cu.DisplayName, localTime(cu.LoggedInAt))
			if flagVerbose {
				fmt.Fprintf(out, "  client:  %s\n  session: %s\n", cu.ClientID, cu.SessionID)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(whoCmd)
}
