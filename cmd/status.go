package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/ipc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and device status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		return withUserEnv(cmd, func(e *env) error {
			client, err := e.client()
			if err != nil {
				return err
			}
			callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			resp, err := client.Call(callCtx, ipc.ActionStatus, "")
			cancel()
			if err != nil {
				fmt.Fprintf(out, "Daemon:   not running (%v)\n", err)
			} else {
				fmt.Fprintf(out, "Daemon:   running (PID %d)\n", resp.PID)
			}

			clientID, err := e.state.ClientID(ctx)
			if err != nil {
				return err
			}
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Client:   %s\n", clientID)
			fmt.Fprintf(out, "Account:  %s\n", accountID)

			status, err := e.state.LastStatus(ctx)
			if err != nil {
				return err
			}
			ts, source, err := e.state.LastStatusInfo(ctx)
			if err != nil {
				return err
			}
			if ts != "" {
				fmt.Fprintf(out, "Status:   %s (%s, %s)\n", status, source, localTime(ts))
			} else {
				fmt.Fprintf(out, "Status:   %s\n", status)
			}

			auth, err := e.state.ExtensionAuth(ctx)
			if err != nil {
				return err
			}
			switch {
			case auth == nil:
				fmt.Fprintln(out, "User:     not logged in")
			case auth.IsAdmin:
				fmt.Fprintf(out, "User:     %s (admin)\n", auth.DisplayName)
			default:
				fmt.Fprintf(out, "User:     %s\n", auth.DisplayName)
			}

			cu, err := e.admin().CurrentUser(ctx, accountID)
			if err != nil {
				fmt.Fprintf(out, "Seat:     unknown (%v)\n", err)
				return nil
			}
			if cu == nil {
				fmt.Fprintln(out, "Seat:     free")
				return nil
			}
			mine := ""
			if cu.ClientID == clientID {
				mine = ", this device"
			}
			fmt.Fprintf(out, "Seat:     %s (since %s%s)\n", cu.DisplayName, localTime(cu.LoggedInAt), mine)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
