package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/ipc"
)

var presenceResetYes bool

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Trigger presence updates for this device",
}

// presenceAction builds a subcommand that sends one action to the daemon.
func presenceAction(use, short, action string, userArg bool) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEnv(ctx, func(e *env) error {
				userID := ""
				if userArg {
					if len(args) > 0 {
						userID = args[0]
					} else {
						auth, err := e.state.ExtensionAuth(ctx)
						if err != nil {
							return err
						}
						if auth == nil || auth.UserID == "" {
							return errors.New("no extension user on this device; pass a user id")
						}
						userID = auth.UserID
					}
				}
				p, err := e.presence()
				if err != nil {
					return err
				}
				handled, err := p.Do(ctx, action, userID)
				if err != nil {
					return err
				}
				where := "daemon"
				if !handled {
					where = "locally, daemon not running"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Done (%s)\n", where)
				return nil
			})
		},
	}
	if userArg {
		c.Args = cobra.MaximumNArgs(1)
	}
	return c
}

var presenceResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the online entries of every member of the account's team",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			prompt := fmt.Sprintf("Clear presence for all members of team %q?", accountID)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt, presenceResetYes) {
				return errors.New("aborted")
			}
			n, err := e.admin().ResetTeamPresence(ctx, accountID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared presence for %d users\n", n)
			return nil
		})
	},
}

func init() {
	presenceCmd.AddCommand(
		presenceAction("ensure", "Re-check the browser and repair presence records", ipc.ActionEnsurePresence, false),
		presenceAction("online", "Write this device's online heartbeat now", ipc.ActionWriteOnline, false),
		presenceAction("offline [userId]", "Remove a user's online entry (defaults to the signed-in user)", ipc.ActionRemoveOnline, true),
		presenceAction("conflict", "Report that LinkedIn showed the session conflict page", ipc.ActionSessionConflict, false),
	)
	presenceResetCmd.Flags().BoolVarP(&presenceResetYes, "yes", "y", false, "Do not ask for confirmation")
	presenceCmd.AddCommand(presenceResetCmd)
	rootCmd.AddCommand(presenceCmd)
}
