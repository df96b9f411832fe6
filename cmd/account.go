package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/ipc"
	"github.com/davebream/rpswatch/internal/model"
)

var (
	accountTeamName    string
	accountEmail       string
	accountDisplayName string
	accountProfilePath string
	accountDeleteYes   bool
	accountRememberAs  string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage shared accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		return withEnv(ctx, func(e *env) error {
			ids, err := e.admin().ListAccounts(ctx)
			if err != nil {
				return err
			}
			active, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			if !slices.Contains(ids, active) {
				ids = append(ids, active)
			}
			for _, id := range ids {
				mark := "  "
				if id == active {
					mark = "* "
				}
				fmt.Fprintf(out, "%s%s\n", mark, id)
			}
			return nil
		})
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show an account's config and seat",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		return withEnv(ctx, func(e *env) error {
			id, err := accountArg(e, cmd, args)
			if err != nil {
				return err
			}
			svc := e.admin()
			cfg, found, err := svc.AccountConfig(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Account:      %s\n", id)
			if !found {
				fmt.Fprintln(out, "Config:       none")
			} else {
				fmt.Fprintf(out, "Team:         %s\n", orDash(cfg.TeamName))
				fmt.Fprintf(out, "Email:        %s\n", orDash(cfg.Email))
				fmt.Fprintf(out, "Display name: %s\n", orDash(cfg.DisplayName))
				fmt.Fprintf(out, "Profile:      %s\n", orDash(cfg.ProfilePath))
			}
			cu, err := svc.CurrentUser(ctx, id)
			if err != nil {
				return err
			}
			if cu == nil {
				fmt.Fprintln(out, "Seat:         free")
			} else {
				fmt.Fprintf(out, "Seat:         %s (since %s)\n", cu.DisplayName, localTime(cu.LoggedInAt))
			}
			return nil
		})
	},
}

var accountSaveCmd = &cobra.Command{
	Use:   "save [id]",
	Short: "Create or update an account's config",
	Long:  "Only the given flags are changed; pass an empty value to clear a field.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			id, err := accountArg(e, cmd, args)
			if err != nil {
				return err
			}
			svc := e.admin()
			cfg, _, err := svc.AccountConfig(ctx, id)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("team") {
				cfg.TeamName = accountTeamName
			}
			if flags.Changed("email") {
				cfg.Email = accountEmail
			}
			if flags.Changed("display-name") {
				cfg.DisplayName = accountDisplayName
			}
			if flags.Changed("profile-path") {
				cfg.ProfilePath = accountProfilePath
			}
			if err := svc.SaveAccountConfig(ctx, id, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved account %s\n", id)
			return nil
		})
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an account with all its sessions and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			id := args[0]
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete account %q and all its data?", id), accountDeleteYes) {
				return errors.New("aborted")
			}
			if err := e.admin().DeleteAccount(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", id)
			return nil
		})
	},
}

var accountUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Select the account this device reports to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			if err := e.state.SetAccountID(ctx, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using account %s\n", args[0])
			return nil
		})
	},
}

var accountRememberCmd = &cobra.Command{
	Use:   "remember <email>",
	Short: "Remember a LinkedIn login as belonging to the shared account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			email := strings.TrimSpace(args[0])
			saved, err := e.state.SavedAccounts(ctx)
			if err != nil {
				return err
			}
			saved = slices.DeleteFunc(saved, func(a model.SavedAccount) bool { return a.MatchesEmail(email) })
			saved = append(saved, model.SavedAccount{ID: email, Name: accountRememberAs, Username: email})
			if err := e.state.SetSavedAccounts(ctx, saved); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Remembered %s\n", email)
			return nil
		})
	},
}

var accountForgetCmd = &cobra.Command{
	Use:   "forget <email>",
	Short: "Forget a remembered LinkedIn login",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			saved, err := e.state.SavedAccounts(ctx)
			if err != nil {
				return err
			}
			n := len(saved)
			saved = slices.DeleteFunc(saved, func(a model.SavedAccount) bool { return a.MatchesEmail(args[0]) })
			if len(saved) == n {
				return fmt.Errorf("%s is not remembered", args[0])
			}
			if err := e.state.SetSavedAccounts(ctx, saved); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
			return nil
		})
	},
}

var accountTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the connection to the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			if err := e.admin().TestConnection(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Connection OK")
			return nil
		})
	},
}

var accountDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Ask the daemon which LinkedIn login the browser is using",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			client, err := e.client()
			if err != nil {
				return err
			}
			resp, err := client.Call(ctx, ipc.ActionAccountInfo, "")
			if err != nil {
				return err
			}
			if resp.Email == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No LinkedIn login detected")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Email)
			return nil
		})
	},
}

// accountArg returns the positional id or the active account.
func accountArg(e *env, cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return e.accountID(cmd.Context())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	accountSaveCmd.Flags().StringVar(&accountTeamName, "team", "", "Team name")
	accountSaveCmd.Flags().StringVar(&accountEmail, "email", "", "LinkedIn email of the shared login")
	accountSaveCmd.Flags().StringVar(&accountDisplayName, "display-name", "", "Display name")
	accountSaveCmd.Flags().StringVar(&accountProfilePath, "profile-path", "", "LinkedIn profile path")
	accountDeleteCmd.Flags().BoolVarP(&accountDeleteYes, "yes", "y", false, "Do not ask for confirmation")
	accountRememberCmd.Flags().StringVar(&accountRememberAs, "name", "", "Label for the login")

	accountCmd.AddCommand(accountListCmd, accountShowCmd, accountSaveCmd, accountDeleteCmd,
		accountUseCmd, accountRememberCmd, accountForgetCmd, accountTestCmd, accountDetectCmd)
	rootCmd.AddCommand(accountCmd)
}
