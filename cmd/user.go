package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/admin"
	"github.com/davebream/rpswatch/internal/model"
)

var (
	userID          string
	userUsername    string
	userDisplayName string
	userPassword    string
	userTeam        string
	userAdmin       bool
	userDeleteYes   bool
	userAdminOff    bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage extension users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extension users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			users, err := e.admin().ListUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users.")
				return nil
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		})
	},
}

func printUsers(out io.Writer, users []admin.UserEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tTEAM\tROLE")
	for _, u := range users {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.DisplayName, orDash(u.TeamID), role)
	}
	w.Flush()
}

var userSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a user, or update one with --id",
	Long: `Creates a user, or replaces the user given by --id. Updating a user logs
them out of every device. The password is read from --password, or from the
first line of stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			svc := e.admin()
			u := model.User{ID: userID}
			isAdmin := userAdmin
			if userID != "" {
				existing, err := findUser(cmd, svc, userID)
				if err != nil {
					return err
				}
				u = existing.User
				if !cmd.Flags().Changed("admin") {
					isAdmin = existing.IsAdmin
				}
			}
			flags := cmd.Flags()
			if flags.Changed("username") {
				u.Username = userUsername
			}
			if flags.Changed("name") {
				u.DisplayName = userDisplayName
			}
			if flags.Changed("team") {
				u.TeamID = userTeam
			}
			u.Password = userPassword
			if u.Password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				u.Password = p
			}

			id, err := svc.SaveUser(ctx, u, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved user %s\n", id)
			return nil
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete user %s?", args[0]), userDeleteYes) {
				return errors.New("aborted")
			}
			if err := e.admin().DeleteUser(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
			return nil
		})
	},
}

var userAdminCmd = &cobra.Command{
	Use:   "admin <id>",
	Short: "Grant admin rights (or revoke with --off)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			if err := e.admin().SetAdmin(ctx, args[0], !userAdminOff); err != nil {
				return err
			}
			state := "granted"
			if userAdminOff {
				state = "revoked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %s for %s\n", state, args[0])
			return nil
		})
	},
}

func findUser(cmd *cobra.Command, svc *admin.Service, id string) (admin.UserEntry, error) {
	users, err := svc.ListUsers(cmd.Context())
	if err != nil {
		return admin.UserEntry{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return admin.UserEntry{}, fmt.Errorf("user %s not found", id)
}

func init() {
	userSaveCmd.Flags().StringVar(&userID, "id", "", "Id of the user to update")
	userSaveCmd.Flags().StringVarP(&userUsername, "username", "u", "", "Username")
	userSaveCmd.Flags().StringVar(&userDisplayName, "name", "", "Display name (defaults to username)")
	userSaveCmd.Flags().StringVar(&userPassword, "password", "", "Password (prompted on stdin if empty)")
	userSaveCmd.Flags().StringVar(&userTeam, "team", "", "Team (account id) the user belongs to")
	userSaveCmd.Flags().BoolVar(&userAdmin, "admin", false, "Grant admin rights")
	userDeleteCmd.Flags().BoolVarP(&userDeleteYes, "yes", "y", false, "Do not ask for confirmation")
	userAdminCmd.Flags().BoolVar(&userAdminOff, "off", false, "Revoke admin rights")

	userCmd.AddCommand(userListCmd, userSaveCmd, userDeleteCmd, userAdminCmd)
	rootCmd.AddCommand(userCmd)
}
