package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign this device in as an extension user",
	Long: `Signs in with a username and password from the shared user list. The
password is read from --password, or from the first line of stdin.

While signed in, this device claims the shared seat whenever the browser is
logged in to the shared LinkedIn account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		password := loginPassword
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			var err error
			if password, err = readLine(cmd.InOrStdin()); err != nil {
				return err
			}
		}
		return withEnv(ctx, func(e *env) error {
			svc, err := e.auth()
			if err != nil {
				return err
			}
			auth, err := svc.Login(ctx, loginUsername, password)
			if err != nil {
				return err
			}
			role := ""
			if auth.IsAdmin {
				role = " (admin)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s%s\n", auth.DisplayName, role)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign the extension user out of this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			svc, err := e.auth()
			if err != nil {
				return err
			}
			if err := svc.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted on stdin if empty)")
	_ = loginCmd.MarkFlagRequired("username")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
