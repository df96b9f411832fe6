package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	flagAccount string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rpswatch",
	Short: "Shared LinkedIn Recruiter seat presence",
	Long: `rpswatch tracks who is using the shared LinkedIn Recruiter account.

A background daemon watches the browser for LinkedIn logins and keeps the
"who is using it now" slot and the session history in the shared database.
The other commands sign extension users in and out, show who is active, and
manage accounts, users and session records.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", "", "Account id (defaults to the account selected on this device)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at the configured level to stderr")
}
