package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/admin"
	"github.com/davebream/rpswatch/internal/calendar"
	"github.com/davebream/rpswatch/internal/model"
)

var (
	sessionsDate     string
	sessionsPurgeAll bool
	sessionsPurgeYes bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and delete session records",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		now := time.Now()
		return withEnv(ctx, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			sessions, err := e.admin().ListSessions(ctx, accountID)
			if err != nil {
				return err
			}
			if sessionsDate != "" {
				day, err := parseDate(sessionsDate, now)
				if err != nil {
					return err
				}
				sessions = admin.SessionsOn(sessions, day)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tLOGIN\tLOGOUT\tDURATION\tCLIENT")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Label(), localTime(s.LoginAt), logoutLabel(s), duration(s, now), s.ClientID)
			}
			return w.Flush()
		})
	},
}

func logoutLabel(s model.Session) string {
	if s.Open() {
		return "open"
	}
	return localTime(s.LogoutAt)
}

func duration(s model.Session, now time.Time) string {
	login, ok := model.ParseTime(s.LoginAt)
	if !ok {
		return "-"
	}
	end := now
	if !s.Open() {
		if end, ok = model.ParseTime(s.LogoutAt); !ok {
			return "-"
		}
	}
	return calendar.FormatTotal(end.Sub(login))
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withEnv(ctx, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			if err := e.admin().DeleteSession(ctx, accountID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		})
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the sessions of one day (--date) or all of them (--all)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if sessionsPurgeAll == (sessionsDate != "") {
			return errors.New("pass exactly one of --date or --all")
		}
		return withEnv(ctx, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			svc := e.admin()
			var n int
			if sessionsPurgeAll {
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete all sessions of %q?", accountID), sessionsPurgeYes) {
					return errors.New("aborted")
				}
				n, err = svc.DeleteAllSessions(ctx, accountID)
			} else {
				day, perr := parseDate(sessionsDate, time.Now())
				if perr != nil {
					return perr
				}
				prompt := fmt.Sprintf("Delete sessions of %q on %s?", accountID, day.Format("2006-01-02"))
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt, sessionsPurgeYes) {
					return errors.New("aborted")
				}
				n, err = svc.DeleteSessionsOn(ctx, accountID, day)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d sessions\n", n)
			return nil
		})
	},
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsDate, "date", "", "Only sessions that started on this day (YYYY-MM-DD, today, yesterday)")
	sessionsPurgeCmd.Flags().StringVar(&sessionsDate, "date", "", "Day to delete (YYYY-MM-DD, today, yesterday)")
	sessionsPurgeCmd.Flags().BoolVar(&sessionsPurgeAll, "all", false, "Delete every session")
	sessionsPurgeCmd.Flags().BoolVarP(&sessionsPurgeYes, "yes", "y", false, "Do not ask for confirmation")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd, sessionsPurgeCmd)
	rootCmd.AddCommand(sessionsCmd)
}
