package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/admin"
)

var (
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Show which team members have the extension running",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withUserEnv(cmd, func(e *env) error {
			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			rows, err := e.admin().TeamAvailability(ctx, accountID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No team members yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTeam(rows, time.Now()))
			return nil
		})
	},
}

func renderTeam(rows []admin.Availability, now time.Time) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "STATUS", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || col != 1 {
				return lipgloss.NewStyle().Padding(0, 1)
			}
			if rows[row].Active {
				return activeStyle.Padding(0, 1)
			}
			return offlineStyle.Padding(0, 1)
		})
	for _, r := range rows {
		t.Row(r.DisplayName, r.Status(now), r.Detail(now))
	}
	return t.Render()
}

func init() {
	rootCmd.AddCommand(teamCmd)
}
