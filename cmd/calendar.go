package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/calendar"
)

var (
	calendarDate string
	calendarZoom int
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show who used the shared account over a work day",
	Long: `Draws a timeline of shared-account sessions for one work day. A work day
runs from workday_start_hour to the same hour the next day.

Without --date the current work day is shown; with --date the work day
ending on that date is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		now := time.Now()
		return withUserEnv(cmd, func(e *env) error {
			startHour := e.cfg.WorkdayStartHour
			w := calendar.WindowContaining(now, startHour)
			if calendarDate != "" {
				day, err := parseDate(calendarDate, now)
				if err != nil {
					return err
				}
				w = calendar.WindowEndingOn(day, startHour)
			}

			accountID, err := e.accountID(ctx)
			if err != nil {
				return err
			}
			sessions, err := e.admin().ListSessions(ctx, accountID)
			if err != nil {
				return err
			}
			view := calendar.ViewState{ZoomIndex: calendarZoom}
			fmt.Fprint(cmd.OutOrStdout(), calendar.Render(calendar.Project(sessions, w, now), w, view, startHour))
			return nil
		})
	},
}

func init() {
	calendarCmd.Flags().StringVar(&calendarDate, "date", "", "Show the work day ending on this date (YYYY-MM-DD, today, yesterday)")
	calendarCmd.Flags().IntVar(&calendarZoom, "zoom", calendar.DefaultZoomIndex, fmt.Sprintf("Zoom level 0-%d", len(calendar.ZoomLevels)-1))
	rootCmd.AddCommand(calendarCmd)
}
