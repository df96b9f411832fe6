package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var historyDebug bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the status history of this device",
	Long:  "Lists the last resolved login statuses, newest first. --debug lists the diagnostic log instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		return withUserEnv(cmd, func(e *env) error {
			if historyDebug {
				logs, err := e.state.DebugLogs(ctx)
				if err != nil {
					return err
				}
				for _, l := range logs {
					extra := ""
					if len(l.Extra) > 0 {
						data, _ := json.Marshal(l.Extra)
						extra = " " + string(data)
					}
					fmt.Fprintf(out, "%s  %s%s\n", localTime(l.Timestamp), l.Message, extra)
				}
				return nil
			}

			entries, err := e.state.StatusHistory(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No status recorded yet.")
				return nil
			}
			for _, en := range entries {
				email := ""
				if en.DetectedEmail != "" {
					email = "  " + en.DetectedEmail
				}
				fmt.Fprintf(out, "%s  %-20s %s%s\n", localTime(en.Timestamp), en.Status, en.Source, email)
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyDebug, "debug", false, "Show the debug log")
	rootCmd.AddCommand(historyCmd)
}
