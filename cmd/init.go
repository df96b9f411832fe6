package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/devicestate"
)

var (
	initBackend      string
	initCDPURL       string
	initWorkdayStart int
	initLogLevel     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the rpswatch config",
	Long: `Writes the config file, keeping any values that are not given as flags,
and makes sure this device has a client id.

The backend is the base URL of the shared realtime database, or "memory"
for a local dry run. The CDP URL points at a Chrome instance started with
--remote-debugging-port; without it only explicit commands update presence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		cfgDir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		if err := config.EnsureDir(cfgDir, 0700); err != nil {
			return err
		}
		cfgPath, err := config.ConfigFilePath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("backend") {
			cfg.BackendURL = initBackend
		}
		if flags.Changed("cdp-url") {
			cfg.CDPURL = initCDPURL
		}
		if flags.Changed("workday-start") {
			cfg.WorkdayStartHour = initWorkdayStart
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = initLogLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", cfgPath)

		syncPath, err := config.SyncStatePath()
		if err != nil {
			return err
		}
		localPath, err := config.LocalStatePath()
		if err != nil {
			return err
		}
		state, err := devicestate.Open(ctx, syncPath, localPath)
		if err != nil {
			return fmt.Errorf("open device state: %w", err)
		}
		defer state.Close()

		clientID, err := state.ClientID(ctx)
		if err != nil {
			return err
		}
		if flagAccount != "" {
			if err := state.SetAccountID(ctx, flagAccount); err != nil {
				return err
			}
		}
		accountID, err := state.AccountID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Client:  %s\n", clientID)
		fmt.Fprintf(out, "Account: %s\n", accountID)
		if cfg.BackendURL == "" {
			fmt.Fprintln(out, "\nNo backend configured yet. Re-run with --backend URL.")
		} else {
			fmt.Fprintln(out, "\nRun 'rpswatch start' to start the daemon.")
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", "", "Realtime database base URL, or \"memory\"")
	initCmd.Flags().StringVar(&initCDPURL, "cdp-url", "", "Chrome DevTools endpoint, e.g. http://127.0.0.1:9222")
	initCmd.Flags().IntVar(&initWorkdayStart, "workday-start", config.DefaultWorkdayStartHour, "Hour the calendar work day starts (0-23)")
	initCmd.Flags().StringVar(&initLogLevel, "log-level", "", "Daemon log level (debug, info, warn, error)")
	rootCmd.AddCommand(initCmd)
}
