package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/daemon"
	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/logging"
)

var daemonForeground bool

var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the rpswatch daemon (internal, started by 'rpswatch start')",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		syscall.Umask(0077)
		signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

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
			return fmt.Errorf("load config: %w", err)
		}

		socketPath, err := config.SocketPath()
		if err != nil {
			return err
		}
		pidPath, err := config.PIDFilePath()
		if err != nil {
			return err
		}

		level := new(slog.LevelVar)
		level.Set(cfg.Level())
		logDir, err := config.LogDir()
		if err != nil {
			return err
		}
		if err := config.EnsureDir(logDir, 0700); err != nil {
			// Non-fatal: logging falls back to stderr
			fmt.Fprintf(os.Stderr, "rpswatch: cannot create log directory: %v\n", err)
		}
		logger, logCleanup, logErr := logging.Setup(logDir, level, daemonForeground)
		if logErr != nil {
			fmt.Fprintf(os.Stderr, "rpswatch: cannot set up file logging: %v\n", logErr)
			logger = logging.New(os.Stderr, level)
			logCleanup = func() {}
		}
		defer logCleanup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

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

		var b browser.Browser = browser.None{}
		if cfg.CDPURL != "" {
			cdp, err := browser.Connect(ctx, cfg.CDPURL, logging.Component(logger, "browser"))
			if err != nil {
				logger.Warn("browser not attached, only explicit actions will be handled", "error", err)
			} else {
				defer cdp.Close()
				b = cdp
			}
		} else {
			logger.Warn("cdp_url not set, browser signals are disabled")
		}

		d, err := daemon.New(daemon.Options{
			Config:     cfg,
			ConfigPath: cfgPath,
			SocketPath: socketPath,
			PIDPath:    pidPath,
			State:      state,
			Browser:    b,
			Logger:     logger,
			Level:      level,
		})
		if err != nil {
			return err
		}
		return d.Run(ctx)
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonForeground, "foreground", false, "Also log to stderr")
	rootCmd.AddCommand(daemonCmd)
}
