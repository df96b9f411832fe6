package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/ipc"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check rpswatch installation and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		allOK := true

		// 1. Config file
		cfgPath, err := config.ConfigFilePath()
		if err != nil {
			fmt.Fprintf(out, "Config:  FAIL (cannot determine path: %v)\n", err)
			allOK = false
		} else if _, err := config.Load(cfgPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(out, "Config:  WARN (not found at %s, run 'rpswatch init')\n", cfgPath)
			} else {
				fmt.Fprintf(out, "Config:  FAIL (%v)\n", err)
				allOK = false
			}
		} else {
			fmt.Fprintf(out, "Config:  OK (%s)\n", cfgPath)
		}

		// 2. Socket
		socketPath, err := config.SocketPath()
		if err != nil {
			fmt.Fprintf(out, "Socket:  FAIL (cannot determine path: %v)\n", err)
			allOK = false
		} else {
			info, err := os.Stat(socketPath)
			if err != nil {
				fmt.Fprintf(out, "Socket:  WARN (not present at %s)\n", socketPath)
			} else {
				perm := info.Mode().Perm()
				if perm&0077 != 0 {
					fmt.Fprintf(out, "Socket:  FAIL (insecure permissions %04o at %s)\n", perm, socketPath)
					allOK = false
				} else {
					fmt.Fprintf(out, "Socket:  OK (%04o, %s)\n", perm, socketPath)
				}
			}
		}

		// 3. Daemon process
		pid, _, err := config.ReadDaemonPID()
		if err != nil {
			fmt.Fprintln(out, "Daemon:  WARN (no PID file, daemon may not be running)")
		} else {
			process, _ := os.FindProcess(pid)
			if process != nil && process.Signal(syscall.Signal(0)) == nil {
				fmt.Fprintf(out, "Daemon:  OK (PID %d)\n", pid)
			} else {
				fmt.Fprintf(out, "Daemon:  WARN (PID %d not running, stale PID file)\n", pid)
			}
		}

		// 4. Socket connectivity
		if socketPath != "" {
			if ipc.Running(socketPath) {
				fmt.Fprintln(out, "Connect: OK")
			} else {
				fmt.Fprintln(out, "Connect: WARN (cannot connect to daemon socket)")
			}
		}

		// 5. Backend and browser
		err = withEnv(ctx, func(e *env) error {
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := e.admin().TestConnection(checkCtx); err != nil {
				if errors.Is(err, store.ErrNotConfigured) {
					fmt.Fprintln(out, "Backend: FAIL (not configured, run 'rpswatch init --backend URL')")
				} else {
					fmt.Fprintf(out, "Backend: FAIL (%s: %v)\n", store.ErrorKind(err), err)
				}
				allOK = false
			} else {
				fmt.Fprintln(out, "Backend: OK")
			}

			if e.cfg.CDPURL == "" {
				fmt.Fprintln(out, "Browser: WARN (cdp_url not set, login detection disabled)")
				return nil
			}
			cdp, err := browser.Connect(checkCtx, e.cfg.CDPURL, logging.Discard())
			if err != nil {
				fmt.Fprintf(out, "Browser: FAIL (%v)\n", err)
				allOK = false
				return nil
			}
			defer cdp.Close()
			tabs, err := cdp.Tabs(checkCtx)
			if err != nil {
				fmt.Fprintf(out, "Browser: FAIL (%v)\n", err)
				allOK = false
				return nil
			}
			fmt.Fprintf(out, "Browser: OK (%d tabs, %s)\n", len(tabs), e.cfg.CDPURL)
			return nil
		})
		if err != nil {
			fmt.Fprintf(out, "State:   FAIL (%v)\n", err)
			allOK = false
		}

		if !allOK {
			return fmt.Errorf("some checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
