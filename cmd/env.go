package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/davebream/rpswatch/internal/admin"
	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/daemon"
	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/extauth"
	"github.com/davebream/rpswatch/internal/ipc"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/reconciler"
	"github.com/davebream/rpswatch/internal/store"
)

// env is what a short-lived command needs: config, device state and the
// remote store.
type env struct {
	cfg    *config.Config
	state  *devicestate.State
	store  store.Store
	logger *slog.Logger
}

func openEnv(ctx context.Context) (*env, error) {
	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = cfg.Level()
	}
	logger := logging.New(os.Stderr, level)

	syncPath, err := config.SyncStatePath()
	if err != nil {
		return nil, err
	}
	localPath, err := config.LocalStatePath()
	if err != nil {
		return nil, err
	}
	state, err := devicestate.Open(ctx, syncPath, localPath)
	if err != nil {
		return nil, fmt.Errorf("open device state: %w", err)
	}

	e := &env{cfg: cfg, state: state, logger: logger}
	s, err := daemon.OpenStore(daemon.ResolveBackendURL(ctx, cfg, state), logger)
	if err != nil {
		if !errors.Is(err, store.ErrNotConfigured) {
			state.Close()
			return nil, err
		}
		// Commands that only need local state still work; store calls
		// report ErrNotConfigured.
		e.store = store.NewSwitch(nil)
	} else {
		e.store = s
	}
	return e, nil
}

func (e *env) Close() error { return e.state.Close() }

// accountID returns --account or the account selected on this device.
func (e *env) accountID(ctx context.Context) (string, error) {
	if flagAccount != "" {
		return flagAccount, nil
	}
	return e.state.AccountID(ctx)
}

func (e *env) admin() *admin.Service {
	return admin.New(e.store, admin.WithLogger(logging.Component(e.logger, "admin")))
}

// reconciler runs presence changes in this process. There is no browser
// attached, so cookie-driven intents are skipped.
func (e *env) reconciler() *reconciler.Reconciler {
	return reconciler.New(e.store, e.state, browser.None{},
		reconciler.WithLogger(logging.Component(e.logger, "reconciler")))
}

func (e *env) client() (*ipc.Client, error) {
	socketPath, err := config.SocketPath()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(socketPath), nil
}

// presence sends actions to the daemon, or to an in-process reconciler when
// the daemon is not running.
func (e *env) presence() (*daemon.RemotePresence, error) {
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	return daemon.NewRemotePresence(client, e.reconciler(), logging.Component(e.logger, "presence")), nil
}

func (e *env) auth() (*extauth.Service, error) {
	presence, err := e.presence()
	if err != nil {
		return nil, err
	}
	return extauth.New(e.store, e.state, presence, extauth.WithLogger(logging.Component(e.logger, "auth"))), nil
}

// withEnv opens the environment for the duration of fn.
func withEnv(ctx context.Context, fn func(e *env) error) error {
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

// withUserEnv is withEnv for commands that show the extension user's view.
// A pending forced logout is applied and reported first.
func withUserEnv(cmd *cobra.Command, fn func(e *env) error) error {
	return withEnv(cmd.Context(), func(e *env) error {
		e.checkForcedLogout(cmd.Context(), cmd.ErrOrStderr())
		return fn(e)
	})
}

// checkForcedLogout signs the extension user out when an admin reset their
// password since they logged in. Store failures leave the login alone.
func (e *env) checkForcedLogout(ctx context.Context, w io.Writer) bool {
	svc, err := e.auth()
	if err != nil {
		return false
	}
	err = svc.CheckForcedLogout(ctx)
	if errors.Is(err, extauth.ErrForcedLogout) {
		fmt.Fprintln(w, "You have been logged out (password was changed by admin)")
		return true
	}
	if err != nil {
		e.logger.Debug("forced logout check failed", "error", err)
	}
	return false
}

// confirm asks a yes/no question on in unless yes is already set.
func confirm(in io.Reader, out io.Writer, prompt string, yes bool) bool {
	if yes {
		return true
	}
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// parseDate reads a YYYY-MM-DD date in local time; "today" and "yesterday"
// are accepted.
func parseDate(v string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", v)
	}
	return t, nil
}

// localTime renders a wire timestamp in local time, or "-".
func localTime(ts string) string {
	t, ok := model.ParseTime(ts)
	if !ok {
		return "-"
	}
	return t.Local().Format("Jan 2 15:04")
}
