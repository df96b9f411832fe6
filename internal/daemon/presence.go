package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/davebream/rpswatch/internal/ipc"
	"github.com/davebream/rpswatch/internal/reconciler"
)

// RemotePresence forwards presence actions made by a CLI process to the
// daemon. When no daemon is running the action is applied in-process by
// fallback instead.
type RemotePresence struct {
	client   *ipc.Client
	fallback *reconciler.Reconciler
	logger   *slog.Logger
}

func NewRemotePresence(client *ipc.Client, fallback *reconciler.Reconciler, logger *slog.Logger) *RemotePresence {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemotePresence{client: client, fallback: fallback, logger: logger}
}

// Do sends a state-changing action. It reports whether the daemon handled
// it; false means it was applied locally.
func (p *RemotePresence) Do(ctx context.Context, action, userID string) (bool, error) {
	_, err := p.client.Call(ctx, action, userID)
	if !errors.Is(err, ipc.ErrDaemonNotRunning) || p.fallback == nil {
		return err == nil, err
	}
	in, ok := IntentFor(action, userID)
	if !ok {
		return false, fmt.Errorf("action %q needs a running daemon", action)
	}
	p.logger.Debug("daemon not running, applying locally", "action", action)
	p.fallback.Apply(ctx, in)
	return false, nil
}

func (p *RemotePresence) LoggedIn(ctx context.Context) error {
	_, err := p.Do(ctx, ipc.ActionLogin, "")
	return err
}

func (p *RemotePresence) LoggedOut(ctx context.Context, userID string) error {
	_, err := p.Do(ctx, ipc.ActionLogout, userID)
	return err
}
