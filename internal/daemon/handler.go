package daemon

import (
	"context"
	"os"

	"github.com/davebream/rpswatch/internal/ipc"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/signals"
)

// IntentFor maps a state-changing action to its intent.
func IntentFor(action, userID string) (signals.Intent, bool) {
	switch action {
	case ipc.ActionEnsurePresence:
		return signals.Intent{Kind: signals.KindEnsurePresence, Source: signals.SourceEnsurePresence}, true
	case ipc.ActionWriteOnline:
		return signals.Intent{Kind: signals.KindWriteOnline, Source: signals.SourceManual}, true
	case ipc.ActionRemoveOnline:
		return signals.Intent{Kind: signals.KindRemoveOnline, UserID: userID}, true
	case ipc.ActionSessionConflict:
		return signals.Observed(model.StatusLoggedOut, signals.SourceSessionConflict), true
	case ipc.ActionLogin:
		return signals.Intent{Kind: signals.KindLogin, Source: signals.SourcePopupLogin}, true
	case ipc.ActionLogout:
		return signals.Intent{Kind: signals.KindLogout, UserID: userID}, true
	}
	return signals.Intent{}, false
}

// handle answers one IPC request. State-changing actions are queued and the
// response is sent once the intent has been applied.
func (d *Daemon) handle(ctx context.Context, req *ipc.Request) *ipc.Response {
	switch req.Action {
	case ipc.ActionStatus:
		resp := ipc.NewOKResponse(req.ID)
		resp.PID = os.Getpid()
		return resp
	case ipc.ActionAccountInfo:
		resp := ipc.NewOKResponse(req.ID)
		resp.Email = d.rec.AccountEmail(ctx)
		return resp
	}

	in, ok := IntentFor(req.Action, req.UserID)
	if !ok {
		return ipc.NewErrorResponse(req.ID, ipc.CodeUnknownAction, "unknown action "+req.Action)
	}
	if err := d.queue.SubmitWait(ctx, in); err != nil {
		code := ipc.CodeFailed
		if ctx.Err() == nil {
			code = ipc.CodeShuttingDown
		}
		return ipc.NewErrorResponse(req.ID, code, err.Error())
	}
	return ipc.NewOKResponse(req.ID)
}
