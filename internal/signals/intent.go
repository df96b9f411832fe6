// Package signals turns browser observations, timers and user actions into
// intents for the reconciler queue.
package signals

import (
	"time"

	"github.com/davebream/rpswatch/internal/model"
)

// Kind selects what the reconciler does with an intent.
type Kind int

const (
	// KindObserved resolves an already observed login state.
	KindObserved Kind = iota + 1
	// KindRecheck reads the auth cookie when processed and resolves that.
	KindRecheck
	// KindTabLoaded upgrades a personal status once a recruiter tab shows up.
	KindTabLoaded
	KindHeartbeat
	KindEnsurePresence
	KindWriteOnline
	KindRemoveOnline
	// KindLogin acquires the slot for a newly logged-in extension user.
	KindLogin
	// KindLogout releases the slot and the online entry of the departing user.
	KindLogout
)

func (k Kind) String() string {
	switch k {
	case KindObserved:
		return "observed"
	case KindRecheck:
		return "recheck"
	case KindTabLoaded:
		return "tab_loaded"
	case KindHeartbeat:
		return "heartbeat"
	case KindEnsurePresence:
		return "ensure_presence"
	case KindWriteOnline:
		return "write_online"
	case KindRemoveOnline:
		return "remove_online"
	case KindLogin:
		return "login"
	case KindLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Sources recorded with each resolved status.
const (
	SourceCookieRemoved   = "cookie_removed"
	SourceCookieSet       = "cookie_set_or_updated"
	SourceSessionConflict = "session_conflict_page"
	SourceNavigation      = "navigation_completed"
	SourceTabRPS          = "tab_rps_url"
	SourceStartup         = "browser_startup"
	SourceEnsurePresence  = "ensure_presence"
	SourcePopupLogin      = "popup_login"
	SourceManual          = "manual"
)

// Settle delays and periods.
const (
	CookieSettleDelay     = 2 * time.Second
	NavigationSettleDelay = 3 * time.Second
	StartupDelay          = 2 * time.Second
	HeartbeatInterval     = 30 * time.Second
)

// Intent is one unit of work for the reconciler.
type Intent struct {
	Kind   Kind
	Status model.Status
	Source string
	UserID string
}

func Observed(status model.Status, source string) Intent {
	return Intent{Kind: KindObserved, Status: status, Source: source}
}

func Recheck(source string) Intent {
	return Intent{Kind: KindRecheck, Source: source}
}

// Sink accepts intents. Submit must not block for long.
type Sink interface {
	Submit(Intent)
}

type SinkFunc func(Intent)

func (f SinkFunc) Submit(in Intent) { f(in) }
