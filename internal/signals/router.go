package signals

import (
	"context"
	"log/slog"
	"time"

	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/model"
)

// EventKind classifies a browser observation.
type EventKind int

const (
	EventCookieChanged EventKind = iota + 1
	EventPageLoaded
	EventConflictText
)

func (k EventKind) String() string {
	switch k {
	case EventCookieChanged:
		return "cookie_changed"
	case EventPageLoaded:
		return "page_loaded"
	case EventConflictText:
		return "conflict_text"
	default:
		return "unknown"
	}
}

// Event is one browser observation.
type Event struct {
	Kind EventKind
	// Removed is set on EventCookieChanged when the auth cookie went away.
	Removed bool
	URL     string
}

// Scheduler runs f after d. The default is time.AfterFunc.
type Scheduler func(d time.Duration, f func())

func afterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Router maps observations to intents. Settle delays only defer the
// intent; the reconciler reads the cookie when it processes a recheck, so a
// delayed intent always resolves the state at that moment.
type Router struct {
	ctx      context.Context
	sink     Sink
	schedule Scheduler
	logger   *slog.Logger
}

type RouterOption func(*Router)

func WithScheduler(s Scheduler) RouterOption {
	return func(r *Router) { r.schedule = s }
}

// NewRouter returns a Router feeding sink. Timers that fire after ctx is
// done are dropped.
func NewRouter(ctx context.Context, sink Sink, logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{ctx: ctx, sink: sink, schedule: afterFunc, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Dispatch handles one observation.
func (r *Router) Dispatch(ev Event) {
	r.logger.Debug("browser event", "kind", ev.Kind.String(), "url", ev.URL, "removed", ev.Removed)

	switch ev.Kind {
	case EventCookieChanged:
		source := SourceCookieSet
		if ev.Removed {
			source = SourceCookieRemoved
		}
		r.after(CookieSettleDelay, Recheck(source))

	case EventPageLoaded:
		if !browser.IsLinkedInURL(ev.URL) {
			return
		}
		if browser.IsSessionConflictURL(ev.URL) {
			r.sink.Submit(Observed(model.StatusLoggedOut, SourceSessionConflict))
			return
		}
		r.sink.Submit(Intent{Kind: KindTabLoaded, Source: SourceTabRPS})
		r.after(NavigationSettleDelay, Recheck(SourceNavigation))

	case EventConflictText:
		r.sink.Submit(Observed(model.StatusLoggedOut, SourceSessionConflict))
	}
}

// Startup schedules the initial status derivation.
func (r *Router) Startup(source string) {
	r.after(StartupDelay, Recheck(source))
}

func (r *Router) after(d time.Duration, in Intent) {
	r.schedule(d, func() {
		if r.ctx.Err() != nil {
			return
		}
		r.sink.Submit(in)
	})
}
