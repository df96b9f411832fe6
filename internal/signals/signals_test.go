package signals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	intents []Intent
}

func (s *recordingSink) Submit(in Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, in)
}

func (s *recordingSink) all() []Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Intent(nil), s.intents...)
}

type pending struct {
	delay time.Duration
	fn    func()
}

type manualScheduler struct {
	timers []pending
}

func (m *manualScheduler) schedule(d time.Duration, f func()) {
	m.timers = append(m.timers, pending{d, f})
}

func (m *manualScheduler) fireAll() {
	timers := m.timers
	m.timers = nil
	for _, t := range timers {
		t.fn()
	}
}

func newTestRouter(t *testing.T, ctx context.Context) (*Router, *recordingSink, *manualScheduler) {
	t.Helper()
	sink := &recordingSink{}
	sched := &manualScheduler{}
	r := NewRouter(ctx, sink, logging.Discard(), WithScheduler(sched.schedule))
	return r, sink, sched
}

func TestRouterCookieChange(t *testing.T) {
	r, sink, sched := newTestRouter(t, context.Background())

	r.Dispatch(Event{Kind: EventCookieChanged, Removed: true})
	assert.Empty(t, sink.all(), "cookie change waits for the settle delay")
	require.Len(t, sched.timers, 1)
	assert.Equal(t, CookieSettleDelay, sched.timers[0].delay)

	sched.fireAll()
	assert.Equal(t, []Intent{Recheck(SourceCookieRemoved)}, sink.all())

	r.Dispatch(Event{Kind: EventCookieChanged})
	sched.fireAll()
	assert.Equal(t, Recheck(SourceCookieSet), sink.all()[1])
}

func TestRouterPageLoaded(t *testing.T) {
	t.Run("conflict page logs out immediately", func(t *testing.T) {
		r, sink, sched := newTestRouter(t, context.Background())
		r.Dispatch(Event{Kind: EventPageLoaded, URL: "https://www.linkedin.com/checkpoint/challenge"})
		assert.Empty(t, sched.timers)
		assert.Equal(t, []Intent{Observed(model.StatusLoggedOut, SourceSessionConflict)}, sink.all())
	})

	t.Run("regular page checks tabs then rechecks", func(t *testing.T) {
		r, sink, sched := newTestRouter(t, context.Background())
		r.Dispatch(Event{Kind: EventPageLoaded, URL: "https://www.linkedin.com/talent/home"})
		require.Len(t, sink.all(), 1)
		assert.Equal(t, KindTabLoaded, sink.all()[0].Kind)

		require.Len(t, sched.timers, 1)
		assert.Equal(t, NavigationSettleDelay, sched.timers[0].delay)
		sched.fireAll()
		assert.Equal(t, Recheck(SourceNavigation), sink.all()[1])
	})

	t.Run("non linkedin page ignored", func(t *testing.T) {
		r, sink, sched := newTestRouter(t, context.Background())
		r.Dispatch(Event{Kind: EventPageLoaded, URL: "https://example.com/"})
		assert.Empty(t, sink.all())
		assert.Empty(t, sched.timers)
	})
}

func TestRouterConflictText(t *testing.T) {
	r, sink, _ := newTestRouter(t, context.Background())
	r.Dispatch(Event{Kind: EventConflictText, URL: "https://www.linkedin.com/talent/home"})
	assert.Equal(t, []Intent{Observed(model.StatusLoggedOut, SourceSessionConflict)}, sink.all())
}

func TestRouterDropsTimersAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, sink, sched := newTestRouter(t, ctx)

	r.Startup(SourceStartup)
	require.Len(t, sched.timers, 1)
	assert.Equal(t, StartupDelay, sched.timers[0].delay)

	cancel()
	sched.fireAll()
	assert.Empty(t, sink.all())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "recheck", KindRecheck.String())
	assert.Equal(t, "logout", KindLogout.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, "page_loaded", EventPageLoaded.String())
}

func TestPollerDiffs(t *testing.T) {
	ctx := context.Background()
	b := browser.NewFake()
	b.SetTabs("https://www.linkedin.com/feed/")

	var events []Event
	p := NewPoller(b, time.Second, func(ev Event) { events = append(events, ev) }, logging.Discard())

	p.Poll(ctx)
	assert.Empty(t, events, "first poll is the baseline")

	b.SetLoggedIn(true)
	p.Poll(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Kind: EventCookieChanged, Removed: false}, events[0])

	p.Poll(ctx)
	assert.Len(t, events, 1, "no change, no event")

	b.SetTabs("https://www.linkedin.com/talent/home")
	b.SetProbe("tab-0", &browser.PageProbe{Text: "Only one session is allowed at a time"})
	p.Poll(ctx)
	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventPageLoaded, URL: "https://www.linkedin.com/talent/home"}, events[1])
	assert.Equal(t, EventConflictText, events[2].Kind)

	b.SetLoggedIn(false)
	p.Poll(ctx)
	require.Len(t, events, 4)
	assert.True(t, events[3].Removed)
}

func TestPollerSkipsProbeOnConflictURL(t *testing.T) {
	ctx := context.Background()
	b := browser.NewFake()
	var events []Event
	p := NewPoller(b, time.Second, func(ev Event) { events = append(events, ev) }, logging.Discard())
	p.Poll(ctx)

	b.SetTabs("https://www.linkedin.com/checkpoint/lg/login")
	b.SetProbe("tab-0", &browser.PageProbe{Text: "multiple sign-ins"})
	p.Poll(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, EventPageLoaded, events[0].Kind)
}

func TestPollerIgnoresBrowserErrors(t *testing.T) {
	ctx := context.Background()
	b := browser.NewFake()
	var events []Event
	p := NewPoller(b, time.Second, func(ev Event) { events = append(events, ev) }, logging.Discard())

	b.SetError(errors.New("gone"))
	p.Poll(ctx)
	b.SetError(nil)
	b.SetLoggedIn(true)
	p.Poll(ctx)
	assert.Empty(t, events, "baseline is taken from the first successful poll")
}
