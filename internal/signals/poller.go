package signals

import (
	"context"
	"log/slog"
	"time"

	"github.com/davebream/rpswatch/internal/browser"
)

// Poller turns periodic browser snapshots into Events. DevTools has no
// cookie change stream across tabs we don't own, so changes are found by
// diffing snapshots.
type Poller struct {
	browser  browser.Browser
	interval time.Duration
	emit     func(Event)
	logger   *slog.Logger

	primed   bool
	loggedIn bool
	tabs     map[string]string
}

func NewPoller(b browser.Browser, interval time.Duration, emit func(Event), logger *slog.Logger) *Poller {
	return &Poller{
		browser:  b,
		interval: interval,
		emit:     emit,
		logger:   logger,
		tabs:     map[string]string{},
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll takes one snapshot and emits the differences from the previous one.
// The first successful snapshot only sets the baseline.
func (p *Poller) Poll(ctx context.Context) {
	loggedIn, err := p.browser.AuthCookiePresent(ctx)
	if err != nil {
		p.logger.Debug("cookie poll failed", "error", err)
		return
	}
	tabs, err := p.browser.Tabs(ctx)
	if err != nil {
		p.logger.Debug("tab poll failed", "error", err)
		return
	}

	current := make(map[string]string, len(tabs))
	for _, t := range tabs {
		current[t.ID] = t.URL
	}

	if !p.primed {
		p.primed = true
		p.loggedIn = loggedIn
		p.tabs = current
		return
	}

	if loggedIn != p.loggedIn {
		p.loggedIn = loggedIn
		p.emit(Event{Kind: EventCookieChanged, Removed: !loggedIn})
	}

	for _, t := range tabs {
		if prev, ok := p.tabs[t.ID]; ok && prev == t.URL {
			continue
		}
		p.emit(Event{Kind: EventPageLoaded, URL: t.URL})
		if browser.IsSessionConflictURL(t.URL) {
			continue
		}
		probe, err := p.browser.Probe(ctx, t.ID)
		if err != nil {
			p.logger.Debug("probe failed", "tab", t.ID, "error", err)
			continue
		}
		if browser.IsSessionConflictText(probe.Text) {
			p.emit(Event{Kind: EventConflictText, URL: t.URL})
		}
	}
	p.tabs = current
}
