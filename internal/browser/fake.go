package browser

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scriptable Browser for tests and dry runs.
type Fake struct {
	mu       sync.Mutex
	loggedIn bool
	tabs     []Tab
	probes   map[string]*PageProbe
	err      error
}

func NewFake() *Fake {
	return &Fake{probes: map[string]*PageProbe{}}
}

func (f *Fake) SetLoggedIn(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = v
}

// SetTabs replaces the open tabs; each gets an empty probe unless one was
// set with SetProbe.
func (f *Fake) SetTabs(urls ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs = f.tabs[:0]
	for i, u := range urls {
		f.tabs = append(f.tabs, Tab{ID: fmt.Sprintf("tab-%d", i), URL: u})
	}
}

func (f *Fake) SetProbe(tabID string, p *PageProbe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes[tabID] = p
}

// SetError makes every call fail with err; nil clears it.
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Fake) AuthCookiePresent(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn, f.err
}

func (f *Fake) Tabs(context.Context) ([]Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Tab, len(f.tabs))
	copy(out, f.tabs)
	return out, nil
}

func (f *Fake) Probe(_ context.Context, tabID string) (*PageProbe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.probes[tabID]; ok {
		return p, nil
	}
	for _, t := range f.tabs {
		if t.ID == tabID {
			return &PageProbe{URL: t.URL}, nil
		}
	}
	return nil, fmt.Errorf("no tab %s", tabID)
}
