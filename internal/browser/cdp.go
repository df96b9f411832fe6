package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const probeTimeout = 5 * time.Second

// CDP implements Browser against a Chrome started with
// --remote-debugging-port. It never opens tabs of its own: cookies and the
// target list are read at browser level and probes attach to existing tabs.
type CDP struct {
	ctx    context.Context
	close  func()
	logger *slog.Logger
}

// Connect attaches to the DevTools endpoint at cdpURL, for example
// "http://127.0.0.1:9222".
func Connect(ctx context.Context, cdpURL string, logger *slog.Logger) (*CDP, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	closeAll := func() {
		browserCancel()
		allocCancel()
	}

	// Targets allocates the browser connection without creating a tab. The
	// connection lives as long as the context passed here.
	if _, err := chromedp.Targets(browserCtx); err != nil {
		closeAll()
		return nil, fmt.Errorf("connect to chrome at %s: %w", cdpURL, err)
	}

	go func() {
		<-ctx.Done()
		closeAll()
	}()

	return &CDP{ctx: browserCtx, close: closeAll, logger: logger}, nil
}

// Close drops the DevTools connection; the browser keeps running.
func (b *CDP) Close() {
	b.close()
}

func (b *CDP) browserExecutor(ctx context.Context) (context.Context, error) {
	c := chromedp.FromContext(b.ctx)
	if c == nil || c.Browser == nil {
		return nil, ErrUnavailable
	}
	return cdp.WithExecutor(ctx, c.Browser), nil
}

func (b *CDP) AuthCookiePresent(ctx context.Context) (bool, error) {
	exec, err := b.browserExecutor(ctx)
	if err != nil {
		return false, err
	}
	cookies, err := storage.GetCookies().Do(exec)
	if err != nil {
		return false, fmt.Errorf("read cookies: %w", err)
	}
	for _, c := range cookies {
		if c.Name == AuthCookieName && c.Domain == AuthCookieDomain && c.Value != "" {
			return true, nil
		}
	}
	return false, nil
}

func (b *CDP) Tabs(ctx context.Context) ([]Tab, error) {
	infos, err := chromedp.Targets(b.ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var tabs []Tab
	for _, info := range infos {
		if info.Type != "page" || !IsLinkedInURL(info.URL) {
			continue
		}
		tabs = append(tabs, Tab{ID: string(info.TargetID), URL: info.URL})
	}
	return tabs, nil
}

func (b *CDP) Probe(ctx context.Context, tabID string) (*PageProbe, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx, chromedp.WithTargetID(target.ID(tabID)))
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, probeTimeout)
	defer cancel()

	var p PageProbe
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(probeScript, &p)); err != nil {
		b.logger.Debug("probe failed", "tab", tabID, "error", err)
		return nil, fmt.Errorf("probe tab %s: %w", tabID, err)
	}
	return &p, nil
}
