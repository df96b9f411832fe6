// Package daemon runs the long-lived background process: it owns the intent
// queue, the browser poller, the heartbeat and the IPC socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/extauth"
	"github.com/davebream/rpswatch/internal/ipc"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/reconciler"
	"github.com/davebream/rpswatch/internal/signals"
	"github.com/davebream/rpswatch/internal/store"
)

type Options struct {
	Config *config.Config
	// ConfigPath is watched for changes; empty disables hot reload.
	ConfigPath string
	SocketPath string
	// PIDPath receives the daemon PID while it runs; empty skips it.
	PIDPath string
	// Store, when set, is used as is. Otherwise the daemon resolves the
	// backend from config and device state and swaps it on reload.
	Store   store.Store
	State   *devicestate.State
	Browser browser.Browser
	Logger  *slog.Logger
	// Level is adjusted when log_level changes in the config file.
	Level *slog.LevelVar
	Now   func() time.Time
}

type Daemon struct {
	cfg        atomic.Pointer[config.Config]
	configPath string
	socketPath string
	pidPath    string
	store      store.Store
	backend    *store.Switch
	state      *devicestate.State
	browser    browser.Browser
	logger     *slog.Logger
	level      *slog.LevelVar
	now        func() time.Time

	rec   *reconciler.Reconciler
	auth  *extauth.Service
	queue *reconciler.Queue

	backendMu  sync.Mutex
	backendURL string
}

func New(opts Options) (*Daemon, error) {
	if opts.State == nil {
		return nil, errors.New("daemon: device state is required")
	}
	if opts.SocketPath == "" {
		return nil, errors.New("daemon: socket path is required")
	}
	d := &Daemon{
		configPath: opts.ConfigPath,
		socketPath: opts.SocketPath,
		pidPath:    opts.PIDPath,
		store:      opts.Store,
		state:      opts.State,
		browser:    opts.Browser,
		logger:     opts.Logger,
		level:      opts.Level,
		now:        opts.Now,
	}
	if d.store == nil {
		d.backend = store.NewSwitch(nil)
		d.store = d.backend
	}
	if d.browser == nil {
		d.browser = browser.None{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d.cfg.Store(cfg)

	d.rec = reconciler.New(d.store, d.state, d.browser,
		reconciler.WithClock(d.now),
		reconciler.WithLogger(logging.Component(d.logger, "reconciler")),
	)
	d.auth = extauth.New(d.store, d.state, queuePresence{d},
		extauth.WithClock(d.now),
		extauth.WithLogger(logging.Component(d.logger, "auth")),
	)
	return d, nil
}

func (d *Daemon) config() *config.Config { return d.cfg.Load() }

// Run serves until ctx is done. Startup order: bind the socket, start the
// queue, schedule the startup recheck, then start the poller, heartbeat and
// config watcher.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.applyConfig(ctx, d.config())

	srv := ipc.NewServer(d.socketPath, ipc.HandlerFunc(d.handle), logging.Component(d.logger, "ipc"))
	if err := srv.Listen(); err != nil {
		return err
	}
	if d.pidPath != "" {
		if err := config.AtomicWriteFile(d.pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0600); err != nil {
			d.logger.Warn("failed to write PID file", "error", err)
		} else {
			defer os.Remove(d.pidPath)
		}
	}

	d.queue = reconciler.NewQueue(ctx, d.rec.Apply, logging.Component(d.logger, "queue"))
	defer d.queue.Close()

	router := signals.NewRouter(ctx, d.queue, logging.Component(d.logger, "signals"))
	router.Startup(signals.SourceStartup)
	d.queue.Submit(signals.Intent{Kind: signals.KindWriteOnline, Source: signals.SourceStartup})

	poller := signals.NewPoller(d.browser, d.config().Poll(), router.Dispatch, logging.Component(d.logger, "poller"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		d.heartbeatLoop(ctx)
	}()
	if d.configPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := config.Watch(ctx, d.configPath, d.logger, func(cfg *config.Config) {
				d.logger.Info("config reloaded", "path", d.configPath)
				d.cfg.Store(cfg)
				d.applyConfig(ctx, cfg)
			}); err != nil {
				d.logger.Warn("config watch disabled", "error", err)
			}
		}()
	}

	d.logger.Info("daemon started", "socket", d.socketPath, "pid", os.Getpid())
	err := srv.Serve(ctx)
	cancel()
	wg.Wait()
	d.logger.Info("shutting down")
	return err
}

// heartbeatLoop refreshes the online entry on every tick after checking for
// a forced logout. The interval is re-read each tick so reloads apply.
func (d *Daemon) heartbeatLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(d.config().Heartbeat())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		d.beat(ctx)
	}
}

func (d *Daemon) beat(ctx context.Context) {
	if err := d.auth.CheckForcedLogout(ctx); err != nil {
		if errors.Is(err, extauth.ErrForcedLogout) {
			d.logger.Info("extension user was logged out by an admin")
			return
		}
		d.logger.Debug("forced logout check failed", "error", err)
	}
	d.queue.Submit(signals.Intent{Kind: signals.KindHeartbeat})
}

// applyConfig points the store at the configured backend and applies the
// log level.
func (d *Daemon) applyConfig(ctx context.Context, cfg *config.Config) {
	if d.level != nil {
		d.level.Set(cfg.Level())
	}
	if d.backend == nil {
		return
	}
	url := ResolveBackendURL(ctx, cfg, d.state)

	d.backendMu.Lock()
	defer d.backendMu.Unlock()
	if url == d.backendURL && d.backendURL != "" {
		return
	}
	d.backendURL = url
	s, err := OpenStore(url, d.logger)
	if err != nil {
		d.logger.Warn("backend not configured", "error", err)
		d.backend.Set(nil)
		return
	}
	d.backend.Set(s)
	d.logger.Info("backend selected", "url", url)
}

// queuePresence routes login changes made by the daemon itself (forced
// logout) through the intent queue.
type queuePresence struct{ d *Daemon }

func (p queuePresence) LoggedIn(ctx context.Context) error {
	return p.d.queue.SubmitWait(ctx, signals.Intent{Kind: signals.KindLogin, Source: signals.SourcePopupLogin})
}

func (p queuePresence) LoggedOut(ctx context.Context, userID string) error {
	return p.d.queue.SubmitWait(ctx, signals.Intent{Kind: signals.KindLogout, UserID: userID})
}
