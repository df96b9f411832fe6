// Package reconciler resolves this device's LinkedIn login state and keeps
// the shared presence slot, session records and status events consistent
// with it.
//
// Every remote failure is swallowed: it is logged, written to the local
// debug ring, and the next signal tries again.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/davebream/rpswatch/internal/browser"
	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/signals"
	"github.com/davebream/rpswatch/internal/store"
)

// SweepLimit bounds how many recent sessions a claim inspects.
const SweepLimit = 300

const (
	accountCacheSize = 16
	accountCacheTTL  = 30 * time.Second
)

// Reconciler is not safe for concurrent use; feed it through a Queue.
type Reconciler struct {
	store   store.Store
	state   *devicestate.State
	browser browser.Browser
	slots   SlotGuard
	now     func() time.Time
	logger  *slog.Logger

	accounts *expirable.LRU[string, model.AccountConfig]
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithSlotGuard(g SlotGuard) Option {
	return func(r *Reconciler) { r.slots = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithAccountCacheTTL sets how long an account config read stays cached.
// Zero disables caching.
func WithAccountCacheTTL(ttl time.Duration) Option {
	return func(r *Reconciler) {
		if ttl <= 0 {
			r.accounts = nil
			return
		}
		r.accounts = expirable.NewLRU[string, model.AccountConfig](accountCacheSize, nil, ttl)
	}
}

func New(s store.Store, state *devicestate.State, b browser.Browser, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    s,
		state:    state,
		browser:  b,
		slots:    NewBestEffortSlot(s),
		now:      time.Now,
		logger:   slog.Default(),
		accounts: expirable.NewLRU[string, model.AccountConfig](accountCacheSize, nil, accountCacheTTL),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Apply executes one intent.
func (r *Reconciler) Apply(ctx context.Context, in signals.Intent) {
	switch in.Kind {
	case signals.KindObserved:
		r.HandleStatus(ctx, in.Status, in.Source)
	case signals.KindRecheck:
		r.Recheck(ctx, in.Source)
	case signals.KindTabLoaded:
		r.TabLoaded(ctx)
	case signals.KindHeartbeat, signals.KindWriteOnline:
		r.WriteOnline(ctx)
	case signals.KindEnsurePresence:
		r.EnsurePresence(ctx)
	case signals.KindRemoveOnline:
		r.RemoveOnline(ctx, in.UserID)
	case signals.KindLogin:
		r.LoggedIn(ctx, in.Source)
	case signals.KindLogout:
		r.LoggedOut(ctx, in.UserID)
	default:
		r.logger.Warn("unknown intent", "kind", in.Kind.String())
	}
}

// HandleStatus resolves an observed login state: classify, record locally,
// acquire or release the slot, then publish shared transitions. It returns
// the resolved status.
func (r *Reconciler) HandleStatus(ctx context.Context, observed model.Status, source string) model.Status {
	now := r.now()
	ts := model.FormatTime(now)

	var (
		email    string
		shared   bool
		resolved model.Status
	)
	switch observed {
	case model.StatusLoggedOut:
		resolved = model.StatusLoggedOut
	case model.StatusLoggedIn, model.StatusLoggedInPersonal:
		observed = model.StatusLoggedIn
		shared, email = r.classify(ctx)
		resolved = model.StatusLoggedInPersonal
		if shared {
			resolved = model.StatusLoggedIn
		}
	case model.StatusUnknown:
		r.logger.Warn("ignoring unknown status", "source", source)
		return model.StatusUnknown
	}

	switch {
	case resolved == model.StatusLoggedInPersonal && email == "":
		r.debug(ctx, "Could not detect account email, not tracking (show as Personal)", "source", source)
	case resolved == model.StatusLoggedInPersonal:
		r.debug(ctx, "Personal account (not tracking): "+email, "detectedEmail", email, "isRPS", shared)
	}

	entry := model.StatusHistoryEntry{
		Status:        resolved,
		Source:        source,
		Timestamp:     ts,
		DetectedEmail: email,
		IsRPS:         shared,
	}
	if err := r.state.RecordStatus(ctx, entry); err != nil {
		r.logger.Error("record status failed", "error", err)
	}
	r.debug(ctx, "Status change: "+resolved.String(), "source", source, "detectedEmail", email, "isRPS", shared)

	switch resolved {
	case model.StatusLoggedIn:
		r.Acquire(ctx, source)
	case model.StatusLoggedOut, model.StatusLoggedInPersonal:
		r.Release(ctx)
	}

	if resolved.Shared() || resolved == model.StatusLoggedOut {
		r.publish(ctx, observed, source, ts, email, shared)
	}
	return resolved
}

// Recheck reads the auth cookie now and resolves it.
func (r *Reconciler) Recheck(ctx context.Context, source string) {
	loggedIn, err := r.browser.AuthCookiePresent(ctx)
	if err != nil {
		r.logger.Debug("cookie check skipped", "source", source, "error", err)
		return
	}
	status := model.StatusLoggedOut
	if loggedIn {
		status = model.StatusLoggedIn
	}
	r.HandleStatus(ctx, status, source)
}

// TabLoaded upgrades a personal classification once a recruiter tab is open
// and the active account has a configured email.
func (r *Reconciler) TabLoaded(ctx context.Context) {
	loggedIn, err := r.browser.AuthCookiePresent(ctx)
	if err != nil || !loggedIn {
		return
	}
	tabs, err := r.browser.Tabs(ctx)
	if err != nil || !browser.AnyRecruiterTab(tabs) {
		return
	}
	cfg, ok := r.accountConfig(ctx)
	if !ok || cfg.Email == "" {
		return
	}
	last, err := r.state.LastStatus(ctx)
	if err != nil || last != model.StatusLoggedInPersonal {
		return
	}
	r.HandleStatus(ctx, model.StatusLoggedIn, signals.SourceTabRPS)
}

// EnsurePresence re-claims the slot when this device is logged in to the
// shared account with an extension user present.
func (r *Reconciler) EnsurePresence(ctx context.Context) {
	loggedIn, err := r.browser.AuthCookiePresent(ctx)
	if err != nil || !loggedIn {
		return
	}
	last, err := r.state.LastStatus(ctx)
	if err != nil || last != model.StatusLoggedIn {
		return
	}
	if _, ok := r.identity(ctx); !ok {
		return
	}
	r.Acquire(ctx, signals.SourceEnsurePresence)
}

// LoggedIn follows an extension login: announce the user online and claim
// the slot if the device is already on the shared account.
func (r *Reconciler) LoggedIn(ctx context.Context, source string) {
	r.WriteOnline(ctx)
	last, err := r.state.LastStatus(ctx)
	if err != nil || last != model.StatusLoggedIn {
		return
	}
	if source == "" {
		source = signals.SourcePopupLogin
	}
	r.Acquire(ctx, source)
}

// LoggedOut follows an extension logout of userID.
func (r *Reconciler) LoggedOut(ctx context.Context, userID string) {
	r.Release(ctx)
	r.RemoveOnline(ctx, userID)
}

// AccountEmail probes open LinkedIn tabs and returns the first account
// email found.
func (r *Reconciler) AccountEmail(ctx context.Context) string {
	tabs, err := r.browser.Tabs(ctx)
	if err != nil {
		return ""
	}
	for _, t := range tabs {
		probe, err := r.browser.Probe(ctx, t.ID)
		if err != nil {
			continue
		}
		if email := probe.AccountEmail(); email != "" {
			return email
		}
	}
	return ""
}

// classify decides whether a logged-in browser uses the shared account.
func (r *Reconciler) classify(ctx context.Context) (shared bool, email string) {
	if tabs, err := r.browser.Tabs(ctx); err == nil {
		shared = browser.AnyRecruiterTab(tabs)
	}
	email = r.AccountEmail(ctx)
	if !shared && email != "" {
		shared = r.isSharedEmail(ctx, email)
	}
	if !shared {
		// Sticky until logout: closing the last recruiter tab does not make
		// the session personal.
		if last, err := r.state.LastStatus(ctx); err == nil && last == model.StatusLoggedIn {
			shared = true
		}
	}
	return shared, email
}

func (r *Reconciler) isSharedEmail(ctx context.Context, email string) bool {
	if cfg, ok := r.accountConfig(ctx); ok && cfg.Email != "" && strings.EqualFold(cfg.Email, email) {
		return true
	}
	saved, err := r.state.SavedAccounts(ctx)
	if err != nil {
		return false
	}
	for _, a := range saved {
		if a.MatchesEmail(email) {
			return true
		}
	}
	return false
}

// accountConfig reads the active account's config. Failed reads are not
// cached.
func (r *Reconciler) accountConfig(ctx context.Context) (model.AccountConfig, bool) {
	accountID, err := r.state.AccountID(ctx)
	if err != nil {
		return model.AccountConfig{}, false
	}
	if r.accounts != nil {
		if cfg, ok := r.accounts.Get(accountID); ok {
			return cfg, true
		}
	}
	var cfg model.AccountConfig
	if _, err := r.store.Get(ctx, store.AccountConfigPath(accountID), nil, &cfg); err != nil {
		r.logger.Debug("account config read failed", "account", accountID, "error", err, "kind", store.ErrorKind(err))
		return model.AccountConfig{}, false
	}
	if r.accounts != nil {
		r.accounts.Add(accountID, cfg)
	}
	return cfg, true
}

func (r *Reconciler) identity(ctx context.Context) (model.Identity, bool) {
	auth, err := r.state.ExtensionAuth(ctx)
	if err != nil {
		return model.Identity{}, false
	}
	return auth.Identity()
}

// publish writes accounts/{id}/state and appends a status event.
func (r *Reconciler) publish(ctx context.Context, status model.Status, source, ts, email string, shared bool) {
	accountID, err := r.state.AccountID(ctx)
	if err != nil {
		r.fail(ctx, "Status not sent: no active account", err)
		return
	}
	clientID, err := r.state.ClientID(ctx)
	if err != nil {
		r.fail(ctx, "Status not sent: no client id", err)
		return
	}
	ident, _ := r.identity(ctx)

	st := model.AccountState{
		Status:                   status,
		LastClientID:             clientID,
		UpdatedAt:                ts,
		DetectedEmail:            email,
		IsRPS:                    shared,
		CurrentExtensionUserID:   ident.UserID,
		CurrentExtensionUserName: ident.DisplayName,
	}
	if err := r.store.Put(ctx, store.AccountStatePath(accountID), st); err != nil {
		r.fail(ctx, "Store write failed", err, "account", accountID)
		return
	}

	ev := model.Event{
		Status:                   status,
		ClientID:                 clientID,
		Timestamp:                ts,
		Source:                   source,
		DetectedEmail:            email,
		IsRPS:                    &shared,
		CurrentExtensionUserID:   ident.UserID,
		CurrentExtensionUserName: ident.DisplayName,
	}
	key, err := r.store.Post(ctx, store.EventsPath(accountID), ev)
	if err != nil {
		r.fail(ctx, "Store write failed", err, "account", accountID)
		return
	}
	r.debug(ctx, "Status written to store", "account", accountID, "eventKey", key)
}

// debug records msg in the structured log and the local debug ring. args
// are slog key/value pairs.
func (r *Reconciler) debug(ctx context.Context, msg string, args ...any) {
	r.logger.Debug(msg, args...)
	if err := r.state.AppendDebugLog(ctx, msg, extraFromArgs(args)); err != nil {
		r.logger.Warn("append debug log failed", "error", err)
	}
}

// fail records a swallowed error.
func (r *Reconciler) fail(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err.Error(), "kind", store.ErrorKind(err))
	r.logger.Warn(msg, args...)
	if err := r.state.AppendDebugLog(ctx, msg, extraFromArgs(args)); err != nil {
		r.logger.Warn("append debug log failed", "error", err)
	}
}

func extraFromArgs(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	extra := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		switch v := args[i+1].(type) {
		case error:
			extra[key] = v.Error()
		case json.Marshaler, string, bool, int, int64, float64, nil:
			extra[key] = v
		default:
			extra[key] = fmt.Sprint(v)
		}
	}
	return extra
}
