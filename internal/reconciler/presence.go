package reconciler

import (
	"context"
	"encoding/json"

	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// Acquire claims the presence slot for the logged-in extension user and
// opens a session for it unless this device already holds one. Other users'
// open sessions are closed so at most one stays open per account.
func (r *Reconciler) Acquire(ctx context.Context, source string) {
	ident, ok := r.identity(ctx)
	if !ok {
		return
	}
	clientID, err := r.state.ClientID(ctx)
	if err != nil {
		r.fail(ctx, "Presence not set: no client id", err)
		return
	}
	accountID, err := r.state.AccountID(ctx)
	if err != nil {
		r.fail(ctx, "Presence not set: no active account", err)
		return
	}
	now := r.now()
	ts := model.FormatTime(now)

	ptr, err := r.state.CurrentSession(ctx)
	if err != nil {
		r.fail(ctx, "Presence not set: session pointer unreadable", err)
		return
	}

	cur, err := r.slots.Current(ctx, accountID)
	if err != nil {
		r.fail(ctx, "Presence not set: slot unreadable", err, "account", accountID)
		return
	}
	if cur != nil && cur.UserID == ident.UserID && cur.ClientID != "" && cur.ClientID != clientID {
		// Same person is active on another device.
		return
	}

	if cur != nil && !cur.Identity().Equal(ident) {
		toClose := cur.SessionID
		if toClose == "" && cur.ClientID == clientID {
			toClose = ptr.ID
		}
		if toClose != "" {
			r.closeIfOpen(ctx, accountID, toClose, ts)
		}
		if cur.ClientID == clientID {
			r.forgetSession(ctx)
			ptr = devicestate.SessionPointer{}
		}
	}

	r.sweep(ctx, accountID, ident, ts)

	ptr = r.validatePointer(ctx, ptr, accountID, clientID, ts)

	loggedInAt := ts
	if ptr.ID != "" && cur != nil && cur.ClientID == clientID && cur.UserID == ident.UserID && cur.LoggedInAt != "" {
		loggedInAt = cur.LoggedInAt
	}
	claim := model.CurrentUser{
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		ClientID:    clientID,
		LoggedInAt:  loggedInAt,
		SessionID:   ptr.ID,
	}
	if err := r.slots.Claim(ctx, accountID, claim); err != nil {
		r.fail(ctx, "Presence not set: claim failed", err, "account", accountID)
		return
	}
	if ptr.ID != "" {
		return
	}

	isRps := true
	sessionID, err := r.store.Post(ctx, store.SessionsPath(accountID), model.Session{
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		ClientID:    clientID,
		LoginAt:     ts,
		IsRps:       &isRps,
	})
	if err != nil {
		r.fail(ctx, "Session not opened", err, "account", accountID)
		return
	}
	if err := r.state.SetCurrentSession(ctx, devicestate.SessionPointer{ID: sessionID, AccountID: accountID}); err != nil {
		r.logger.Error("remember session failed", "session", sessionID, "error", err)
	}
	if err := r.slots.AttachSession(ctx, accountID, sessionID); err != nil {
		r.fail(ctx, "Session not attached to presence", err, "session", sessionID)
	}

	if source == "" {
		source = "extension"
	}
	if _, err := r.store.Post(ctx, store.EventsPath(accountID), model.Event{
		Type:        model.EventTypeRPSLogin,
		DisplayName: ident.DisplayName,
		UserID:      ident.UserID,
		At:          ts,
		Source:      source,
	}); err != nil {
		r.fail(ctx, "Login event not written", err, "session", sessionID)
	}
	r.debug(ctx, "Presence set (Who's using now)", "account", accountID, "session", sessionID, "source", source)
}

// Release closes this device's remembered session and empties the slot if
// this device holds it. A slot held by another device is never touched.
func (r *Reconciler) Release(ctx context.Context) {
	ptr, err := r.state.CurrentSession(ctx)
	if err != nil {
		r.fail(ctx, "Presence not cleared: session pointer unreadable", err)
		return
	}
	accountID := ptr.AccountID
	if accountID == "" {
		if accountID, err = r.state.AccountID(ctx); err != nil {
			r.fail(ctx, "Presence not cleared: no active account", err)
			return
		}
	}
	clientID, err := r.state.ClientID(ctx)
	if err != nil {
		r.fail(ctx, "Presence not cleared: no client id", err)
		return
	}
	ts := model.FormatTime(r.now())

	if ptr.ID != "" && r.closeSession(ctx, accountID, ptr.ID, ts) {
		r.forgetSession(ctx)
	}

	released, err := r.slots.ReleaseIfOwner(ctx, accountID, clientID)
	if err != nil {
		r.fail(ctx, "Presence not cleared", err, "account", accountID)
		return
	}
	if released {
		r.debug(ctx, "Extension presence cleared (Who's using now)", "source", "logged_out")
	}
}

// closeSession rewrites the full session record with logoutAt set. It
// reports whether the pointer to it can be dropped.
func (r *Reconciler) closeSession(ctx context.Context, accountID, sessionID, ts string) bool {
	path := store.SessionPath(accountID, sessionID)
	var rec map[string]any
	found, err := r.store.Get(ctx, path, nil, &rec)
	if err != nil {
		r.fail(ctx, "Session not closed", err, "session", sessionID)
		return false
	}
	if !found {
		return true
	}
	rec["logoutAt"] = ts
	if err := r.store.Put(ctx, path, rec); err != nil {
		r.fail(ctx, "Session not closed", err, "session", sessionID)
		return false
	}
	return true
}

func (r *Reconciler) closeIfOpen(ctx context.Context, accountID, sessionID, ts string) {
	path := store.SessionPath(accountID, sessionID)
	var s model.Session
	found, err := r.store.Get(ctx, path, nil, &s)
	if err != nil {
		r.fail(ctx, "Previous session not closed", err, "session", sessionID)
		return
	}
	if !found || !s.Open() {
		return
	}
	if err := r.store.Patch(ctx, path, map[string]any{"logoutAt": ts}); err != nil {
		r.fail(ctx, "Previous session not closed", err, "session", sessionID)
	}
}

// sweep closes every open session not belonging to keep among the most
// recent SweepLimit sessions. If the bounded query is rejected (for example
// a missing index rule) the whole node is read instead.
func (r *Reconciler) sweep(ctx context.Context, accountID string, keep model.Identity, ts string) {
	path := store.SessionsPath(accountID)
	var raw map[string]json.RawMessage
	if _, err := r.store.Get(ctx, path, store.LastN(SweepLimit), &raw); err != nil {
		r.logger.Debug("bounded session read failed, reading all", "error", err, "kind", store.ErrorKind(err))
		raw = nil
		if _, err := r.store.Get(ctx, path, nil, &raw); err != nil {
			r.fail(ctx, "Session sweep failed", err, "account", accountID)
			return
		}
	}
	for _, s := range model.SessionsFromRaw(raw) {
		if !s.Open() || s.Identity().Equal(keep) {
			continue
		}
		if err := r.store.Patch(ctx, store.SessionPath(accountID, s.ID), map[string]any{"logoutAt": ts}); err != nil {
			r.fail(ctx, "Session sweep close failed", err, "session", s.ID)
			continue
		}
		r.logger.Info("closed concurrent session", "session", s.ID, "user", s.UserID)
	}
}

// validatePointer drops a remembered session that is no longer open. One
// remembered under another account is closed there, along with the slot if
// this device still holds it.
func (r *Reconciler) validatePointer(ctx context.Context, ptr devicestate.SessionPointer, accountID, clientID, ts string) devicestate.SessionPointer {
	if ptr.ID == "" {
		return ptr
	}
	if ptr.AccountID != "" && ptr.AccountID != accountID {
		if _, err := r.slots.ReleaseIfOwner(ctx, ptr.AccountID, clientID); err != nil {
			r.fail(ctx, "Previous account presence not cleared", err, "account", ptr.AccountID)
		}
		if r.closeSession(ctx, ptr.AccountID, ptr.ID, ts) {
			r.forgetSession(ctx)
			return devicestate.SessionPointer{}
		}
		return ptr
	}
	var s model.Session
	found, err := r.store.Get(ctx, store.SessionPath(accountID, ptr.ID), nil, &s)
	if err != nil {
		return ptr
	}
	if !found || !s.Open() {
		r.forgetSession(ctx)
		return devicestate.SessionPointer{}
	}
	return ptr
}

func (r *Reconciler) forgetSession(ctx context.Context) {
	if err := r.state.ClearCurrentSession(ctx); err != nil {
		r.logger.Error("forget session failed", "error", err)
	}
}

// WriteOnline refreshes extensionOnline/{userId} for the logged-in
// extension user, keeping firstSeenAt.
func (r *Reconciler) WriteOnline(ctx context.Context) {
	ident, ok := r.identity(ctx)
	if !ok {
		return
	}
	clientID, err := r.state.ClientID(ctx)
	if err != nil {
		r.fail(ctx, "Online heartbeat skipped", err)
		return
	}
	ts := model.FormatTime(r.now())
	path := store.OnlineUserPath(ident.UserID)

	firstSeen := ts
	var existing model.OnlinePresence
	if found, err := r.store.Get(ctx, path, nil, &existing); err == nil && found && existing.FirstSeenAt != "" {
		firstSeen = existing.FirstSeenAt
	}
	err = r.store.Put(ctx, path, model.OnlinePresence{
		DisplayName: ident.DisplayName,
		ClientID:    clientID,
		FirstSeenAt: firstSeen,
		LastSeenAt:  ts,
	})
	if err != nil {
		r.logger.Warn("online heartbeat failed", "user", ident.UserID, "error", err, "kind", store.ErrorKind(err))
	}
}

func (r *Reconciler) RemoveOnline(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := r.store.Put(ctx, store.OnlineUserPath(userID), nil); err != nil {
		r.logger.Warn("remove online failed", "user", userID, "error", err, "kind", store.ErrorKind(err))
	}
}
