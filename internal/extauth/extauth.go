// Package extauth signs extension users in and out of this device.
// Credentials live in plaintext under /users and are compared as stored.
package extauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// OnlineGrace is how long another device's heartbeat keeps a user locked
// to it.
const OnlineGrace = 10 * time.Minute

var (
	ErrMissingCredentials = errors.New("please enter username and password")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoUsers            = errors.New("no users found")
	ErrActiveElsewhere    = errors.New("user is already active on another device")
	ErrForcedLogout       = errors.New("you have been logged out (password was changed by admin)")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// ActiveElsewhereError names the device that holds the user.
type ActiveElsewhereError struct {
	ClientID string
	// Slot is true when the shared seat, not just a heartbeat, is held.
	Slot bool
}

func (e *ActiveElsewhereError) Error() string {
	if e.Slot {
		return fmt.Sprintf("this user is already logged in at another location (%s); log out there first, or ask an admin to reset the password to force logout", e.ClientID)
	}
	return fmt.Sprintf("this user is already active on another device (%s)", e.ClientID)
}

func (e *ActiveElsewhereError) Is(target error) bool {
	return target == ErrActiveElsewhere
}

// Presence is notified after the local login state changes.
type Presence interface {
	LoggedIn(ctx context.Context) error
	LoggedOut(ctx context.Context, userID string) error
}

type Service struct {
	store    store.Store
	state    *devicestate.State
	presence Presence
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(s store.Store, state *devicestate.State, presence Presence, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		state:    state,
		presence: presence,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// Login checks credentials and that the user is not active on another
// device, then persists the login and notifies presence.
func (s *Service) Login(ctx context.Context, username, password string) (*model.ExtensionAuth, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var users map[string]json.RawMessage
	found, err := s.store.Get(ctx, store.UsersPath(), nil, &users)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if !found || len(users) == 0 {
		return nil, ErrNoUsers
	}

	var (
		userID string
		user   model.User
	)
	for id, raw := range users {
		var u model.User
		if json.Unmarshal(raw, &u) != nil {
			continue
		}
		if u.Username != "" && strings.EqualFold(u.Username, username) && u.Password == password {
			userID, user = id, u
			break
		}
	}
	if userID == "" {
		return nil, ErrInvalidCredentials
	}

	clientID, err := s.state.ClientID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var online model.OnlinePresence
	if ok, err := s.store.Get(ctx, store.OnlineUserPath(userID), nil, &online); err == nil && ok &&
		online.ClientID != "" && online.ClientID != clientID {
		lastSeen, seen := model.ParseTime(online.LastSeenAt)
		if !seen || now.Sub(lastSeen) < OnlineGrace {
			return nil, &ActiveElsewhereError{ClientID: online.ClientID}
		}
	}

	accountID, err := s.state.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	var cur model.CurrentUser
	ok, err := s.store.Get(ctx, store.CurrentUserPath(accountID), nil, &cur)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	if ok && cur.UserID == userID && cur.ClientID != "" && cur.ClientID != clientID {
		return nil, &ActiveElsewhereError{ClientID: cur.ClientID, Slot: true}
	}

	var isAdmin bool
	if _, err := s.store.Get(ctx, store.AdminPath(userID), nil, &isAdmin); err != nil {
		s.logger.Debug("admin flag unreadable", "user", userID, "error", err)
		isAdmin = false
	}

	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Username
	}
	auth := &model.ExtensionAuth{
		IsAdmin:     isAdmin,
		UserID:      userID,
		Username:    user.Username,
		DisplayName: displayName,
		LoggedInAt:  model.FormatTime(now),
	}
	if err := s.state.SetExtensionAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("save login: %w", err)
	}
	s.logger.Info("extension user logged in", "user", userID, "admin", isAdmin)

	if err := s.presence.LoggedIn(ctx); err != nil {
		s.logger.Warn("presence update after login failed", "error", err)
	}
	return auth, nil
}

// Logout releases the slot, forgets the login and removes the user's
// online entry.
func (s *Service) Logout(ctx context.Context) error {
	auth, err := s.state.ExtensionAuth(ctx)
	if err != nil {
		return err
	}
	if auth == nil {
		return ErrNotLoggedIn
	}
	return s.signOut(ctx, auth)
}

// CheckForcedLogout signs the user out when an admin changed their
// password after they logged in, and reports it with ErrForcedLogout.
// Admin logins are exempt.
func (s *Service) CheckForcedLogout(ctx context.Context) error {
	auth, err := s.state.ExtensionAuth(ctx)
	if err != nil || auth == nil || auth.IsAdmin || auth.UserID == "" {
		return err
	}
	var user model.User
	found, err := s.store.Get(ctx, store.UserPath(auth.UserID), nil, &user)
	if err != nil || !found {
		return nil
	}
	if !ForcedOut(user.ForceLogoutAt, auth.LoggedInAt) {
		return nil
	}
	s.logger.Info("forced logout", "user", auth.UserID, "forceLogoutAt", user.ForceLogoutAt)
	if err := s.signOut(ctx, auth); err != nil {
		return err
	}
	return ErrForcedLogout
}

// ForcedOut reports whether forceLogoutAt is later than loggedInAt. A login
// without a timestamp predates every reset.
func ForcedOut(forceLogoutAt, loggedInAt string) bool {
	force, ok := model.ParseTime(forceLogoutAt)
	if !ok {
		return false
	}
	login, ok := model.ParseTime(loggedInAt)
	if !ok {
		return true
	}
	return force.After(login)
}

func (s *Service) signOut(ctx context.Context, auth *model.ExtensionAuth) error {
	userID := auth.UserID
	if userID == "" && auth.IsAdmin {
		userID = model.AdminIdentity.UserID
	}
	if err := s.state.ClearExtensionAuth(ctx); err != nil {
		return fmt.Errorf("clear login: %w", err)
	}
	if err := s.presence.LoggedOut(ctx, userID); err != nil {
		s.logger.Warn("presence update after logout failed", "error", err)
	}
	s.logger.Info("extension user logged out", "user", userID)
	return nil
}
