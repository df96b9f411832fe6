package devicestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/google/uuid"
)

// HistoryLimit caps statusHistory and debugLogs.
const HistoryLimit = 100

// Sync scope keys.
const (
	KeyClientID      = "clientId"
	KeyAccountID     = "accountId"
	KeyBackendURL    = "backendUrl"
	KeySavedAccounts = "savedAccounts"
	KeyExtensionAuth = "extensionAuth"
)

// Local scope keys.
const (
	KeyLastStatus              = "lastStatus"
	KeyLastStatusTimestamp     = "lastStatusTimestamp"
	KeyLastStatusSource        = "lastStatusSource"
	KeyStatusHistory           = "statusHistory"
	KeyDebugLogs               = "debugLogs"
	KeyCurrentSessionID        = "currentSessionId"
	KeyCurrentSessionAccountID = "currentSessionAccountId"
)

// SessionPointer is this device's remembered open session.
type SessionPointer struct {
	ID        string
	AccountID string
}

// State is the typed view over both scopes.
type State struct {
	sync  KV
	local KV
	now   func() time.Time
	newID func() string
}

type Option func(*State)

func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithIDGenerator replaces uuid generation of the default client id.
func WithIDGenerator(fn func() string) Option {
	return func(s *State) { s.newID = fn }
}

func New(syncKV, local KV, opts ...Option) *State {
	s := &State{
		sync:  syncKV,
		local: local,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewInMemory returns a State backed by two in-memory scopes.
func NewInMemory(opts ...Option) *State {
	return New(NewMemory(), NewMemory(), opts...)
}

// Open opens the sync file and local database at their configured paths.
func Open(ctx context.Context, syncPath, localPath string, opts ...Option) (*State, error) {
	for _, dir := range []string{filepath.Dir(syncPath), filepath.Dir(localPath)} {
		if err := config.EnsureDir(dir, 0700); err != nil {
			return nil, err
		}
	}
	syncKV, err := OpenFile(syncPath)
	if err != nil {
		return nil, err
	}
	localKV, err := OpenSQLite(ctx, localPath)
	if err != nil {
		return nil, err
	}
	return New(syncKV, localKV, opts...), nil
}

func (s *State) Close() error {
	return errors.Join(s.sync.Close(), s.local.Close())
}

func (s *State) getString(ctx context.Context, kv KV, key string) (string, error) {
	var v string
	if _, err := kv.Get(ctx, key, &v); err != nil {
		return "", err
	}
	return v, nil
}

// ClientID returns the device id, generating and persisting one on first use.
func (s *State) ClientID(ctx context.Context) (string, error) {
	id, err := s.getString(ctx, s.sync, KeyClientID)
	if err == nil && id != "" {
		return id, nil
	}
	err = s.sync.Update(ctx, KeyClientID, func(raw json.RawMessage) (any, error) {
		if _, err := decode(raw, &id); err != nil || id == "" {
			id = s.newID()
		}
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("client id: %w", err)
	}
	return id, nil
}

func (s *State) SetClientID(ctx context.Context, id string) error {
	return s.sync.Set(ctx, KeyClientID, id)
}

// AccountID returns the active account, model.DefaultAccountID when unset.
func (s *State) AccountID(ctx context.Context) (string, error) {
	id, err := s.getString(ctx, s.sync, KeyAccountID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return model.DefaultAccountID, nil
	}
	return id, nil
}

func (s *State) SetAccountID(ctx context.Context, id string) error {
	return s.sync.Set(ctx, KeyAccountID, id)
}

// BackendURL returns the per-user override of the configured backend, if any.
func (s *State) BackendURL(ctx context.Context) (string, error) {
	return s.getString(ctx, s.sync, KeyBackendURL)
}

func (s *State) SetBackendURL(ctx context.Context, u string) error {
	if u == "" {
		return s.sync.Remove(ctx, KeyBackendURL)
	}
	return s.sync.Set(ctx, KeyBackendURL, u)
}

func (s *State) SavedAccounts(ctx context.Context) ([]model.SavedAccount, error) {
	var out []model.SavedAccount
	if _, err := s.sync.Get(ctx, KeySavedAccounts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *State) SetSavedAccounts(ctx context.Context, accounts []model.SavedAccount) error {
	return s.sync.Set(ctx, KeySavedAccounts, accounts)
}

// ExtensionAuth returns the logged-in extension user, nil when logged out.
func (s *State) ExtensionAuth(ctx context.Context) (*model.ExtensionAuth, error) {
	var auth model.ExtensionAuth
	found, err := s.sync.Get(ctx, KeyExtensionAuth, &auth)
	if err != nil || !found {
		return nil, err
	}
	return &auth, nil
}

func (s *State) SetExtensionAuth(ctx context.Context, auth *model.ExtensionAuth) error {
	return s.sync.Set(ctx, KeyExtensionAuth, auth)
}

func (s *State) ClearExtensionAuth(ctx context.Context) error {
	return s.sync.Remove(ctx, KeyExtensionAuth)
}

// LastStatus returns the last resolved status; StatusUnknown before the first.
func (s *State) LastStatus(ctx context.Context) (model.Status, error) {
	var st model.Status
	if _, err := s.local.Get(ctx, KeyLastStatus, &st); err != nil {
		return model.StatusUnknown, err
	}
	return st, nil
}

// LastStatusInfo returns the timestamp and source recorded with LastStatus.
func (s *State) LastStatusInfo(ctx context.Context) (timestamp, source string, err error) {
	if timestamp, err = s.getString(ctx, s.local, KeyLastStatusTimestamp); err != nil {
		return "", "", err
	}
	source, err = s.getString(ctx, s.local, KeyLastStatusSource)
	return timestamp, source, err
}

// RecordStatus prepends entry to the history and makes it the last status.
func (s *State) RecordStatus(ctx context.Context, entry model.StatusHistoryEntry) error {
	if err := pushCapped(ctx, s.local, KeyStatusHistory, entry); err != nil {
		return err
	}
	if err := s.local.Set(ctx, KeyLastStatus, entry.Status); err != nil {
		return err
	}
	if err := s.local.Set(ctx, KeyLastStatusTimestamp, entry.Timestamp); err != nil {
		return err
	}
	return s.local.Set(ctx, KeyLastStatusSource, entry.Source)
}

func (s *State) StatusHistory(ctx context.Context) ([]model.StatusHistoryEntry, error) {
	var out []model.StatusHistoryEntry
	if _, err := s.local.Get(ctx, KeyStatusHistory, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendDebugLog prepends a diagnostic line to the capped debug ring.
func (s *State) AppendDebugLog(ctx context.Context, message string, extra map[string]any) error {
	return pushCapped(ctx, s.local, KeyDebugLogs, model.DebugLogEntry{
		Message:   message,
		Extra:     extra,
		Timestamp: model.FormatTime(s.now()),
	})
}

func (s *State) DebugLogs(ctx context.Context) ([]model.DebugLogEntry, error) {
	var out []model.DebugLogEntry
	if _, err := s.local.Get(ctx, KeyDebugLogs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentSession returns the remembered open session; ID is empty if none.
func (s *State) CurrentSession(ctx context.Context) (SessionPointer, error) {
	id, err := s.getString(ctx, s.local, KeyCurrentSessionID)
	if err != nil {
		return SessionPointer{}, err
	}
	account, err := s.getString(ctx, s.local, KeyCurrentSessionAccountID)
	if err != nil {
		return SessionPointer{}, err
	}
	return SessionPointer{ID: id, AccountID: account}, nil
}

func (s *State) SetCurrentSession(ctx context.Context, p SessionPointer) error {
	if err := s.local.Set(ctx, KeyCurrentSessionID, p.ID); err != nil {
		return err
	}
	return s.local.Set(ctx, KeyCurrentSessionAccountID, p.AccountID)
}

func (s *State) ClearCurrentSession(ctx context.Context) error {
	return s.local.Remove(ctx, KeyCurrentSessionID, KeyCurrentSessionAccountID)
}

// PushCapped returns list with item prepended, truncated to limit entries.
func PushCapped[T any](list []T, item T, limit int) []T {
	out := make([]T, 0, min(len(list)+1, limit))
	out = append(out, item)
	for _, v := range list {
		if len(out) >= limit {
			break
		}
		out = append(out, v)
	}
	return out
}

func pushCapped[T any](ctx context.Context, kv KV, key string, item T) error {
	return kv.Update(ctx, key, func(raw json.RawMessage) (any, error) {
		var list []T
		if _, err := decode(raw, &list); err != nil {
			// A corrupt ring is replaced rather than blocking new entries.
			list = nil
		}
		return PushCapped(list, item, HistoryLimit), nil
	})
}
