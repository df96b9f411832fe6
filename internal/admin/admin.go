// Package admin implements the management operations behind the admin
// commands. Unlike the reconciler, every failure is returned to the caller.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func required(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type Service struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(s store.Store, opts ...Option) *Service {
	svc := &Service{store: s, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// TestConnection reads a small node to prove the backend is reachable and
// readable.
func (s *Service) TestConnection(ctx context.Context) error {
	var cu model.CurrentUser
	if _, err := s.store.Get(ctx, store.CurrentUserPath(model.DefaultAccountID), nil, &cu); err != nil {
		return fmt.Errorf("connection test: %w", err)
	}
	return nil
}

// ListAccounts returns account ids in sorted order.
func (s *Service) ListAccounts(ctx context.Context) ([]string, error) {
	var keys map[string]bool
	if _, err := s.store.Get(ctx, store.AccountsPath(), store.ShallowKeys(), &keys); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Service) AccountConfig(ctx context.Context, accountID string) (model.AccountConfig, bool, error) {
	if accountID == "" {
		return model.AccountConfig{}, false, required("account", "account id is required")
	}
	var cfg model.AccountConfig
	found, err := s.store.Get(ctx, store.AccountConfigPath(accountID), nil, &cfg)
	if err != nil {
		return model.AccountConfig{}, false, fmt.Errorf("load account %s: %w", accountID, err)
	}
	return cfg, found, nil
}

// SaveAccountConfig replaces the account config; empty fields are written
// as null so they are removed.
func (s *Service) SaveAccountConfig(ctx context.Context, accountID string, cfg model.AccountConfig) error {
	if accountID == "" {
		return required("account", "account id is required")
	}
	payload := map[string]any{
		"teamName":    nullIfEmpty(cfg.TeamName),
		"email":       nullIfEmpty(cfg.Email),
		"displayName": nullIfEmpty(cfg.DisplayName),
		"profilePath": nullIfEmpty(cfg.ProfilePath),
	}
	if err := s.store.Put(ctx, store.AccountConfigPath(accountID), payload); err != nil {
		return fmt.Errorf("save account %s: %w", accountID, err)
	}
	s.logger.Info("account config saved", "account", accountID)
	return nil
}

// DeleteAccount removes everything under accounts/{id}.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if accountID == "" {
		return required("account", "account id is required")
	}
	if err := s.store.Put(ctx, store.AccountPath(accountID), nil); err != nil {
		return fmt.Errorf("delete account %s: %w", accountID, err)
	}
	s.logger.Info("account deleted", "account", accountID)
	return nil
}

// CurrentUser returns who holds the account's slot, or nil.
func (s *Service) CurrentUser(ctx context.Context, accountID string) (*model.CurrentUser, error) {
	var cu model.CurrentUser
	found, err := s.store.Get(ctx, store.CurrentUserPath(accountID), nil, &cu)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	if !found || cu.DisplayName == "" {
		return nil, nil
	}
	return &cu, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
