package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// SessionFetchLimit bounds the fallback read and bulk deletes.
const SessionFetchLimit = 1000

// ListSessions returns the account's sessions, newest login first.
func (s *Service) ListSessions(ctx context.Context, accountID string) ([]model.Session, error) {
	if accountID == "" {
		return nil, required("account", "account id is required")
	}
	var raw map[string]json.RawMessage
	_, err := s.store.Get(ctx, store.SessionsPath(accountID), nil, &raw)
	if err != nil {
		s.logger.Debug("full sessions read failed, retrying with limit", "account", accountID, "error", err)
		raw = nil
		if _, err := s.store.Get(ctx, store.SessionsPath(accountID), store.LastN(SessionFetchLimit), &raw); err != nil {
			return nil, fmt.Errorf("load sessions: %w", err)
		}
	}
	sessions := model.SessionsFromRaw(raw)
	sort.SliceStable(sessions, func(i, j int) bool {
		a, _ := model.ParseTime(sessions[i].LoginAt)
		b, _ := model.ParseTime(sessions[j].LoginAt)
		return a.After(b)
	})
	return sessions, nil
}

// SessionsOn keeps the sessions whose login falls on day's calendar date in
// day's location.
func SessionsOn(sessions []model.Session, day time.Time) []model.Session {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []model.Session
	for _, sess := range sessions {
		t, ok := model.ParseTime(sess.LoginAt)
		if !ok {
			continue
		}
		if !t.Before(start) && t.Before(end) {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Service) DeleteSession(ctx context.Context, accountID, sessionID string) error {
	if accountID == "" || sessionID == "" {
		return required("session", "account id and session id are required")
	}
	if err := s.store.Delete(ctx, store.SessionPath(accountID, sessionID)); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// DeleteSessionsOn removes the sessions that started on day and returns
// how many were deleted.
func (s *Service) DeleteSessionsOn(ctx context.Context, accountID string, day time.Time) (int, error) {
	sessions, err := s.recentSessions(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return s.deleteAll(ctx, accountID, SessionsOn(sessions, day))
}

// DeleteAllSessions removes up to SessionFetchLimit of the newest sessions.
func (s *Service) DeleteAllSessions(ctx context.Context, accountID string) (int, error) {
	sessions, err := s.recentSessions(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return s.deleteAll(ctx, accountID, sessions)
}

func (s *Service) recentSessions(ctx context.Context, accountID string) ([]model.Session, error) {
	if accountID == "" {
		return nil, required("account", "account id is required")
	}
	var raw map[string]json.RawMessage
	if _, err := s.store.Get(ctx, store.SessionsPath(accountID), store.LastN(SessionFetchLimit), &raw); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return model.SessionsFromRaw(raw), nil
}

func (s *Service) deleteAll(ctx context.Context, accountID string, sessions []model.Session) (int, error) {
	deleted := 0
	for _, sess := range sessions {
		if err := s.store.Delete(ctx, store.SessionPath(accountID, sess.ID)); err != nil {
			return deleted, fmt.Errorf("delete session %s: %w", sess.ID, err)
		}
		deleted++
	}
	s.logger.Info("sessions deleted", "account", accountID, "count", deleted)
	return deleted, nil
}
