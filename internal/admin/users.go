package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// UserEntry is a user with its admin flag.
type UserEntry struct {
	model.User
	IsAdmin bool
}

// ListUsers returns every user ordered by username.
func (s *Service) ListUsers(ctx context.Context) ([]UserEntry, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	var admins map[string]bool
	if _, err := s.store.Get(ctx, store.AdminsPath(), nil, &admins); err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	out := make([]UserEntry, 0, len(users))
	for _, u := range users {
		out = append(out, UserEntry{User: u, IsAdmin: admins[u.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

func (s *Service) users(ctx context.Context) ([]model.User, error) {
	var raw map[string]json.RawMessage
	if _, err := s.store.Get(ctx, store.UsersPath(), nil, &raw); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make([]model.User, 0, len(raw))
	for id, data := range raw {
		var u model.User
		if json.Unmarshal(data, &u) != nil {
			continue
		}
		u.ID = id
		out = append(out, u)
	}
	return out, nil
}

// SaveUser creates u when u.ID is empty, otherwise replaces it and stamps
// forceLogoutAt so the user's current login ends. It returns the user id.
func (s *Service) SaveUser(ctx context.Context, u model.User, isAdmin bool) (string, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if u.Username == "" {
		return "", required("username", "username is required")
	}
	if u.Password == "" {
		return "", required("password", "password is required")
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}

	id := u.ID
	if id == "" {
		u.ForceLogoutAt = ""
		key, err := s.store.Post(ctx, store.UsersPath(), u)
		if err != nil {
			return "", fmt.Errorf("create user: %w", err)
		}
		id = key
	} else {
		u.ForceLogoutAt = model.FormatTime(s.now())
		if err := s.store.Put(ctx, store.UserPath(id), u); err != nil {
			return "", fmt.Errorf("update user %s: %w", id, err)
		}
	}
	if err := s.SetAdmin(ctx, id, isAdmin); err != nil {
		return id, err
	}
	s.logger.Info("user saved", "user", id, "admin", isAdmin)
	return id, nil
}

func (s *Service) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	if userID == "" {
		return required("user", "user id is required")
	}
	var value any
	if isAdmin {
		value = true
	}
	if err := s.store.Put(ctx, store.AdminPath(userID), value); err != nil {
		return fmt.Errorf("set admin flag for %s: %w", userID, err)
	}
	return nil
}

// DeleteUser removes the user and its admin flag.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return required("user", "user id is required")
	}
	if err := s.store.Delete(ctx, store.UserPath(userID)); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	if err := s.store.Delete(ctx, store.AdminPath(userID)); err != nil {
		s.logger.Warn("admin flag not removed", "user", userID, "error", err)
	}
	s.logger.Info("user deleted", "user", userID)
	return nil
}
