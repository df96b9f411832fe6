package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// ActiveWindow is how recent a heartbeat must be for a user to show as
// active.
const ActiveWindow = 2 * time.Minute

// Availability is one row of the team view.
type Availability struct {
	UserID      string
	DisplayName string
	ClientID    string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	Active      bool
}

// Status is the short label shown next to the name.
func (a Availability) Status(now time.Time) string {
	if !a.Active {
		return "Offline"
	}
	if since := ActiveSince(a.FirstSeenAt, now); since != "" {
		return "Active since " + since
	}
	return "Active"
}

// Detail is the longer description of the row.
func (a Availability) Detail(now time.Time) string {
	switch {
	case a.Active && !a.FirstSeenAt.IsZero():
		return "Active since " + ActiveSince(a.FirstSeenAt, now)
	case a.Active && a.ClientID != "":
		return "Active · " + a.ClientID
	case a.Active:
		return "Active now"
	case a.LastSeenAt.IsZero():
		return "Not logged in"
	default:
		return "Gone since " + GoneSince(a.LastSeenAt, now)
	}
}

// ActiveSince renders a compact elapsed duration: "just now", "5m",
// "2h 10m" or "3d".
func ActiveSince(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	mins := int(now.Sub(t) / time.Minute)
	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%dm", mins)
	case mins < 24*60:
		return fmt.Sprintf("%dh %dm", mins/60, mins%60)
	default:
		return fmt.Sprintf("%dd", mins/(24*60))
	}
}

// GoneSince renders how long ago t was, falling back to the date after a
// day.
func GoneSince(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < 24*time.Hour:
		return humanize.RelTime(t, now, "ago", "from now")
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

// TeamAvailability lists the users visible to accountID with their latest
// heartbeat. Users without a team are visible everywhere. Rows are grouped
// by display name, keeping the most recent heartbeat.
func (s *Service) TeamAvailability(ctx context.Context, accountID string) ([]Availability, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	var online map[string]model.OnlinePresence
	if _, err := s.store.Get(ctx, store.OnlinePath(), nil, &online); err != nil {
		return nil, fmt.Errorf("load online users: %w", err)
	}

	now := s.now()
	grouped := make(map[string]Availability)
	for _, u := range users {
		if accountID != "" && u.TeamID != "" && u.TeamID != accountID {
			continue
		}
		name := u.DisplayName
		if name == "" {
			name = u.Username
		}
		if name == "" {
			name = u.ID
		}
		row := Availability{UserID: u.ID, DisplayName: name}
		if p, ok := online[u.ID]; ok {
			row.ClientID = p.ClientID
			row.FirstSeenAt, _ = model.ParseTime(p.FirstSeenAt)
			row.LastSeenAt, _ = model.ParseTime(p.LastSeenAt)
		}
		row.Active = !row.LastSeenAt.IsZero() && now.Sub(row.LastSeenAt) < ActiveWindow
		if existing, ok := grouped[name]; !ok || row.LastSeenAt.After(existing.LastSeenAt) {
			grouped[name] = row
		}
	}

	out := make([]Availability, 0, len(grouped))
	for _, row := range grouped {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}

// ResetTeamPresence clears the heartbeat of every user assigned to
// accountID and returns how many were cleared.
func (s *Service) ResetTeamPresence(ctx context.Context, accountID string) (int, error) {
	if accountID == "" {
		return 0, required("account", "account id is required")
	}
	users, err := s.users(ctx)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, u := range users {
		if u.TeamID != accountID {
			continue
		}
		if err := s.store.Put(ctx, store.OnlineUserPath(u.ID), nil); err != nil {
			return cleared, fmt.Errorf("clear presence for %s: %w", u.ID, err)
		}
		cleared++
	}
	if cleared == 0 {
		return 0, &ValidationError{Field: "account", Message: fmt.Sprintf("no users are assigned to team %s", accountID)}
	}
	s.logger.Info("team presence reset", "account", accountID, "count", cleared)
	return cleared, nil
}
