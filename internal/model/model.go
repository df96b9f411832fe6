// Package model holds the records shared between the remote store, local
// device state and the command surfaces.
package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultAccountID is used when no account has been selected locally.
const DefaultAccountID = "default"

// AccountConfig is stored at accounts/{id}/config.
type AccountConfig struct {
	TeamName    string `json:"teamName,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	ProfilePath string `json:"profilePath,omitempty"`
}

// User is an extension user stored at users/{id}. Passwords are plaintext.
type User struct {
	ID            string `json:"-"`
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	Password      string `json:"password"`
	TeamID        string `json:"teamId,omitempty"`
	ForceLogoutAt string `json:"forceLogoutAt,omitempty"`
}

// Identity is the (userId, displayName) pair used for slot ownership.
type Identity struct {
	UserID      string
	DisplayName string
}

// AdminIdentity is shared by every admin login across devices.
var AdminIdentity = Identity{UserID: "ADMIN", DisplayName: "Admin"}

func (i Identity) Equal(o Identity) bool {
	return i.UserID == o.UserID && i.DisplayName == o.DisplayName
}

// CurrentUser is the single presence slot at accounts/{id}/currentUser.
type CurrentUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ClientID    string `json:"clientId"`
	LoggedInAt  string `json:"loggedInAt,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

func (c *CurrentUser) Identity() Identity {
	return Identity{UserID: c.UserID, DisplayName: c.DisplayName}
}

// Session is a login interval stored at accounts/{id}/sessions/{key}.
type Session struct {
	ID          string `json:"-"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ClientID    string `json:"clientId"`
	LoginAt     string `json:"loginAt"`
	LogoutAt    string `json:"logoutAt,omitempty"`
	IsRps       *bool  `json:"isRps,omitempty"`
}

func (s *Session) Open() bool {
	return s.LogoutAt == ""
}

// CountsAsRps reports whether the session is shared-account use. Sessions
// written before the flag existed count.
func (s *Session) CountsAsRps() bool {
	return s.IsRps == nil || *s.IsRps
}

func (s *Session) Identity() Identity {
	return Identity{UserID: s.UserID, DisplayName: s.DisplayName}
}

// Label is the calendar row key: display name, else user id, else "Unknown".
func (s *Session) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.UserID != "" {
		return s.UserID
	}
	return "Unknown"
}

// SessionsFromRaw decodes a sessions node, skipping malformed children.
// The result is ordered by key, which for pushed keys is creation order.
func SessionsFromRaw(raw map[string]json.RawMessage) []Session {
	out := make([]Session, 0, len(raw))
	for id, data := range raw {
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		s.ID = id
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AccountState is written to accounts/{id}/state on every shared transition.
type AccountState struct {
	Status                   Status `json:"status"`
	LastClientID             string `json:"lastClientId"`
	UpdatedAt                string `json:"updatedAt"`
	DetectedEmail            string `json:"detectedEmail,omitempty"`
	IsRPS                    bool   `json:"isRPS"`
	CurrentExtensionUserID   string `json:"currentExtensionUserId,omitempty"`
	CurrentExtensionUserName string `json:"currentExtensionUserName,omitempty"`
}

// EventTypeRPSLogin marks the opening of a shared session.
const EventTypeRPSLogin = "rps_login"

// Event is a write-once record under accounts/{id}/events. It is either a
// status event or an rps_login marker.
type Event struct {
	ID                       string `json:"-"`
	Type                     string `json:"type,omitempty"`
	Status                   Status `json:"status,omitempty"`
	ClientID                 string `json:"clientId,omitempty"`
	Timestamp                string `json:"timestamp,omitempty"`
	At                       string `json:"at,omitempty"`
	Source                   string `json:"source,omitempty"`
	DetectedEmail            string `json:"detectedEmail,omitempty"`
	IsRPS                    *bool  `json:"isRPS,omitempty"`
	UserID                   string `json:"userId,omitempty"`
	DisplayName              string `json:"displayName,omitempty"`
	CurrentExtensionUserID   string `json:"currentExtensionUserId,omitempty"`
	CurrentExtensionUserName string `json:"currentExtensionUserName,omitempty"`
}

// OnlinePresence is the heartbeat record at extensionOnline/{userId}.
type OnlinePresence struct {
	DisplayName string `json:"displayName"`
	ClientID    string `json:"clientId"`
	FirstSeenAt string `json:"firstSeenAt,omitempty"`
	LastSeenAt  string `json:"lastSeenAt"`
}

// ExtensionAuth is the locally persisted login of an extension user.
type ExtensionAuth struct {
	IsAdmin     bool   `json:"isAdmin"`
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	LoggedInAt  string `json:"loggedInAt,omitempty"`
}

// Identity maps the login to its presence identity. Admins share
// AdminIdentity. ok is false when nobody is logged in.
func (a *ExtensionAuth) Identity() (Identity, bool) {
	if a == nil {
		return Identity{}, false
	}
	if a.IsAdmin {
		return AdminIdentity, true
	}
	if a.UserID == "" {
		return Identity{}, false
	}
	name := a.DisplayName
	if name == "" {
		name = a.Username
	}
	if name == "" {
		name = a.UserID
	}
	return Identity{UserID: a.UserID, DisplayName: name}, true
}

// SavedAccount is a locally remembered LinkedIn login belonging to the
// shared account.
type SavedAccount struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
}

// MatchesEmail compares case-insensitively.
func (a SavedAccount) MatchesEmail(email string) bool {
	return a.Username != "" && strings.EqualFold(a.Username, email)
}

// StatusHistoryEntry is one resolved status in the local history ring.
type StatusHistoryEntry struct {
	Status        Status `json:"status"`
	Source        string `json:"source"`
	Timestamp     string `json:"timestamp"`
	DetectedEmail string `json:"detectedEmail,omitempty"`
	IsRPS         bool   `json:"isRPS"`
}

// DebugLogEntry is one diagnostic line in the local debug ring.
type DebugLogEntry struct {
	Message   string         `json:"message"`
	Extra     map[string]any `json:"extra,omitempty"`
	Timestamp string         `json:"timestamp"`
}
