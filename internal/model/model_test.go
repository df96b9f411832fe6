package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionOmitsLogoutUntilClosed(t *testing.T) {
	yes := true
	s := Session{
		UserID:      "u1",
		DisplayName: "Ana",
		ClientID:    "c1",
		LoginAt:     "2026-03-02T09:00:00.000Z",
		IsRps:       &yes,
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "logoutAt")

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s, decoded)
	assert.True(t, decoded.Open())

	decoded.LogoutAt = "2026-03-02T10:00:00.000Z"
	data, err = json.Marshal(decoded)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logoutAt":"2026-03-02T10:00:00.000Z"`)
}

func TestSessionCountsAsRps(t *testing.T) {
	no := false
	assert.True(t, (&Session{}).CountsAsRps(), "missing flag defaults to shared")
	assert.False(t, (&Session{IsRps: &no}).CountsAsRps())
}

func TestSessionLabel(t *testing.T) {
	assert.Equal(t, "Ana", (&Session{DisplayName: "Ana", UserID: "u1"}).Label())
	assert.Equal(t, "u1", (&Session{UserID: "u1"}).Label())
	assert.Equal(t, "Unknown", (&Session{}).Label())
}

func TestSessionsFromRawSkipsMalformed(t *testing.T) {
	raw := map[string]json.RawMessage{
		"-b": json.RawMessage(`{"userId":"u2","loginAt":"x"}`),
		"-a": json.RawMessage(`{"userId":"u1","loginAt":"y"}`),
		"-c": json.RawMessage(`"not a session"`),
	}
	got := SessionsFromRaw(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "-a", got[0].ID)
	assert.Equal(t, "-b", got[1].ID)
}

func TestStatusWireValues(t *testing.T) {
	tests := []struct {
		status Status
		wire   string
	}{
		{StatusLoggedOut, "logged_out"},
		{StatusLoggedIn, "logged_in"},
		{StatusLoggedInPersonal, "logged_in_personal"},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			assert.Equal(t, tt.wire, tt.status.String())
			assert.Equal(t, tt.status, ParseStatus(tt.wire))
		})
	}
	assert.Equal(t, StatusUnknown, ParseStatus("bogus"))
}

func TestStatusJSON(t *testing.T) {
	var entry StatusHistoryEntry
	require.NoError(t, json.Unmarshal([]byte(`{"status":"logged_in_personal","source":"s"}`), &entry))
	assert.Equal(t, StatusLoggedInPersonal, entry.Status)

	data, err := json.Marshal(AccountState{Status: StatusLoggedIn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"logged_in"`)
}

func TestExtensionAuthIdentity(t *testing.T) {
	tests := []struct {
		name string
		auth *ExtensionAuth
		want Identity
		ok   bool
	}{
		{"nil", nil, Identity{}, false},
		{"admin", &ExtensionAuth{IsAdmin: true, UserID: "u9", DisplayName: "Boss"}, AdminIdentity, true},
		{"display name", &ExtensionAuth{UserID: "u1", DisplayName: "Ana", Username: "ana"}, Identity{"u1", "Ana"}, true},
		{"username fallback", &ExtensionAuth{UserID: "u1", Username: "ana"}, Identity{"u1", "ana"}, true},
		{"id fallback", &ExtensionAuth{UserID: "u1"}, Identity{"u1", "u1"}, true},
		{"no user", &ExtensionAuth{}, Identity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.auth.Identity()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatParseTime(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 5, 7, 123_000_000, time.FixedZone("X", 3600))
	s := FormatTime(ts)
	assert.Equal(t, "2026-03-02T08:05:07.123Z", s)

	back, ok := ParseTime(s)
	require.True(t, ok)
	assert.True(t, back.Equal(ts))

	_, ok = ParseTime("")
	assert.False(t, ok)
	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}
