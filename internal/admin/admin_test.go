package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return New(mem, WithClock(func() time.Time { return testNow }), WithLogger(logging.Discard())), mem
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)

	require.NoError(t, svc.SaveAccountConfig(ctx, "team-us", model.AccountConfig{TeamName: "US", Email: "rps@acme.test"}))
	require.NoError(t, mem.Put(ctx, store.CurrentUserPath("default"), model.CurrentUser{UserID: "u1", DisplayName: "Ana", ClientID: "c1"}))

	ids, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "team-us"}, ids)

	cfg, found, err := svc.AccountConfig(ctx, "team-us")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, model.AccountConfig{TeamName: "US", Email: "rps@acme.test"}, cfg)

	// Empty fields are removed on save.
	require.NoError(t, svc.SaveAccountConfig(ctx, "team-us", model.AccountConfig{TeamName: "US"}))
	assert.Equal(t, map[string]any{"teamName": "US"}, mem.Raw(store.AccountConfigPath("team-us")))

	require.NoError(t, svc.DeleteAccount(ctx, "team-us"))
	assert.Nil(t, mem.Raw(store.AccountPath("team-us")))

	var verr *ValidationError
	assert.ErrorAs(t, svc.DeleteAccount(ctx, ""), &verr)
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)

	cu, err := svc.CurrentUser(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, cu)

	require.NoError(t, mem.Put(ctx, store.CurrentUserPath("default"), model.CurrentUser{UserID: "u1", DisplayName: "Ana", ClientID: "c1"}))
	cu, err = svc.CurrentUser(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, cu)
	assert.Equal(t, "Ana", cu.DisplayName)
}

func TestSaveUser(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)

	id, err := svc.SaveUser(ctx, model.User{Username: " ana ", Password: "pw"}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"username": "ana", "displayName": "ana", "password": "pw"}, mem.Raw(store.UserPath(id)))
	assert.Equal(t, true, mem.Raw(store.AdminPath(id)))

	_, err = svc.SaveUser(ctx, model.User{ID: id, Username: "ana", DisplayName: "Ana Ruiz", Password: "new", TeamID: "team-us"}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"username":      "ana",
		"displayName":   "Ana Ruiz",
		"password":      "new",
		"teamId":        "team-us",
		"forceLogoutAt": "2025-03-10T12:00:00.000Z",
	}, mem.Raw(store.UserPath(id)))
	assert.Nil(t, mem.Raw(store.AdminPath(id)))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, id, users[0].ID)
	assert.False(t, users[0].IsAdmin)
}

func TestSaveUserValidation(t *testing.T) {
	svc, mem := setup(t)
	var verr *ValidationError

	_, err := svc.SaveUser(context.Background(), model.User{Password: "pw"}, false)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "username", verr.Field)

	_, err = svc.SaveUser(context.Background(), model.User{Username: "ana"}, false)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	assert.Empty(t, mem.Calls())
}

func TestListUsersSortedWithAdminFlag(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u2"), model.User{Username: "zoe", Password: "x"}))
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{Username: "Ben", Password: "x"}))
	require.NoError(t, svc.SetAdmin(ctx, "u2", true))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ben", users[0].Username)
	assert.False(t, users[0].IsAdmin)
	assert.Equal(t, "zoe", users[1].Username)
	assert.True(t, users[1].IsAdmin)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{Username: "ana", Password: "x"}))
	require.NoError(t, svc.SetAdmin(ctx, "u1", true))

	require.NoError(t, svc.DeleteUser(ctx, "u1"))
	assert.Nil(t, mem.Raw(store.UserPath("u1")))
	assert.Nil(t, mem.Raw(store.AdminPath("u1")))
}

func TestDeleteUserIgnoresAdminFlagFailure(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{Username: "ana", Password: "x"}))
	mem.SetFault(func(op store.Op, path string, _ *store.Query) error {
		if path == store.AdminPath("u1") {
			return &store.HTTPError{Status: 401, Message: "Permission denied"}
		}
		return nil
	})
	require.NoError(t, svc.DeleteUser(ctx, "u1"))
	assert.Nil(t, mem.Raw(store.UserPath("u1")))
}

func seedSessions(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	sessions := map[string]model.Session{
		"s1": {UserID: "u1", DisplayName: "Ana", LoginAt: "2025-03-09T09:00:00.000Z", LogoutAt: "2025-03-09T10:00:00.000Z"},
		"s2": {UserID: "u2", DisplayName: "Ben", LoginAt: "2025-03-10T08:00:00.000Z", LogoutAt: "2025-03-10T09:00:00.000Z"},
		"s3": {UserID: "u1", DisplayName: "Ana", LoginAt: "2025-03-10T11:00:00.000Z"},
	}
	for id, s := range sessions {
		require.NoError(t, mem.Put(ctx, store.SessionPath("default", id), s))
	}
}

func sessionIDs(sessions []model.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	seedSessions(t, mem)

	sessions, err := svc.ListSessions(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s2", "s1"}, sessionIDs(sessions))

	day := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"s3", "s2"}, sessionIDs(SessionsOn(sessions, day)))
}

func TestListSessionsFallsBackToLimitedRead(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	seedSessions(t, mem)
	mem.SetFault(func(op store.Op, _ string, q *store.Query) error {
		if op == store.OpGet && q == nil {
			return &store.HTTPError{Status: 400, Message: "payload too large"}
		}
		return nil
	})

	sessions, err := svc.ListSessions(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestDeleteSessions(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	seedSessions(t, mem)

	n, err := svc.DeleteSessionsOn(ctx, "default", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, mem.Raw(store.SessionPath("default", "s1")))

	require.NoError(t, svc.DeleteSession(ctx, "default", "s2"))
	assert.Nil(t, mem.Raw(store.SessionPath("default", "s2")))

	n, err = svc.DeleteAllSessions(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, mem.Raw(store.SessionsPath("default")))
}

func TestTeamAvailability(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{Username: "ana", DisplayName: "Ana", TeamID: "default"}))
	require.NoError(t, mem.Put(ctx, store.UserPath("u2"), model.User{Username: "ben"}))
	require.NoError(t, mem.Put(ctx, store.UserPath("u3"), model.User{Username: "eve", TeamID: "team-eu"}))
	require.NoError(t, mem.Put(ctx, store.UserPath("u4"), model.User{Username: "ana2", DisplayName: "Ana"}))
	require.NoError(t, mem.Put(ctx, store.OnlineUserPath("u1"), model.OnlinePresence{
		ClientID: "c1", FirstSeenAt: "2025-03-10T10:45:00.000Z", LastSeenAt: "2025-03-10T11:59:30.000Z",
	}))
	require.NoError(t, mem.Put(ctx, store.OnlineUserPath("u2"), model.OnlinePresence{
		ClientID: "c2", LastSeenAt: "2025-03-10T11:00:00.000Z",
	}))

	rows, err := svc.TeamAvailability(ctx, "default")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "u1", rows[0].UserID, "grouping keeps the freshest heartbeat")
	assert.True(t, rows[0].Active)
	assert.Equal(t, "Active since 1h 15m", rows[0].Status(testNow))

	assert.Equal(t, "ben", rows[1].DisplayName)
	assert.False(t, rows[1].Active)
	assert.Equal(t, "Offline", rows[1].Status(testNow))
	assert.Equal(t, "Gone since 1 hour ago", rows[1].Detail(testNow))
}

func TestActiveSinceAndGoneSince(t *testing.T) {
	assert.Equal(t, "", ActiveSince(time.Time{}, testNow))
	assert.Equal(t, "just now", ActiveSince(testNow.Add(-30*time.Second), testNow))
	assert.Equal(t, "5m", ActiveSince(testNow.Add(-5*time.Minute), testNow))
	assert.Equal(t, "3d", ActiveSince(testNow.Add(-73*time.Hour), testNow))

	assert.Equal(t, "Just now", GoneSince(testNow.Add(-10*time.Second), testNow))
	assert.Equal(t, "5 minutes ago", GoneSince(testNow.Add(-5*time.Minute), testNow))
}

func TestAvailabilityDetail(t *testing.T) {
	assert.Equal(t, "Not logged in", Availability{}.Detail(testNow))
	assert.Equal(t, "Active · c1", Availability{Active: true, ClientID: "c1"}.Detail(testNow))
	assert.Equal(t, "Active now", Availability{Active: true}.Detail(testNow))
}

func TestResetTeamPresence(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{Username: "ana", TeamID: "team-us"}))
	require.NoError(t, mem.Put(ctx, store.UserPath("u2"), model.User{Username: "ben"}))
	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, mem.Put(ctx, store.OnlineUserPath(id), model.OnlinePresence{ClientID: "c", LastSeenAt: "2025-03-10T11:59:00.000Z"}))
	}

	n, err := svc.ResetTeamPresence(ctx, "team-us")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, mem.Raw(store.OnlineUserPath("u1")))
	assert.NotNil(t, mem.Raw(store.OnlineUserPath("u2")))

	var verr *ValidationError
	_, err = svc.ResetTeamPresence(ctx, "team-eu")
	assert.ErrorAs(t, err, &verr)
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t)
	_, err := mem.Post(ctx, store.EventsPath("default"), model.Event{Type: model.EventTypeRPSLogin, UserID: "u1"})
	require.NoError(t, err)

	out, err := svc.Inspect(ctx, "default", NodeEvents, FormatYAML)
	require.NoError(t, err)
	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	require.Len(t, decoded, 1)
	for _, ev := range decoded {
		assert.Equal(t, "rps_login", ev["type"])
	}

	out, err = svc.Inspect(ctx, "default", NodeSessions, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(out))

	var verr *ValidationError
	_, err = svc.Inspect(ctx, "default", "users", FormatJSON)
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Inspect(ctx, "default", NodeEvents, "toml")
	assert.ErrorAs(t, err, &verr)
}

func TestTestConnection(t *testing.T) {
	svc, mem := setup(t)
	require.NoError(t, svc.TestConnection(context.Background()))

	mem.SetFault(func(store.Op, string, *store.Query) error {
		return &store.NetworkError{URL: "https://x", Err: context.DeadlineExceeded}
	})
	var netErr *store.NetworkError
	assert.ErrorAs(t, svc.TestConnection(context.Background()), &netErr)
}
