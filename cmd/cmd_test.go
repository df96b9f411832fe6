package cmd

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebream/rpswatch/internal/admin"
	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader(""), &out, "Go?", true))
	assert.Empty(t, out.String())

	assert.True(t, confirm(strings.NewReader("y\n"), &out, "Go?", false))
	assert.Contains(t, out.String(), "Go? [y/N]: ")
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "Go?", false))
	assert.False(t, confirm(strings.NewReader("n\n"), &out, "Go?", false))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Go?", false))
	assert.False(t, confirm(strings.NewReader(""), &out, "Go?", false))
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.Local)

	d, err := parseDate("today", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local), d)

	d, err = parseDate("yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.Local), d)

	d, err = parseDate("2025-01-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.Local), d)

	_, err = parseDate("31/01/2025", now)
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestLocalTime(t *testing.T) {
	assert.Equal(t, "-", localTime(""))
	assert.Equal(t, "-", localTime("garbage"))
	ts := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, ts.Local().Format("Jan 2 15:04"), localTime(model.FormatTime(ts)))
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("s3cret\r\nmore"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	got, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)

	_, err = readLine(strings.NewReader(""))
	assert.Error(t, err)
}

func TestSessionDuration(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	open := model.Session{LoginAt: "2025-03-10T10:30:00.000Z"}
	closed := model.Session{LoginAt: "2025-03-10T10:30:00.000Z", LogoutAt: "2025-03-10T11:00:00.000Z"}

	assert.Equal(t, "open", logoutLabel(open))
	assert.NotEqual(t, "open", logoutLabel(closed))
	assert.NotEqual(t, duration(open, now), duration(closed, now))
	assert.Equal(t, "-", duration(model.Session{}, now))
}

func TestRenderTeam(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	out := renderTeam([]admin.Availability{
		{UserID: "u1", DisplayName: "Ana", Active: true, FirstSeenAt: now.Add(-time.Hour), LastSeenAt: now},
		{UserID: "u2", DisplayName: "Ben"},
	}, now)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Ben")
	assert.Contains(t, out, "Offline")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"daemon"}, {"start"}, {"stop"}, {"restart"}, {"status"}, {"logs"}, {"version"}, {"doctor"}, {"init"},
		{"login"}, {"logout"}, {"who"}, {"team"}, {"calendar"}, {"history"}, {"inspect"},
		{"presence", "ensure"}, {"presence", "online"}, {"presence", "offline"}, {"presence", "conflict"}, {"presence", "reset"},
		{"account", "list"}, {"account", "use"}, {"account", "remember"}, {"account", "detect"},
		{"user", "save"}, {"user", "admin"}, {"sessions", "purge"},
	} {
		c, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], c.Name(), path)
	}
}

// testEnv builds an env over an in-memory store and state, with the socket
// pointed at an empty directory so no daemon is reached.
func testEnv(t *testing.T) (*env, *store.Memory) {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "rpsw-c-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("RPSWATCH_CONFIG_DIR", dir)
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("TMPDIR", dir)

	mem := store.NewMemory()
	e := &env{
		cfg:    config.DefaultConfig(),
		state:  devicestate.NewInMemory(),
		store:  mem,
		logger: logging.Discard(),
	}
	return e, mem
}

func TestCheckForcedLogout(t *testing.T) {
	ctx := context.Background()
	e, mem := testEnv(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{
		Username: "ana", DisplayName: "Ana", Password: "pw", ForceLogoutAt: "2025-03-10T12:00:00.000Z",
	}))
	require.NoError(t, mem.Put(ctx, store.OnlineUserPath("u1"), model.OnlinePresence{DisplayName: "Ana", ClientID: "c1"}))
	require.NoError(t, e.state.SetExtensionAuth(ctx, &model.ExtensionAuth{
		UserID: "u1", Username: "ana", DisplayName: "Ana", LoggedInAt: "2025-03-10T11:00:00.000Z",
	}))

	var out bytes.Buffer
	assert.True(t, e.checkForcedLogout(ctx, &out))
	assert.Contains(t, out.String(), "You have been logged out (password was changed by admin)")

	auth, err := e.state.ExtensionAuth(ctx)
	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.Nil(t, mem.Raw(store.OnlineUserPath("u1")))

	out.Reset()
	assert.False(t, e.checkForcedLogout(ctx, &out))
	assert.Empty(t, out.String())
}

func TestCheckForcedLogoutKeepsCurrentLogin(t *testing.T) {
	ctx := context.Background()
	e, mem := testEnv(t)
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{
		Username: "ana", DisplayName: "Ana", Password: "pw", ForceLogoutAt: "2025-03-10T10:00:00.000Z",
	}))
	require.NoError(t, e.state.SetExtensionAuth(ctx, &model.ExtensionAuth{
		UserID: "u1", DisplayName: "Ana", LoggedInAt: "2025-03-10T11:00:00.000Z",
	}))

	var out bytes.Buffer
	assert.False(t, e.checkForcedLogout(ctx, &out))
	auth, err := e.state.ExtensionAuth(ctx)
	require.NoError(t, err)
	assert.NotNil(t, auth)
}
