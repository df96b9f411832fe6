package extauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

type recordingPresence struct {
	loggedIn  int
	loggedOut []string
	err       error
}

func (p *recordingPresence) LoggedIn(context.Context) error {
	p.loggedIn++
	return p.err
}

func (p *recordingPresence) LoggedOut(_ context.Context, userID string) error {
	p.loggedOut = append(p.loggedOut, userID)
	return p.err
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *store.Memory, *devicestate.State, *recordingPresence) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Put(ctx, store.UserPath("u1"), model.User{Username: "Ana", DisplayName: "Ana Ruiz", Password: "s3cret"}))
	require.NoError(t, mem.Put(ctx, store.UserPath("u2"), model.User{Username: "ben", Password: "pw"}))
	require.NoError(t, mem.Put(ctx, store.AdminPath("u2"), true))

	st := devicestate.NewInMemory()
	require.NoError(t, st.SetClientID(ctx, "client-a"))
	p := &recordingPresence{}
	svc := New(mem, st, p, WithClock(func() time.Time { return testNow }), WithLogger(logging.Discard()))
	return svc, mem, st, p
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, st, p := setup(t)

	auth, err := svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, &model.ExtensionAuth{
		UserID:      "u1",
		Username:    "Ana",
		DisplayName: "Ana Ruiz",
		LoggedInAt:  "2025-03-10T12:00:00.000Z",
	}, auth)
	assert.Equal(t, 1, p.loggedIn)

	saved, err := st.ExtensionAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, saved)
}

func TestLoginAdminFlagAndDisplayNameFallback(t *testing.T) {
	svc, _, _, _ := setup(t)
	auth, err := svc.Login(context.Background(), "BEN", "pw")
	require.NoError(t, err)
	assert.True(t, auth.IsAdmin)
	assert.Equal(t, "ben", auth.DisplayName)
}

func TestLoginRejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		prepare  func(t *testing.T, mem *store.Memory)
		username string
		password string
		want     error
	}{
		{name: "missing username", username: "", password: "x", want: ErrMissingCredentials},
		{name: "missing password", username: "ana", password: "", want: ErrMissingCredentials},
		{name: "wrong password", username: "ana", password: "S3CRET", want: ErrInvalidCredentials},
		{name: "unknown user", username: "zed", password: "s3cret", want: ErrInvalidCredentials},
		{
			name: "heartbeat from another device",
			prepare: func(t *testing.T, mem *store.Memory) {
				require.NoError(t, mem.Put(ctx, store.OnlineUserPath("u1"), model.OnlinePresence{
					ClientID: "laptop", LastSeenAt: "2025-03-10T11:55:00.000Z",
				}))
			},
			username: "ana", password: "s3cret", want: ErrActiveElsewhere,
		},
		{
			name: "slot held on another device",
			prepare: func(t *testing.T, mem *store.Memory) {
				require.NoError(t, mem.Put(ctx, store.CurrentUserPath(model.DefaultAccountID), model.CurrentUser{
					UserID: "u1", DisplayName: "Ana Ruiz", ClientID: "laptop",
				}))
			},
			username: "ana", password: "s3cret", want: ErrActiveElsewhere,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mem, st, p := setup(t)
			if tt.prepare != nil {
				tt.prepare(t, mem)
			}
			_, err := svc.Login(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, p.loggedIn)
			auth, err := st.ExtensionAuth(ctx)
			require.NoError(t, err)
			assert.Nil(t, auth)
		})
	}
}

func TestLoginAllowsStaleHeartbeat(t *testing.T) {
	ctx := context.Background()
	svc, mem, _, _ := setup(t)
	require.NoError(t, mem.Put(ctx, store.OnlineUserPath("u1"), model.OnlinePresence{
		ClientID: "laptop", LastSeenAt: "2025-03-10T11:40:00.000Z",
	}))
	_, err := svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
}

func TestActiveElsewhereMessage(t *testing.T) {
	var err error = &ActiveElsewhereError{ClientID: "laptop", Slot: true}
	assert.Contains(t, err.Error(), "another location (laptop)")
	var target *ActiveElsewhereError
	require.True(t, errors.As(err, &target))
	assert.True(t, target.Slot)
}

func TestLoginSurfacesStoreErrors(t *testing.T) {
	svc, mem, _, _ := setup(t)
	mem.SetFault(func(store.Op, string, *store.Query) error {
		return &store.HTTPError{Status: 401, Message: "Permission denied"}
	})
	_, err := svc.Login(context.Background(), "ana", "s3cret")
	var httpErr *store.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 401, httpErr.Status)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	svc, _, st, p := setup(t)

	assert.ErrorIs(t, svc.Logout(ctx), ErrNotLoggedIn)

	_, err := svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))
	assert.Equal(t, []string{"u1"}, p.loggedOut)
	auth, err := st.ExtensionAuth(ctx)
	require.NoError(t, err)
	assert.Nil(t, auth)
}

func TestCheckForcedLogout(t *testing.T) {
	ctx := context.Background()
	svc, mem, st, p := setup(t)

	_, err := svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
	require.NoError(t, svc.CheckForcedLogout(ctx))

	require.NoError(t, mem.Patch(ctx, store.UserPath("u1"), map[string]any{"forceLogoutAt": "2025-03-10T12:30:00.000Z"}))
	assert.ErrorIs(t, svc.CheckForcedLogout(ctx), ErrForcedLogout)
	assert.Equal(t, []string{"u1"}, p.loggedOut)

	auth, err := st.ExtensionAuth(ctx)
	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.NoError(t, svc.CheckForcedLogout(ctx), "nothing to do once logged out")
}

func TestCheckForcedLogoutSkipsAdmins(t *testing.T) {
	ctx := context.Background()
	svc, mem, _, _ := setup(t)
	_, err := svc.Login(ctx, "ben", "pw")
	require.NoError(t, err)
	require.NoError(t, mem.Patch(ctx, store.UserPath("u2"), map[string]any{"forceLogoutAt": "2030-01-01T00:00:00.000Z"}))
	assert.NoError(t, svc.CheckForcedLogout(ctx))
}

func TestForcedOut(t *testing.T) {
	assert.True(t, ForcedOut("2025-03-10T12:30:00.000Z", "2025-03-10T12:00:00.000Z"))
	assert.False(t, ForcedOut("2025-03-10T11:30:00.000Z", "2025-03-10T12:00:00.000Z"))
	assert.False(t, ForcedOut("", "2025-03-10T12:00:00.000Z"))
	assert.True(t, ForcedOut("2025-03-10T11:30:00.000Z", ""))
}
