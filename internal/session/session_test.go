package session

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/internal/devserver/devtest"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, b *devtest.Backend) *Session {
	t.Helper()
	s, err := New(b.URL, credentials.NewMemory())
	require.NoError(t, err)
	return s
}

func TestLogin(t *testing.T) {
	b := devtest.Start(t)
	s := newSession(t, b)
	ctx := context.Background()

	me, err := s.Login(ctx, "vale", devtest.Password)
	require.NoError(t, err)
	assert.Equal(t, "vale", me.Username)
	assert.Equal(t, shopapi.RoleVendedor, me.Role)
	assert.True(t, s.LoggedIn())
	assert.Equal(t, shopapi.RoleVendedor, s.Role())

	stored, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, me.ID, stored.ID)

	require.NoError(t, s.Logout())
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.Role())
	_, ok = s.User()
	assert.False(t, ok)
}

func TestLoginRejected(t *testing.T) {
	b := devtest.Start(t)
	s := newSession(t, b)

	_, err := s.Login(context.Background(), "vale", "wrong")
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Contains(t, err.Error(), "No active account")
	assert.False(t, s.LoggedIn())
}

func TestCurrent(t *testing.T) {
	b := devtest.Start(t)
	s := newSession(t, b)
	ctx := context.Background()

	_, err := s.Current(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = s.Login(ctx, "tomas", devtest.Password)
	require.NoError(t, err)
	me, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, shopapi.RoleBodeguero, me.Role)
}

func TestCurrentRefreshesExpiredAccess(t *testing.T) {
	b := devtest.Start(t)
	s := newSession(t, b)
	ctx := context.Background()

	// tokens issued two hours ago: access expired, refresh still valid
	b.Shift(-2 * time.Hour)
	req, err := pipeline.NewJSONRequest(http.MethodPost, shopapi.PathToken, shopapi.LoginRequest{Username: "vale", Password: devtest.Password})
	require.NoError(t, err)
	rsp, err := s.Pipeline().Send(ctx, req)
	require.NoError(t, err)
	var pair shopapi.TokenPair
	require.NoError(t, rsp.Decode(&pair))
	require.NoError(t, s.Pipeline().SetCredentials(credentials.Pair{Access: pair.Access, Refresh: pair.Refresh}))
	b.Shift(0)

	me, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vale", me.Username)
	assert.NotEqual(t, pair.Access, s.kv.Access())
	assert.Equal(t, pair.Refresh, s.kv.Refresh())
}

func TestCurrentClearsRejectedSession(t *testing.T) {
	b := devtest.Start(t)
	s := newSession(t, b)
	ctx := context.Background()

	require.NoError(t, s.kv.Set(credentials.Pair{Access: "stale", Refresh: "stale"}))
	require.NoError(t, s.kv.KV().Set(RoleKey, shopapi.RoleAdmin))

	_, err := s.Current(ctx)
	require.ErrorIs(t, err, pipeline.ErrSessionExpired)
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.kv.Refresh())
	assert.Empty(t, s.Role())
}

func TestExpiredRefreshForgetsStoredUser(t *testing.T) {
	b := devtest.Start(t)
	s := newSession(t, b)
	ctx := context.Background()

	_, err := s.Login(ctx, "vale", devtest.Password)
	require.NoError(t, err)
	require.NoError(t, s.kv.Set(credentials.Pair{Access: "stale", Refresh: "stale"}))

	_, err = s.Shop().ListCategories(ctx)
	require.ErrorIs(t, err, pipeline.ErrSessionExpired)
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.Role())
	_, ok := s.User()
	assert.False(t, ok)
}

func TestManagerLoginSurvivesUnclearableScope(t *testing.T) {
	b := devtest.Start(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	m := &Manager{
		BaseURL: b.URL,
		Locations: credentials.Locations{
			Durable: filepath.Join(dir, "durable", "session.json"),
			Session: filepath.Join(blocker, "session.json"),
		},
	}

	s, me, err := m.Login(context.Background(), "fran", devtest.Password, true)
	require.NoError(t, err)
	assert.Equal(t, "fran", me.Username)
	assert.True(t, s.LoggedIn())
}

func TestManagerScopes(t *testing.T) {
	b := devtest.Start(t)
	dir := t.TempDir()
	m := &Manager{
		BaseURL: b.URL,
		Locations: credentials.Locations{
			Durable: filepath.Join(dir, "durable", "session.json"),
			Session: filepath.Join(dir, "tmp", "session.json"),
		},
	}
	ctx := context.Background()

	_, _, err := m.Login(ctx, "vale", devtest.Password, false)
	require.NoError(t, err)
	active, scope, err := m.Active()
	require.NoError(t, err)
	assert.Equal(t, credentials.ScopeSession, scope)
	assert.Equal(t, shopapi.RoleVendedor, active.Role())

	_, me, err := m.Login(ctx, "fran", devtest.Password, true)
	require.NoError(t, err)
	assert.Equal(t, shopapi.RoleAdmin, me.Role)
	active, scope, err = m.Active()
	require.NoError(t, err)
	assert.Equal(t, credentials.ScopeDurable, scope)
	assert.Equal(t, shopapi.RoleAdmin, active.Role())

	tmp, err := credentials.Open(m.Locations, credentials.ScopeSession)
	require.NoError(t, err)
	assert.False(t, credentials.LoggedIn(tmp), "the session scope is cleared by a remembered login")

	require.NoError(t, m.Logout())
	active, _, err = m.Active()
	require.NoError(t, err)
	assert.False(t, active.LoggedIn())
}
