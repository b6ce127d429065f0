package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plantitas/plantitas/internal/devserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	cfg := config.Default()
	cfg.Users = []config.UserConfig{
		{Username: "fran", Password: "plantitas", Groups: []string{"admin"}, Superuser: true},
		{Username: "vale", Password: "plantitas", Groups: []string{"vendedor"}},
		{Username: "nadie", Password: "plantitas"},
	}
	require.NoError(t, config.ValidateConfig(cfg))
	tm, err := NewTokenManager(cfg.Auth)
	require.NoError(t, err)
	return &Authenticator{Tokens: tm, Users: NewUsers(cfg.Users)}
}

func TestUsers(t *testing.T) {
	a := newTestAuthenticator(t)

	u, err := a.Users.Authenticate("vale", "plantitas")
	require.NoError(t, err)
	assert.Equal(t, 2, u.ID)
	assert.True(t, u.InGroup("admin", "vendedor"))
	assert.False(t, u.InGroup("bodeguero"))
	assert.Equal(t, "vendedor", u.Me().Role)

	_, err = a.Users.Authenticate("vale", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Users.Authenticate("ghost", "plantitas")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	admin, _ := a.Users.Get(1)
	assert.True(t, admin.InGroup("bodeguero"))

	nobody, _ := a.Users.Get(3)
	assert.Equal(t, "user", nobody.Me().Role)
	assert.Empty(t, nobody.Me().Groups)
}

func TestTokenLifecycle(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()
	user, _ := a.Users.Get(2)

	access, expiry, err := a.Tokens.Issue(ctx, user, AccessTokenType)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := a.Tokens.Parse(ctx, access, AccessTokenType)
	require.NoError(t, err)
	assert.Equal(t, 2, claims.UserID)

	// an access token is not a refresh token
	_, err = a.Tokens.Parse(ctx, access, RefreshTokenType)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	// expiry
	a.Tokens.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = a.Tokens.Parse(ctx, access, AccessTokenType)
	assert.ErrorIs(t, err, ErrInvalidToken)
	a.Tokens.SetClock(time.Now)

	// tampering
	_, err = a.Tokens.Parse(ctx, access+"x", AccessTokenType)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// another key
	other := newTestAuthenticator(t)
	_, err = other.Tokens.Parse(ctx, access, AccessTokenType)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	a := newTestAuthenticator(t)
	vale, _ := a.Users.Get(2)
	access, _, err := a.Tokens.Issue(context.Background(), vale, AccessTokenType)
	require.NoError(t, err)
	refresh, _, err := a.Tokens.Issue(context.Background(), vale, RefreshTokenType)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserFromContext(r.Context()).Username))
	})
	h := a.UserAuthMiddleware(RequireGroups("bodeguero")(ok))
	open := a.UserAuthMiddleware(ok)

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		status  int
		body    string
	}{
		{name: "no header", handler: open, status: http.StatusUnauthorized, body: "Authentication credentials were not provided."},
		{name: "not bearer", handler: open, header: "Basic abc", status: http.StatusUnauthorized},
		{name: "refresh as access", handler: open, header: "Bearer " + refresh, status: http.StatusUnauthorized, body: "token_not_valid"},
		{name: "valid", handler: open, header: "Bearer " + access, status: http.StatusOK, body: "vale"},
		{name: "wrong group", handler: h, header: "Bearer " + access, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestTokenEndpoints(t *testing.T) {
	a := newTestAuthenticator(t)
	router := a.TokenRouter()

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/", `{"username":"vale","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"No active account found with the given credentials"}`, rec.Body.String())

	rec = post("/", `{"username":"vale"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"password"`)

	rec = post("/", `{"username":"vale","password":"plantitas"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"refresh"`)

	rec = post("/refresh/", `{"refresh":"garbage"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_not_valid")
}
