// Package session implements login, logout and the current-user lookup on top of the
// request pipeline, and keeps the user's role next to the tokens.
package session

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/internal/common/apperrors"
	"github.com/plantitas/plantitas/internal/shop"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrSession     = apperrors.New("session error")
	ErrNotLoggedIn = ErrSession.New("not logged in").SetStatusCode(http.StatusUnauthorized)
	ErrLoginFailed = ErrSession.New("login failed").SetStatusCode(http.StatusUnauthorized)
	ErrForbidden   = ErrSession.New("you do not have access to this section").SetStatusCode(http.StatusForbidden)
)

// Keys stored next to the tokens.
const (
	RoleKey = "role"
	UserKey = "user"
)

// Session is one credential store and the pipeline that uses it.
type Session struct {
	p  *pipeline.Pipeline
	kv *credentials.KVStore
}

// New returns a session for the backend at baseURL backed by kv.
func New(baseURL string, kv *credentials.KVStore, opts ...pipeline.Option) (*Session, error) {
	if kv == nil {
		kv = credentials.NewMemory()
	}
	opts = append(opts[:len(opts):len(opts)], pipeline.WithExpiredHook(func(ctx context.Context) {
		if err := kv.KV().Delete(RoleKey, UserKey); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to clear stored user")
		}
	}))
	p, err := pipeline.New(baseURL, kv, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{p: p, kv: kv}, nil
}

func (s *Session) Pipeline() *pipeline.Pipeline {
	return s.p
}

// Shop returns a shop client sharing this session's pipeline.
func (s *Session) Shop() *shop.Client {
	return shop.New(s.p)
}

// LoggedIn reports whether an access token is stored.
func (s *Session) LoggedIn() bool {
	return credentials.LoggedIn(s.kv)
}

// Login exchanges username and password for a token pair, stores it, then loads the user
// and stores the role. If the user cannot be loaded the session is cleared again.
func (s *Session) Login(ctx context.Context, username, password string) (*shopapi.Me, error) {
	req, err := pipeline.NewJSONRequest(http.MethodPost, shopapi.PathToken, shopapi.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	rsp, err := s.p.Send(ctx, req)
	if err != nil {
		if he, ok := pipeline.AsHTTPError(err); ok && (he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusBadRequest) {
			return nil, ErrLoginFailed.MsgErr(he.Message, he)
		}
		return nil, err
	}
	var pair shopapi.TokenPair
	if err := rsp.Decode(&pair); err != nil || pair.Access == "" || pair.Refresh == "" {
		return nil, ErrLoginFailed.Msg("token response did not include both tokens")
	}
	if err := s.p.SetCredentials(credentials.Pair{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		return nil, err
	}

	me, err := s.loadMe(ctx)
	if err != nil {
		if lerr := s.Logout(); lerr != nil {
			log.Ctx(ctx).Error().Err(lerr).Msg("unable to clear session")
		}
		return nil, err
	}
	log.Ctx(ctx).Debug().Str("username", me.Username).Str("role", me.Role).Msg("logged in")
	return me, nil
}

// Logout forgets tokens, role and user.
func (s *Session) Logout() error {
	return s.kv.KV().Delete(credentials.AccessKey, credentials.RefreshKey, RoleKey, UserKey)
}

// Current returns the logged-in user as reported by the backend. Without an access token it
// returns ErrNotLoggedIn; any failure to load the user clears the session.
func (s *Session) Current(ctx context.Context) (*shopapi.Me, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	me, err := s.loadMe(ctx)
	if err != nil {
		if lerr := s.Logout(); lerr != nil {
			log.Ctx(ctx).Error().Err(lerr).Msg("unable to clear session")
		}
		return nil, err
	}
	return me, nil
}

// Role returns the stored role, or "" when none is stored.
func (s *Session) Role() string {
	role, _ := s.kv.KV().Get(RoleKey)
	return role
}

// User returns the stored user without calling the backend.
func (s *Session) User() (*shopapi.Me, bool) {
	raw, ok := s.kv.KV().Get(UserKey)
	if !ok || raw == "" {
		return nil, false
	}
	var me shopapi.Me
	if err := json.UnmarshalFromString(raw, &me); err != nil {
		return nil, false
	}
	return &me, true
}

func (s *Session) loadMe(ctx context.Context) (*shopapi.Me, error) {
	me, err := s.Shop().Me(ctx)
	if err != nil {
		return nil, err
	}
	if me.Role == "" {
		me.Role = shopapi.RoleUser
		if len(me.Groups) > 0 {
			me.Role = me.Groups[0]
		}
	}
	raw, err := json.MarshalToString(me)
	if err != nil {
		return nil, err
	}
	if err := s.kv.KV().SetMany(map[string]string{RoleKey: me.Role, UserKey: raw}); err != nil {
		return nil, err
	}
	return me, nil
}
