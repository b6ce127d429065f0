package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
)

// TokenRouter serves token issuance and refresh. Neither route requires a bearer token.
func (a *Authenticator) TokenRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/", httpx.WrapHttpRsp(a.obtainToken))
	r.Post("/refresh/", httpx.WrapHttpRsp(a.refreshToken))
	return r
}

func (a *Authenticator) obtainToken(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req shopapi.LoginRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := shopapi.Validate(req); err != nil {
		return nil, err
	}

	user, err := a.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		log.Ctx(ctx).Info().Str("username", req.Username).Msg("login failed")
		return nil, err
	}
	access, _, err := a.Tokens.Issue(ctx, user, AccessTokenType)
	if err != nil {
		return nil, err
	}
	refresh, _, err := a.Tokens.Issue(ctx, user, RefreshTokenType)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("username", user.Username).Msg("tokens issued")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   shopapi.TokenPair{Access: access, Refresh: refresh},
	}, nil
}

// refreshToken issues a new access token. The refresh token is not rotated.
func (a *Authenticator) refreshToken(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req shopapi.RefreshRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := shopapi.Validate(req); err != nil {
		return nil, err
	}

	claims, err := a.Tokens.Parse(ctx, req.Refresh, RefreshTokenType)
	if err != nil {
		return nil, httpx.ErrInvalidToken("Token is invalid or expired")
	}
	user, ok := a.Users.Get(claims.UserID)
	if !ok {
		return nil, httpx.ErrInvalidToken("User not found")
	}
	access, _, err := a.Tokens.Issue(ctx, user, AccessTokenType)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   shopapi.AccessToken{Access: access},
	}, nil
}

// GetMe serves the authenticated user.
func GetMe(r *http.Request) (*httpx.Response, error) {
	user := UserFromContext(r.Context())
	if user == nil {
		return nil, httpx.ErrUnAuthorized()
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: user.Me()}, nil
}
