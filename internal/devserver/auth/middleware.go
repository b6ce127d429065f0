package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

type userContextKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}

// Authenticator resolves bearer access tokens to users.
type Authenticator struct {
	Tokens *TokenManager
	Users  *Users
}

// UserAuthMiddleware requires a valid access token. Missing credentials and rejected tokens
// both answer 401, with different details.
func (a *Authenticator) UserAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpx.ErrUnAuthorized().Send(w)
			return
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			log.Ctx(ctx).Warn().Msg("invalid authorization header")
			httpx.ErrUnAuthorized("Authorization header must contain two space-delimited values").Send(w)
			return
		}

		claims, err := a.Tokens.Parse(ctx, strings.TrimSpace(token), AccessTokenType)
		if err != nil {
			httpx.ErrInvalidToken().Send(w)
			return
		}
		user, found := a.Users.Get(claims.UserID)
		if !found {
			httpx.ErrInvalidToken("User not found").Send(w)
			return
		}
		ctx = WithUser(ctx, user)
		ctx = log.Ctx(ctx).With().Str("user", user.Username).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireGroups lets through users in one of groups, and superusers. It must run after
// UserAuthMiddleware.
func RequireGroups(groups ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				httpx.ErrUnAuthorized().Send(w)
				return
			}
			if !user.InGroup(groups...) {
				log.Ctx(r.Context()).Info().Strs("required", groups).Msg("permission denied")
				httpx.ErrForbidden().Send(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
