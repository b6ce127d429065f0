package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plantitas/plantitas/internal/common/uuid"
	"github.com/plantitas/plantitas/internal/devserver/config"
	"github.com/rs/zerolog/log"
)

// TokenType is the token_type claim.
type TokenType string

const (
	AccessTokenType  TokenType = "access"
	RefreshTokenType TokenType = "refresh"
)

// Claims are the claims of both token types.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	key             []byte
	issuer          string
	accessValidity  time.Duration
	refreshValidity time.Duration

	mu  sync.RWMutex
	now func() time.Time
}

// NewTokenManager returns a manager for a validated auth configuration.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	access, err := cfg.GetAccessTokenValidity()
	if err != nil {
		return nil, err
	}
	refresh, err := cfg.GetRefreshTokenValidity()
	if err != nil {
		return nil, err
	}
	return &TokenManager{
		key:             []byte(cfg.SigningKey),
		issuer:          cfg.Issuer,
		accessValidity:  access,
		refreshValidity: refresh,
		now:             time.Now,
	}, nil
}

// SetClock replaces the time source. Tests use it to expire tokens.
func (m *TokenManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *TokenManager) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

// Issue signs a token of the given type for user.
func (m *TokenManager) Issue(ctx context.Context, user *User, typ TokenType) (string, time.Time, error) {
	validity := m.accessValidity
	if typ == RefreshTokenType {
		validity = m.refreshValidity
	}
	now := m.clock()
	expiry := now.Add(validity)
	claims := Claims{
		TokenType: typ,
		UserID:    user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.Itoa(user.ID),
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to sign token")
		return "", time.Time{}, ErrTokenGeneration.MsgErr("unable to sign token", err)
	}
	return signed, expiry, nil
}

// Parse validates a token and checks that it has the expected type.
func (m *TokenManager) Parse(ctx context.Context, tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("token rejected")
		return nil, ErrInvalidToken.Err(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
