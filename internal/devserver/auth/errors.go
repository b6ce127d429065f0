package auth

import (
	"net/http"

	"github.com/plantitas/plantitas/internal/common/apperrors"
)

var (
	ErrAuth               = apperrors.New("authentication error").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidCredentials = ErrAuth.New("No active account found with the given credentials")
	ErrInvalidToken       = ErrAuth.New("Token is invalid or expired")
	ErrWrongTokenType     = ErrInvalidToken.New("Token has wrong type")
	ErrTokenGeneration    = apperrors.New("unable to generate token").SetStatusCode(http.StatusInternalServerError)
)
