package apperrors

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError struct {
	Code int
}

func (s *statusError) Error() string {
	return fmt.Sprintf("status %d", s.Code)
}

func TestError(t *testing.T) {
	ErrBase := New("base error")
	assert.Equal(t, "base error", ErrBase.Error())
	assert.Equal(t, "msg", ErrBase.New("msg").Error())
	assert.ErrorIs(t, ErrBase, ErrBase)

	ErrFirst := ErrBase.New("first level")
	assert.Equal(t, "first level", ErrFirst.Error())
	assert.ErrorIs(t, ErrFirst, ErrBase)

	ErrOther := New("another error")
	ErrOtherMsg := ErrOther.Msg("another error msg")
	wrapped := ErrFirst.Err(ErrOtherMsg)
	assert.Equal(t, "first level", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrBase)
	assert.ErrorIs(t, wrapped, ErrFirst)
	assert.ErrorIs(t, wrapped, ErrOther)
	assert.ErrorIs(t, wrapped, ErrOtherMsg)

	plain := errors.New("plain")
	wrapped = ErrFirst.MsgErr("msg", plain)
	assert.Equal(t, "msg", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrBase)
	assert.ErrorIs(t, wrapped, plain)
}

func TestStatusCodeAndExpansion(t *testing.T) {
	ErrInvalid := New("invalid input").SetStatusCode(http.StatusBadRequest).SetExpandError(true)
	err := ErrInvalid.MsgErr("price is negative", fmt.Errorf("price: -1"))

	assert.Equal(t, http.StatusBadRequest, err.StatusCode())
	assert.True(t, strings.HasPrefix(err.ErrorAll(), "price is negative"))
	assert.Contains(t, err.ErrorAll(), "price: -1")

	assert.Equal(t, http.StatusBadRequest, StatusCodeOf(err, 0))
	assert.Equal(t, http.StatusTeapot, StatusCodeOf(fmt.Errorf("x"), http.StatusTeapot))
	assert.Equal(t, "ctx: price is negative", err.Prefix("ctx").Error())
	assert.Equal(t, "price is negative: tail", err.Suffix("tail").Error())
}

func TestAsReachesAttachedCauses(t *testing.T) {
	ErrFailed := New("request failed")
	err := ErrFailed.MsgErr("not found", &statusError{Code: 404}, nil)

	var se *statusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)
	assert.Len(t, err.UnwrapAll(), 2)

	// wrapped once more by a caller
	outer := fmt.Errorf("loading product: %w", err)
	se = nil
	require.ErrorAs(t, outer, &se)
	assert.Equal(t, 404, se.Code)
	assert.ErrorIs(t, outer, ErrFailed)
}
