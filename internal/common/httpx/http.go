// Package httpx provides the JSON request and response helpers shared by the reference
// backend handlers. Error bodies follow the backend convention: {"detail": "..."} for
// general errors and {"field": ["message", ...]} for validation errors.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/plantitas/plantitas/internal/common/apperrors"
	"github.com/rs/zerolog/log"
)

// MaxBodySize bounds JSON request bodies.
const MaxBodySize = 1 << 20

// GetRequestData decodes the JSON request body into data. Only POST, PUT and PATCH carry a
// body.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	if err := dec.Decode(data); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrInvalidRequest("request body is empty")
		}
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response is a handler result.
type Response struct {
	StatusCode int
	Location   string
	Response   any
}

// RequestHandler handles a request and returns either a response or an error.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to an http.HandlerFunc, turning returned errors into
// error bodies.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendError(w, r, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.StatusCode == http.StatusNoContent || rsp.Response == nil {
			w.WriteHeader(rsp.StatusCode)
			return
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
	}
}

// FieldErrors is implemented by validation errors that report messages per field.
type FieldErrors interface {
	error
	FieldMessages() map[string][]string
}

// SendError writes err as an error body. *Error values are sent as they are, validation
// errors as per-field messages, application errors with their status code or 500.
func SendError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *Error
	var verr FieldErrors
	var appErr apperrors.Error
	switch {
	case errors.As(err, &httpErr):
		httpErr.Send(w)
	case errors.As(err, &verr):
		(&Error{StatusCode: http.StatusBadRequest, Fields: verr.FieldMessages()}).Send(w)
	case errors.As(err, &appErr):
		statusCode := appErr.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		if statusCode >= http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		}
		(&Error{StatusCode: statusCode, Detail: appErr.ErrorAll()}).Send(w)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		ErrApplicationError().Send(w)
	}
}
