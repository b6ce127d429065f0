package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is an HTTP error response. A non-empty Fields map is sent as the whole body;
// otherwise the body is {"detail": Detail}.
type Error struct {
	StatusCode int
	Detail     string
	Code       string
	Fields     map[string][]string
}

// Send writes the error response. A nil writer is ignored.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	var body any
	if len(e.Fields) > 0 {
		body = e.Fields
	} else {
		rsp := map[string]string{"detail": e.Detail}
		if e.Code != "" {
			rsp["code"] = e.Code
		}
		body = rsp
	}
	rspJson, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to encode error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	if e.Detail == "" && len(e.Fields) > 0 {
		return "invalid request data"
	}
	return e.Detail
}

func newError(status int, def string, msg ...string) *Error {
	s := def
	if len(msg) > 0 && msg[0] != "" {
		s = msg[0]
	}
	return &Error{StatusCode: status, Detail: s}
}

func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "Method not allowed.")
}

func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "JSON parse error.")
}

// ErrApplicationError is a 500 with an optional message.
func ErrApplicationError(msg ...string) *Error {
	return newError(http.StatusInternalServerError, "A server error occurred.", msg...)
}

// ErrUnAuthorized is a 401. Code distinguishes rejected tokens from missing credentials.
func ErrUnAuthorized(msg ...string) *Error {
	return newError(http.StatusUnauthorized, "Authentication credentials were not provided.", msg...)
}

// ErrInvalidToken is the 401 sent for an expired or malformed token.
func ErrInvalidToken(msg ...string) *Error {
	e := newError(http.StatusUnauthorized, "Given token not valid for any token type", msg...)
	e.Code = "token_not_valid"
	return e
}

func ErrForbidden(msg ...string) *Error {
	return newError(http.StatusForbidden, "You do not have permission to perform this action.", msg...)
}

func ErrNotFound(msg ...string) *Error {
	return newError(http.StatusNotFound, "No record matches the given query.", msg...)
}

func ErrConflict(msg ...string) *Error {
	return newError(http.StatusConflict, "Conflict.", msg...)
}

func ErrInvalidRequest(msg ...string) *Error {
	return newError(http.StatusBadRequest, "Invalid request data.", msg...)
}

// ErrFieldErrors is a 400 carrying per-field messages.
func ErrFieldErrors(fields map[string][]string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Fields: fields}
}

func ErrRequestTimeout() *Error {
	return newError(http.StatusRequestTimeout, "Request timed out.")
}

func ErrRequestTooLarge(limit int64) *Error {
	return newError(http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body too large (limit: %d bytes).", limit))
}
