package pipeline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/plantitas/plantitas/internal/common/apperrors"
	"github.com/tidwall/gjson"
)

// Failure taxonomy surfaced to callers. Every error returned by Send matches exactly one of
// ErrNetworkFailure, ErrUnauthenticated, ErrSessionExpired or ErrRequestFailed.
var (
	ErrPipeline = apperrors.New("request pipeline error")

	// ErrNetworkFailure means no response was received. It is never retried.
	ErrNetworkFailure = ErrPipeline.New("network failure")

	// ErrUnauthenticated means the backend rejected the request and no session exists to
	// recover with. The caller must log in.
	ErrUnauthenticated = ErrPipeline.New("not logged in").SetStatusCode(http.StatusUnauthorized)

	// ErrSessionExpired means a refresh was attempted and failed. Credentials have been
	// cleared and the caller must log in again.
	ErrSessionExpired = ErrPipeline.New("session expired").SetStatusCode(http.StatusUnauthorized)

	// ErrRequestFailed wraps any other failure status. The *HTTPError cause carries the
	// status and the normalised backend message.
	ErrRequestFailed = ErrPipeline.New("request failed")
)

// HTTPError is a non-2xx response normalised into a message and per-field messages.
type HTTPError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return e.Message
}

// FieldError returns the first message reported for field, or "".
func (e *HTTPError) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// AsHTTPError returns the *HTTPError carried by err, if any.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0 when none was received.
func StatusCode(err error) int {
	if he, ok := AsHTTPError(err); ok {
		return he.StatusCode
	}
	return 0
}

func failure(status int, body []byte) apperrors.Error {
	he := normalizeError(status, body)
	return ErrRequestFailed.MsgErr(he.Message, he).SetStatusCode(status)
}

// normalizeError maps the error payload shapes the backend produces onto one message:
//
//	{"detail": "..."}                  -> detail
//	{"error": "..."}                   -> error
//	{"field": ["msg", ...], ...}       -> first message of the first field
//	{"field": "msg"}                   -> msg
//	["msg", ...]                       -> first element
//	anything else                      -> short plain text body or the status text
func normalizeError(status int, body []byte) *HTTPError {
	he := &HTTPError{StatusCode: status, Body: body}
	trimmed := strings.TrimSpace(string(body))

	if trimmed != "" && gjson.Valid(trimmed) {
		doc := gjson.Parse(trimmed)
		switch {
		case doc.IsObject():
			he.Fields = fieldMessages(doc)
			if msg := doc.Get("detail"); msg.Type == gjson.String && msg.String() != "" {
				he.Message = msg.String()
			} else if msg := doc.Get("error"); msg.Type == gjson.String && msg.String() != "" {
				he.Message = msg.String()
			} else {
				doc.ForEach(func(key, value gjson.Result) bool {
					if msg := firstMessage(value); msg != "" {
						he.Message = msg
						return false
					}
					return true
				})
			}
		case doc.IsArray():
			he.Message = firstMessage(doc)
		}
	} else if trimmed != "" && len(trimmed) <= 200 && !strings.HasPrefix(trimmed, "<") {
		he.Message = trimmed
	}

	if he.Message == "" {
		he.Message = strings.ToLower(http.StatusText(status))
		if he.Message == "" {
			he.Message = "request failed"
		}
	}
	return he
}

func fieldMessages(doc gjson.Result) map[string][]string {
	fields := map[string][]string{}
	doc.ForEach(func(key, value gjson.Result) bool {
		var msgs []string
		switch {
		case value.Type == gjson.String:
			msgs = append(msgs, value.String())
		case value.IsArray():
			value.ForEach(func(_, item gjson.Result) bool {
				if msg := firstMessage(item); msg != "" {
					msgs = append(msgs, msg)
				}
				return true
			})
		case value.IsObject():
			if msg := firstMessage(value); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			fields[key.String()] = msgs
		}
		return true
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// firstMessage finds the first human readable string in value.
func firstMessage(value gjson.Result) string {
	switch {
	case value.Type == gjson.String:
		return value.String()
	case value.IsArray():
		var msg string
		value.ForEach(func(_, item gjson.Result) bool {
			msg = firstMessage(item)
			return msg == ""
		})
		return msg
	case value.IsObject():
		if m := value.Get("message"); m.Type == gjson.String {
			return m.String()
		}
		var msg string
		value.ForEach(func(_, item gjson.Result) bool {
			msg = firstMessage(item)
			return msg == ""
		})
		return msg
	}
	return ""
}
