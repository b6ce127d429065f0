package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// Authentication endpoints. Requests to them never carry a bearer token and never trigger a
// refresh.
const (
	TokenPath        = "/api/token/"
	TokenRefreshPath = "/api/token/refresh/"
)

// Request is an HTTP call captured as data so it can be resent after a refresh.
type Request struct {
	Method string
	// Path is relative to the pipeline base URL and keeps its trailing slash.
	Path      string
	Query     url.Values
	Header    http.Header
	Body      []byte
	Multipart *Multipart

	replay bool
	bearer string
}

// Multipart describes a multipart/form-data body. The pipeline encodes it on every attempt
// and owns the Content-Type header of such requests.
type Multipart struct {
	Fields []Field
	Files  []File
}

// Field is a plain form field.
type Field struct {
	Name  string
	Value string
}

// File is a file part.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// AddField appends a form field.
func (m *Multipart) AddField(name, value string) {
	m.Fields = append(m.Fields, Field{Name: name, Value: value})
}

// NewRequest returns a request without a body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path, Header: http.Header{}}
}

// NewJSONRequest returns a request whose body is v encoded as JSON.
func NewJSONRequest(method, path string, v any) (*Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	req := NewRequest(method, path)
	req.Body = body
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// NewMultipartRequest returns a multipart/form-data request.
func NewMultipartRequest(method, path string, m *Multipart) *Request {
	req := NewRequest(method, path)
	req.Multipart = m
	return req
}

// IsReplay reports whether req is the resubmission of a request that failed with 401.
func (r *Request) IsReplay() bool {
	return r.replay
}

func (r *Request) isAuthEndpoint() bool {
	return isAuthPath(r.Path)
}

func isAuthPath(p string) bool {
	return strings.Contains(p, TokenPath) || strings.Contains(p, TokenRefreshPath)
}

// replayWith returns a copy of r marked as a replay that carries token as its bearer.
func (r *Request) replayWith(token string) *Request {
	cp := *r
	cp.Header = r.Header.Clone()
	if cp.Header == nil {
		cp.Header = http.Header{}
	}
	if r.Query != nil {
		cp.Query = url.Values{}
		for k, v := range r.Query {
			cp.Query[k] = append([]string(nil), v...)
		}
	}
	cp.replay = true
	cp.bearer = token
	return &cp
}

// build turns r into an *http.Request against base, applying the outbound rules: bearer
// injection for non-authentication endpoints and pipeline-owned Content-Type for multipart.
func (r *Request) build(ctx context.Context, base *url.URL, access string) (*http.Request, error) {
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	var body io.Reader
	switch {
	case r.Multipart != nil:
		encoded, contentType, err := r.Multipart.encode()
		if err != nil {
			return nil, err
		}
		header.Del("Content-Type")
		header.Set("Content-Type", contentType)
		body = bytes.NewReader(encoded)
	case r.Body != nil:
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = header
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	if !r.isAuthEndpoint() {
		token := r.bearer
		if token == "" {
			token = access
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range m.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", err
		}
	}
	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.Field), escapeQuotes(f.Filename)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Response is a completed HTTP exchange with a 2xx status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
