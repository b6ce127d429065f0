// Package pipeline is the authenticated request pipeline every backend call goes through.
//
// Outbound, it attaches the current access token as a bearer credential, except on the
// authentication endpoints. Inbound, a first-time 401 on a protected endpoint triggers one
// shared token refresh; every request that failed while the refresh was pending is then
// replayed once with the new token, in the order the requests registered, or rejected with
// ErrSessionExpired if the refresh failed.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/plantitas/plantitas/internal/client/refresh"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// DefaultRefreshTimeout bounds a refresh call when no other timeout is configured.
const DefaultRefreshTimeout = 15 * time.Second

// Pipeline sends requests to one backend. It is safe for concurrent use.
type Pipeline struct {
	base           *url.URL
	client         *http.Client
	creds          credentials.Store
	refreshTimeout time.Duration
	refresher      *refresh.Coordinator
	replays        replayOrder
	onExpired      func(ctx context.Context)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.client = c
		}
	}
}

// WithRefreshTimeout bounds each refresh call. Zero disables the bound.
func WithRefreshTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.refreshTimeout = d
	}
}

// WithExpiredHook registers fn to run after a failed refresh has cleared the credentials.
func WithExpiredHook(fn func(ctx context.Context)) Option {
	return func(p *Pipeline) {
		p.onExpired = fn
	}
}

// New returns a pipeline for the backend at baseURL that reads and writes credentials
// through creds.
func New(baseURL string, creds credentials.Store, opts ...Option) (*Pipeline, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if creds == nil {
		creds = credentials.NewMemory()
	}
	p := &Pipeline{
		base:           u,
		client:         &http.Client{},
		creds:          creds,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.refresher = refresh.NewCoordinator(p.refreshTimeout)
	return p, nil
}

// BaseURL returns the backend base URL.
func (p *Pipeline) BaseURL() string {
	return p.base.String()
}

// Credentials returns the credential store in use.
func (p *Pipeline) Credentials() credentials.Store {
	return p.creds
}

// SetCredentials stores a freshly issued credential pair.
func (p *Pipeline) SetCredentials(pair credentials.Pair) error {
	return p.creds.Set(pair)
}

// ClearCredentials forgets the session.
func (p *Pipeline) ClearCredentials() error {
	return p.creds.Clear()
}

// Send issues req and applies the recovery protocol to a 401 response.
func (p *Pipeline) Send(ctx context.Context, req *Request) (*Response, error) {
	sent := req.bearer
	if sent == "" {
		sent = p.creds.Access()
	}
	rsp, err := p.do(ctx, req, sent)
	if err == nil {
		return rsp, nil
	}
	return p.recover(ctx, req, sent, err)
}

// do sends req once with access as its bearer. Non-2xx statuses are returned as
// ErrRequestFailed.
func (p *Pipeline) do(ctx context.Context, req *Request, access string) (*Response, error) {
	httpReq, err := req.build(ctx, p.base, access)
	if err != nil {
		return nil, ErrPipeline.MsgErr("unable to build request", err)
	}

	log.Ctx(ctx).Debug().
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Bool("replay", req.replay).
		Bool("bearer", httpReq.Header.Get("Authorization") != "").
		Msg("sending request")

	httpRsp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ErrNetworkFailure.MsgErr(fmt.Sprintf("%s %s: %v", req.Method, req.Path, err), err)
	}
	defer httpRsp.Body.Close()

	body, err := io.ReadAll(httpRsp.Body)
	if err != nil {
		return nil, ErrNetworkFailure.MsgErr("failed to read response body", err)
	}

	if httpRsp.StatusCode < 200 || httpRsp.StatusCode > 299 {
		return nil, failure(httpRsp.StatusCode, body)
	}
	return &Response{
		StatusCode: httpRsp.StatusCode,
		Header:     httpRsp.Header,
		Body:       body,
	}, nil
}

// replayOrder hands out turns so that replays are dispatched one at a time, in the order their
// continuations were released.
type replayOrder struct {
	mu   sync.Mutex
	tail chan struct{}
}

// next returns the turn to wait for and the turn to close once the replay has been answered.
func (o *replayOrder) next() (prev <-chan struct{}, mine chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tail == nil {
		o.tail = make(chan struct{})
		close(o.tail)
	}
	prev, mine = o.tail, make(chan struct{})
	o.tail = mine
	return prev, mine
}

type outcome struct {
	token string
	err   error
	prev  <-chan struct{}
	turn  chan struct{}
}

// pass gives up a turn without replaying, keeping the chain intact for later waiters.
func (o outcome) pass() {
	if o.turn == nil {
		return
	}
	<-o.prev
	close(o.turn)
}

// recover handles a failed first attempt sent with the bearer sent. Only a 401 on a
// protected, not yet replayed request is recovered; every other failure is returned unchanged.
func (p *Pipeline) recover(ctx context.Context, req *Request, sent string, cause error) (*Response, error) {
	he, ok := AsHTTPError(cause)
	if !ok || he.StatusCode != http.StatusUnauthorized || req.replay || req.isAuthEndpoint() {
		return nil, cause
	}
	logger := log.Ctx(ctx)

	// a refresh settled while this request was out
	if current := p.creds.Access(); current != "" && current != sent {
		logger.Debug().Str("method", req.Method).Str("path", req.Path).Msg("replaying request with the refreshed token")
		return p.Send(ctx, req.replayWith(current))
	}
	if p.creds.Refresh() == "" {
		return nil, ErrUnauthenticated.Err(he)
	}

	released := make(chan outcome, 1)
	p.refresher.RunExclusive(ctx, p.refreshAccess, func(token string, err error) {
		o := outcome{token: token, err: err}
		if err == nil {
			o.prev, o.turn = p.replays.next()
		}
		released <- o
	})

	var o outcome
	select {
	case o = <-released:
	case <-ctx.Done():
		go func() { (<-released).pass() }()
		return nil, ctx.Err()
	}
	if o.err != nil {
		return nil, ErrSessionExpired.Err(he).Suffix(o.err.Error())
	}

	select {
	case <-o.prev:
	case <-ctx.Done():
		go o.pass()
		return nil, ctx.Err()
	}
	defer close(o.turn)

	logger.Debug().Str("method", req.Method).Str("path", req.Path).Msg("replaying request after refresh")
	return p.Send(ctx, req.replayWith(o.token))
}

// refreshAccess exchanges the stored refresh token for a new access token. The refresh token
// is kept. Any failure clears both tokens.
func (p *Pipeline) refreshAccess(ctx context.Context) (string, error) {
	logger := log.Ctx(ctx)

	token, err := p.exchangeRefreshToken(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("token refresh failed, clearing session")
		if cerr := p.creds.Clear(); cerr != nil {
			logger.Error().Err(cerr).Msg("unable to clear credentials")
		}
		if p.onExpired != nil {
			p.onExpired(ctx)
		}
		return "", err
	}

	if err := p.creds.Set(credentials.Pair{Access: token}); err != nil {
		logger.Error().Err(err).Msg("unable to store refreshed access token")
		return "", err
	}
	logger.Debug().Msg("access token refreshed")
	return token, nil
}

func (p *Pipeline) exchangeRefreshToken(ctx context.Context) (string, error) {
	refreshToken := p.creds.Refresh()
	if refreshToken == "" {
		return "", ErrUnauthenticated.Msg("no refresh token stored")
	}
	req, err := NewJSONRequest(http.MethodPost, TokenRefreshPath, map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", err
	}
	rsp, err := p.do(ctx, req, "")
	if err != nil {
		return "", err
	}
	access := gjson.GetBytes(rsp.Body, "access").String()
	if access == "" {
		return "", ErrPipeline.Msg("refresh response has no access token")
	}
	return access, nil
}
