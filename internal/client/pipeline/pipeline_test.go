package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend accepts a single valid access token and counts refresh calls.
type fakeBackend struct {
	mu           sync.Mutex
	validAccess  string
	nextAccess   string
	refreshToken string
	refreshFails bool
	refreshDelay time.Duration
	refreshCalls atomic.Int32
	seenBearers  []string
	uploadCT     string
	// slow401 delays rejections of requests tagged slow=1
	slow401  time.Duration
	served   []string
	products []string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		b.mu.Lock()
		b.seenBearers = append(b.seenBearers, r.Header.Get("Authorization"))
		b.mu.Unlock()
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		var in struct {
			Refresh string `json:"refresh"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if b.refreshFails || in.Refresh != b.refreshToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`)
			return
		}
		b.mu.Lock()
		b.validAccess = b.nextAccess
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"access":"`+b.nextAccess+`"}`)
	})
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.seenBearers = append(b.seenBearers, r.Header.Get("Authorization"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
	})
	mux.HandleFunc("/api/products/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := b.validAccess
		b.products = append(b.products, r.Header.Get("Authorization"))
		b.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			if r.URL.Query().Get("slow") == "1" {
				time.Sleep(b.slow401)
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
			return
		}
		if r.Method == http.MethodPost {
			b.mu.Lock()
			b.uploadCT = r.Header.Get("Content-Type")
			b.mu.Unlock()
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"image":["invalid upload"]}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":"p1","name":"`+r.FormValue("name")+`"}`)
			return
		}
		b.mu.Lock()
		b.served = append(b.served, r.URL.Query().Get("n"))
		b.mu.Unlock()
		_, _ = io.WriteString(w, `[{"id":"p1","name":"Monstera"}]`)
	})
	return mux
}

func newTestPipeline(t *testing.T, b *fakeBackend, pair credentials.Pair) (*Pipeline, credentials.Store) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	creds := credentials.NewMemory()
	require.NoError(t, creds.Set(pair))
	p, err := New(srv.URL, creds, WithRefreshTimeout(2*time.Second))
	require.NoError(t, err)
	return p, creds
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", nil)
	assert.Error(t, err)
	_, err = New("://", nil)
	assert.Error(t, err)

	p, err := New("http://localhost:8000", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", p.BaseURL())
	assert.NotNil(t, p.Credentials())
}

func TestValidTokenPassesThrough(t *testing.T) {
	b := &fakeBackend{validAccess: "A1", refreshToken: "R1"}
	p, _ := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	rsp, err := p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)

	var products []map[string]string
	require.NoError(t, rsp.Decode(&products))
	assert.Equal(t, "Monstera", products[0]["name"])
	assert.Zero(t, b.refreshCalls.Load())
}

func TestExpiredTokenIsRefreshedAndReplayed(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1"}
	p, creds := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	rsp, err := p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, int32(1), b.refreshCalls.Load())

	assert.Equal(t, "A2", creds.Access())
	assert.Equal(t, "R1", creds.Refresh())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1", refreshDelay: 200 * time.Millisecond}
	p, creds := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, "A2", creds.Access())
}

func TestReplayIsAttemptedOnlyOnce(t *testing.T) {
	// the refresh succeeds but the backend keeps rejecting the new token
	b := &fakeBackend{validAccess: "never", nextAccess: "A2", refreshToken: "R1"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/token/refresh/") {
			b.refreshCalls.Add(1)
			_, _ = io.WriteString(w, `{"access":"A2"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"nope"}`)
	}))
	t.Cleanup(srv.Close)

	creds := credentials.NewMemory()
	require.NoError(t, creds.Set(credentials.Pair{Access: "A1", Refresh: "R1"}))
	p, err := New(srv.URL, creds)
	require.NoError(t, err)

	_, err = p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, "nope", err.Error())
	assert.Equal(t, int32(1), b.refreshCalls.Load())
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1", refreshFails: true, refreshDelay: 200 * time.Millisecond}
	p, creds := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.NotErrorIs(t, err, ErrRequestFailed)
	}
	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Empty(t, creds.Access())
	assert.Empty(t, creds.Refresh())
	assert.False(t, credentials.LoggedIn(creds))
}

func TestReplaysFollowRegistrationOrder(t *testing.T) {
	for round := 0; round < 5; round++ {
		b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1", refreshDelay: 300 * time.Millisecond}
		p, _ := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

		const n = 4
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := NewRequest(http.MethodGet, "/api/products/")
				req.Query = map[string][]string{"n": {strconv.Itoa(i)}}
				_, errs[i] = p.Send(context.Background(), req)
			}(i)
			time.Sleep(40 * time.Millisecond)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), b.refreshCalls.Load())
		assert.Equal(t, []string{"0", "1", "2", "3"}, b.served, "round %d", round)
	}
}

func TestLateUnauthorizedReusesSettledRefresh(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1", slow401: 200 * time.Millisecond}
	p, creds := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	slowErr := make(chan error, 1)
	go func() {
		req := NewRequest(http.MethodGet, "/api/products/")
		req.Query = map[string][]string{"slow": {"1"}}
		_, err := p.Send(context.Background(), req)
		slowErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	_, err := p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.NoError(t, err)
	require.Equal(t, "A2", creds.Access())

	require.NoError(t, <-slowErr)
	assert.Equal(t, int32(1), b.refreshCalls.Load())
}

func TestNoTokensIsUnauthenticated(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", refreshToken: "R1"}
	p, creds := newTestPipeline(t, b, credentials.Pair{})
	require.False(t, credentials.LoggedIn(creds))

	_, err := p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Zero(t, b.refreshCalls.Load())
	assert.Equal(t, []string{""}, b.products)
}

func TestNoRefreshTokenIsUnauthenticated(t *testing.T) {
	b := &fakeBackend{validAccess: "A2"}
	p, _ := newTestPipeline(t, b, credentials.Pair{Access: "A1"})

	_, err := p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, b.refreshCalls.Load())
}

func TestAuthEndpointsCarryNoBearerAndNeverRefresh(t *testing.T) {
	b := &fakeBackend{validAccess: "A1", refreshToken: "R1"}
	p, creds := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	req, err := NewJSONRequest(http.MethodPost, TokenPath, map[string]string{"username": "ana", "password": "bad"})
	require.NoError(t, err)
	_, err = p.Send(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "No active account found with the given credentials", err.Error())

	assert.Zero(t, b.refreshCalls.Load())
	require.Len(t, b.seenBearers, 1)
	assert.Empty(t, b.seenBearers[0])
	assert.Equal(t, "A1", creds.Access())
}

func TestMultipartContentTypeIsOwnedByPipeline(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1"}
	p, _ := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	m := &Multipart{}
	m.AddField("name", "Ficus")
	m.Files = append(m.Files, File{Field: "image", Filename: "ficus.png", ContentType: "image/png", Data: []byte("\x89PNG")})
	req := NewMultipartRequest(http.MethodPost, "/api/products/", m)
	req.Header.Set("Content-Type", "application/json")

	rsp, err := p.Send(context.Background(), req)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, rsp.Decode(&out))
	assert.Equal(t, "Ficus", out["name"])
	assert.True(t, strings.HasPrefix(b.uploadCT, "multipart/form-data; boundary="))
	assert.Equal(t, int32(1), b.refreshCalls.Load())
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := New(url, nil)
	require.NoError(t, err)
	_, err = p.Send(context.Background(), NewRequest(http.MethodGet, "/api/products/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.Zero(t, StatusCode(err))
}

func TestCallerCancellationWhileWaiting(t *testing.T) {
	b := &fakeBackend{validAccess: "A2", nextAccess: "A2", refreshToken: "R1", refreshDelay: 300 * time.Millisecond}
	p, creds := newTestPipeline(t, b, credentials.Pair{Access: "A1", Refresh: "R1"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := p.Send(ctx, NewRequest(http.MethodGet, "/api/products/"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the shared refresh still completes for everyone else
	assert.Eventually(t, func() bool { return creds.Access() == "A2" }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "R1", creds.Refresh())
}

func TestRequestBuild(t *testing.T) {
	p, err := New("http://shop.local/base/", nil)
	require.NoError(t, err)

	req := NewRequest(http.MethodGet, "/api/products/")
	req.Query = map[string][]string{"search": {"ficus"}}
	httpReq, err := req.build(context.Background(), p.base, "A1")
	require.NoError(t, err)
	assert.Equal(t, "http://shop.local/base/api/products/?search=ficus", httpReq.URL.String())
	assert.Equal(t, "Bearer A1", httpReq.Header.Get("Authorization"))
	assert.Equal(t, "application/json", httpReq.Header.Get("Accept"))

	replay := req.replayWith("A2")
	assert.True(t, replay.IsReplay())
	assert.False(t, req.IsReplay())
	httpReq, err = replay.build(context.Background(), p.base, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer A2", httpReq.Header.Get("Authorization"))

	httpReq, err = NewRequest(http.MethodPost, TokenRefreshPath).build(context.Background(), p.base, "A1")
	require.NoError(t, err)
	assert.Empty(t, httpReq.Header.Get("Authorization"))
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		msg    string
		field  string
		fmsg   string
	}{
		{name: "detail", status: 401, body: `{"detail":"Authentication credentials were not provided."}`, msg: "Authentication credentials were not provided."},
		{name: "error", status: 400, body: `{"error":"Stock insuficiente"}`, msg: "Stock insuficiente"},
		{name: "field list", status: 400, body: `{"price":["Ensure this value is greater than or equal to 0."]}`, msg: "Ensure this value is greater than or equal to 0.", field: "price", fmsg: "Ensure this value is greater than or equal to 0."},
		{name: "field string", status: 400, body: `{"sku":"already exists"}`, msg: "already exists", field: "sku", fmsg: "already exists"},
		{name: "nested", status: 400, body: `{"items":[{"quantity":["must be positive"]}]}`, msg: "must be positive", field: "items", fmsg: "must be positive"},
		{name: "array", status: 400, body: `["Cart is empty"]`, msg: "Cart is empty"},
		{name: "plain text", status: 502, body: `upstream unavailable`, msg: "upstream unavailable"},
		{name: "html", status: 500, body: `<html><body>Server Error</body></html>`, msg: "internal server error"},
		{name: "empty", status: 404, body: ``, msg: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := normalizeError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, he.StatusCode)
			assert.Equal(t, tt.msg, he.Message)
			if tt.field != "" {
				assert.Equal(t, tt.fmsg, he.FieldError(tt.field))
			}
		})
	}
}
