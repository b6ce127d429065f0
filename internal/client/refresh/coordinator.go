// Package refresh coordinates access-token refreshes so that at most one refresh call is in
// flight per pipeline. Concurrent callers share the in-flight call and are released in the
// order they registered once it settles.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/plantitas/plantitas/internal/common/apperrors"
)

var (
	ErrRefresh      = apperrors.New("token refresh failed")
	ErrEmptyToken   = ErrRefresh.New("refresh returned an empty access token")
	ErrRefreshPanic = ErrRefresh.New("refresh function panicked")
)

// Func performs one refresh and returns the new access token.
type Func func(ctx context.Context) (string, error)

// Continuation receives the outcome of the refresh it registered on: a token, or an error.
// Continuations run on the goroutine that settles the refresh and must not block.
type Continuation func(token string, err error)

// Future is the shared result of one refresh call.
type Future struct {
	done    chan struct{}
	token   string
	err     error
	waiters []Continuation
}

// Done is closed once the refresh has settled and every continuation has been released.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the refresh settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Coordinator is a single-flight runner for refresh calls.
type Coordinator struct {
	mu      sync.Mutex
	flight  *Future
	timeout time.Duration
}

// NewCoordinator returns a Coordinator. A positive timeout bounds every refresh call; a
// refresh that exceeds it fails with context.DeadlineExceeded.
func NewCoordinator(timeout time.Duration) *Coordinator {
	return &Coordinator{timeout: timeout}
}

// RunExclusive registers cont on the in-flight refresh, starting fn first when none is in
// flight. Checking for a flight and registering happen atomically, so no continuation is
// lost between a refresh settling and a new one starting.
//
// fn runs detached from the cancellation of ctx: one caller giving up must not fail the
// refresh that other callers share. Values in ctx, such as the logger, are kept.
func (c *Coordinator) RunExclusive(ctx context.Context, fn Func, cont Continuation) *Future {
	c.mu.Lock()
	f := c.flight
	start := f == nil
	if start {
		f = &Future{done: make(chan struct{})}
		c.flight = f
	}
	if cont != nil {
		f.waiters = append(f.waiters, cont)
	}
	c.mu.Unlock()

	if start {
		go c.run(ctx, f, fn)
	}
	return f
}

// InFlight reports whether a refresh is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight != nil
}

func (c *Coordinator) run(ctx context.Context, f *Future, fn Func) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, err := call(ctx, fn)
	if err == nil && token == "" {
		err = ErrEmptyToken
	}

	c.mu.Lock()
	c.flight = nil
	waiters := f.waiters
	f.waiters = nil
	f.token, f.err = token, err
	c.mu.Unlock()

	for _, w := range waiters {
		w(token, err)
	}
	close(f.done)
}

func call(ctx context.Context, fn Func) (token string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrRefreshPanic.Msg(fmt.Sprintf("refresh panicked: %v", r))
		}
	}()
	return fn(ctx)
}
