// Package devtest runs the reference backend inside tests.
package devtest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plantitas/plantitas/internal/devserver/config"
	"github.com/plantitas/plantitas/internal/devserver/server"
	"github.com/stretchr/testify/require"
)

// Password is the password of every default user.
const Password = "plantitas"

// Backend is a running seeded backend with the default users.
type Backend struct {
	*httptest.Server
	Shop *server.ShopServer
}

// Start starts a backend that is closed when t ends.
func Start(t testing.TB) *Backend {
	t.Helper()
	cfg := config.Default()
	cfg.HandleCORS = false
	require.NoError(t, config.ValidateConfig(cfg))
	s, err := server.CreateNewServer(cfg)
	require.NoError(t, err)
	s.MountHandlers()
	ts := httptest.NewServer(s.Router)
	t.Cleanup(ts.Close)
	return &Backend{Server: ts, Shop: s}
}

// Shift moves the backend clock by d from the real time. Shift(0) restores it.
func (b *Backend) Shift(d time.Duration) {
	b.Shop.SetClock(func() time.Time { return time.Now().Add(d) })
}
