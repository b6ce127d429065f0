package session

import (
	"context"

	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
)

// Manager picks the credential store for each session. A remembered login lives in the
// durable store; otherwise it lives in the session scope store.
type Manager struct {
	BaseURL   string
	Locations credentials.Locations
	Options   []pipeline.Option
}

func (m *Manager) open(scope credentials.Scope) (*Session, error) {
	kv, err := credentials.Open(m.Locations, scope)
	if err != nil {
		return nil, err
	}
	return New(m.BaseURL, kv, m.Options...)
}

// Login logs in and keeps the session in the store selected by remember. Any session held
// in the other scope is cleared.
func (m *Manager) Login(ctx context.Context, username, password string, remember bool) (*Session, *shopapi.Me, error) {
	scope, other := credentials.ScopeSession, credentials.ScopeDurable
	if remember {
		scope, other = other, scope
	}
	s, err := m.open(scope)
	if err != nil {
		return nil, nil, err
	}
	me, err := s.Login(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	stale, err := m.open(other)
	if err == nil {
		err = stale.Logout()
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("scope", string(other)).Msg("unable to clear the other session scope")
	}
	return s, me, nil
}

// Active returns the session currently holding a token, preferring the durable one. With no
// session, an empty durable session is returned.
func (m *Manager) Active() (*Session, credentials.Scope, error) {
	kv, scope, err := credentials.OpenActive(m.Locations)
	if err != nil {
		return nil, "", err
	}
	s, err := New(m.BaseURL, kv, m.Options...)
	if err != nil {
		return nil, "", err
	}
	return s, scope, nil
}

// Logout clears both scopes.
func (m *Manager) Logout() error {
	for _, scope := range []credentials.Scope{credentials.ScopeDurable, credentials.ScopeSession} {
		s, err := m.open(scope)
		if err != nil {
			return err
		}
		if err := s.Logout(); err != nil {
			return err
		}
	}
	return nil
}
