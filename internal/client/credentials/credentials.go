// Package credentials holds the session credential pair (access and refresh tokens) on top of
// a client key-value store. The pipeline reads the pair before every request and writes it
// only while refreshing; the login and logout flows set and clear it.
package credentials

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/plantitas/plantitas/internal/kvstore"
)

// Storage keys. Absence of both tokens means logged out.
const (
	AccessKey  = "access"
	RefreshKey = "refresh"
)

// Pair is the session credential pair. Both tokens are opaque bearer strings.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Store is the credential storage strategy given to the pipeline at construction.
type Store interface {
	Access() string
	Refresh() string
	// Set writes the non-empty fields of p in a single step.
	Set(p Pair) error
	Clear() error
}

// KVStore stores credentials under AccessKey and RefreshKey of a kvstore.Store.
type KVStore struct {
	kv kvstore.Store
}

// New returns a credential store backed by kv.
func New(kv kvstore.Store) *KVStore {
	return &KVStore{kv: kv}
}

// NewMemory returns a credential store that lives only as long as the process.
func NewMemory() *KVStore {
	return New(kvstore.NewMemoryStore())
}

// KV exposes the underlying key-value store so the session flow can keep the user
// next to the tokens.
func (s *KVStore) KV() kvstore.Store {
	return s.kv
}

func (s *KVStore) Access() string {
	v, _ := s.kv.Get(AccessKey)
	return v
}

func (s *KVStore) Refresh() string {
	v, _ := s.kv.Get(RefreshKey)
	return v
}

func (s *KVStore) Set(p Pair) error {
	values := map[string]string{}
	if p.Access != "" {
		values[AccessKey] = p.Access
	}
	if p.Refresh != "" {
		values[RefreshKey] = p.Refresh
	}
	if len(values) == 0 {
		return nil
	}
	return s.kv.SetMany(values)
}

func (s *KVStore) Clear() error {
	return s.kv.Delete(AccessKey, RefreshKey)
}

// LoggedIn reports whether s holds an access token.
func LoggedIn(s Store) bool {
	return s != nil && s.Access() != ""
}

// Scope selects where a session is kept.
type Scope string

const (
	// ScopeDurable keeps the session in the user config directory until logout.
	ScopeDurable Scope = "durable"
	// ScopeSession keeps the session in a per-user temporary directory, which the OS clears
	// on reboot.
	ScopeSession Scope = "session"
)

// Locations names the files backing each scope.
type Locations struct {
	Durable string
	Session string
}

// DefaultLocations returns the durable path under configDir and the session path under the
// OS temporary directory.
func DefaultLocations(configDir string) Locations {
	return Locations{
		Durable: filepath.Join(configDir, "session.json"),
		Session: filepath.Join(os.TempDir(), "plantitas-"+strconv.Itoa(os.Getuid()), "session.json"),
	}
}

// Open opens the store for scope.
func Open(loc Locations, scope Scope) (*KVStore, error) {
	path := loc.Durable
	if scope == ScopeSession {
		path = loc.Session
	}
	kv, err := kvstore.OpenFileStore(path)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

// OpenActive opens the store holding the current session. The durable store wins when both
// hold a token; with neither, the durable store is returned.
func OpenActive(loc Locations) (*KVStore, Scope, error) {
	durable, err := Open(loc, ScopeDurable)
	if err != nil {
		return nil, "", err
	}
	if LoggedIn(durable) {
		return durable, ScopeDurable, nil
	}
	session, err := Open(loc, ScopeSession)
	if err != nil {
		return nil, "", err
	}
	if LoggedIn(session) {
		return session, ScopeSession, nil
	}
	return durable, ScopeDurable, nil
}
