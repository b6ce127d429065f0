package auth

import (
	"slices"
	"sync"

	"github.com/plantitas/plantitas/internal/devserver/config"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"golang.org/x/crypto/bcrypt"
)

// User is an account known to the backend.
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	Groups       []string
	Superuser    bool
}

// InGroup reports whether the user belongs to one of groups. Superusers always do.
func (u *User) InGroup(groups ...string) bool {
	if u.Superuser {
		return true
	}
	for _, g := range groups {
		if slices.Contains(u.Groups, g) {
			return true
		}
	}
	return false
}

// Me returns the user as the /api/me/ resource.
func (u *User) Me() shopapi.Me {
	groups := append([]string{}, u.Groups...)
	role := shopapi.RoleUser
	if len(groups) > 0 {
		role = groups[0]
	}
	return shopapi.Me{ID: u.ID, Username: u.Username, Email: u.Email, Groups: groups, Role: role}
}

// Users is the in-memory account table.
type Users struct {
	mu     sync.RWMutex
	byName map[string]*User
	byID   map[int]*User
}

// NewUsers builds the table from validated config entries; IDs follow config order.
func NewUsers(entries []config.UserConfig) *Users {
	u := &Users{byName: map[string]*User{}, byID: map[int]*User{}}
	for i, e := range entries {
		user := &User{
			ID:           i + 1,
			Username:     e.Username,
			Email:        e.Email,
			PasswordHash: e.PasswordHash,
			Groups:       append([]string{}, e.Groups...),
			Superuser:    e.Superuser,
		}
		u.byName[user.Username] = user
		u.byID[user.ID] = user
	}
	return u
}

// Authenticate checks a username and password.
func (u *Users) Authenticate(username, password string) (*User, error) {
	u.mu.RLock()
	user, ok := u.byName[username]
	u.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (u *Users) Get(id int) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	return user, ok
}
