// Package config loads the reference backend configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/plantitas/plantitas/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Version is the supported configuration file format.
const Version = "0.1"

// AuthConfig holds token settings. Durations use the "<n><unit>" format of ParseDuration.
type AuthConfig struct {
	SigningKey           string `toml:"signing_key"`            // HS256 key; generated at startup when empty
	AccessTokenValidity  string `toml:"access_token_validity"`  // e.g. "60m"
	RefreshTokenValidity string `toml:"refresh_token_validity"` // e.g. "7d"
	Issuer               string `toml:"issuer"`
}

func (a *AuthConfig) GetAccessTokenValidity() (time.Duration, error) {
	return ParseDuration(a.AccessTokenValidity)
}

func (a *AuthConfig) GetRefreshTokenValidity() (time.Duration, error) {
	return ParseDuration(a.RefreshTokenValidity)
}

// UserConfig seeds one user account. Either a bcrypt PasswordHash or a plain Password is
// required; a plain password is hashed on load.
type UserConfig struct {
	Username     string   `toml:"username"`
	Email        string   `toml:"email"`
	Password     string   `toml:"password"`
	PasswordHash string   `toml:"password_hash"`
	Groups       []string `toml:"groups"`
	Superuser    bool     `toml:"superuser"`
}

// ConfigParam is the whole backend configuration.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	ServerHostName     string   `toml:"server_hostname"`
	ServerPort         string   `toml:"server_port"`
	HandleCORS         bool     `toml:"handle_cors"`
	AllowedOrigins     []string `toml:"allowed_origins"` // empty with handle_cors allows every origin
	MaxRequestBodySize int64    `toml:"max_request_body_size"`
	RequestTimeout     string   `toml:"request_timeout"`
	TimeZone           string   `toml:"timezone"` // shop time zone for order codes
	SeedCatalog        bool     `toml:"seed_catalog"`

	Auth  AuthConfig   `toml:"auth"`
	Users []UserConfig `toml:"users"`

	location *time.Location
}

// Location returns the shop time zone.
func (c *ConfigParam) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// GetRequestTimeout returns the per-request timeout, 0 when unset.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == "" {
		return 0
	}
	d, _ := ParseDuration(c.RequestTimeout)
	return d
}

// ListenAddr returns host:port for the HTTP listener.
func (c *ConfigParam) ListenAddr() string {
	return c.ServerHostName + ":" + c.ServerPort
}

// ParseDuration parses "<number><unit>" where unit is s, m, h, d (days) or y (365 days).
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", input)
	}

	var duration time.Duration
	switch unit {
	case "s":
		duration = time.Duration(value) * time.Second
	case "m":
		duration = time.Duration(value) * time.Minute
	case "h":
		duration = time.Duration(value) * time.Hour
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "y":
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
	return duration, nil
}

// Default returns a configuration suitable for local development and tests: one admin,
// one vendedor and one bodeguero, all with password "plantitas".
func Default() *ConfigParam {
	cfg := &ConfigParam{
		FormatVersion:      Version,
		ServerHostName:     "localhost",
		ServerPort:         "8000",
		HandleCORS:         true,
		MaxRequestBodySize: 6 << 20,
		RequestTimeout:     "30s",
		TimeZone:           "America/Santiago",
		SeedCatalog:        true,
		Auth: AuthConfig{
			AccessTokenValidity:  "60m",
			RefreshTokenValidity: "7d",
			Issuer:               "plantitas-devserver",
		},
		Users: []UserConfig{
			{Username: "fran", Email: "fran@plantitas.cl", Password: "plantitas", Groups: []string{"admin"}, Superuser: true},
			{Username: "vale", Email: "vale@plantitas.cl", Password: "plantitas", Groups: []string{"vendedor"}},
			{Username: "tomas", Email: "tomas@plantitas.cl", Password: "plantitas", Groups: []string{"bodeguero"}},
		},
	}
	return cfg
}

// ValidateConfig checks the configuration and fills in derived values: the time zone,
// a random signing key when none is set, and bcrypt hashes for plain passwords.
func ValidateConfig(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 6 << 20
	}
	if cfg.RequestTimeout != "" {
		if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout: %v", err)
		}
	}
	tz := cfg.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone: %v", err)
	}
	cfg.location = loc

	if err := validateAuthConfig(&cfg.Auth); err != nil {
		return err
	}
	return validateUsers(cfg.Users)
}

func validateAuthConfig(a *AuthConfig) error {
	if _, err := a.GetAccessTokenValidity(); err != nil {
		return fmt.Errorf("invalid auth.access_token_validity: %v", err)
	}
	if _, err := a.GetRefreshTokenValidity(); err != nil {
		return fmt.Errorf("invalid auth.refresh_token_validity: %v", err)
	}
	if a.Issuer == "" {
		a.Issuer = "plantitas-devserver"
	}
	if a.SigningKey == "" {
		key, err := common.RandomString(48)
		if err != nil {
			return fmt.Errorf("unable to generate signing key: %v", err)
		}
		a.SigningKey = key
	} else if len(a.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 characters")
	}
	return nil
}

func validateUsers(users []UserConfig) error {
	seen := map[string]bool{}
	for i := range users {
		u := &users[i]
		if u.Username == "" {
			return fmt.Errorf("users[%d].username is required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("duplicate user %q", u.Username)
		}
		seen[u.Username] = true
		if u.PasswordHash == "" {
			if u.Password == "" {
				return fmt.Errorf("user %q needs password or password_hash", u.Username)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hashing password of %q: %v", u.Username, err)
			}
			u.PasswordHash = string(hash)
			u.Password = ""
		} else if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return fmt.Errorf("user %q has an invalid password_hash: %v", u.Username, err)
		}
	}
	return nil
}

// LoadConfig reads, decodes and validates a configuration file.
func LoadConfig(filename string) (*ConfigParam, error) {
	if filename == "" {
		return nil, fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	cfg := &ConfigParam{}
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}
