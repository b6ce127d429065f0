package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "60m", want: time.Hour},
		{in: "2h", want: 2 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "1y", want: 365 * 24 * time.Hour},
		{in: "5", wantErr: true},
		{in: "0m", wantErr: true},
		{in: "xm", wantErr: true},
		{in: "5w", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadConfig(t *testing.T) {
	content := `
format_version = "0.1"
server_hostname = "127.0.0.1"
server_port = "8080"
handle_cors = true
allowed_origins = ["http://localhost:5173"]
timezone = "America/Santiago"

[auth]
access_token_validity = "5m"
refresh_token_validity = "1d"

[[users]]
username = "fran"
password = "secreto"
groups = ["admin"]
superuser = true

[[users]]
username = "vale"
password = "secreto"
groups = ["vendedor"]
`
	path := filepath.Join(t.TempDir(), "devserver.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, "America/Santiago", cfg.Location().String())
	assert.Len(t, cfg.Auth.SigningKey, 48)
	assert.Equal(t, "plantitas-devserver", cfg.Auth.Issuer)

	require.Len(t, cfg.Users, 2)
	assert.Empty(t, cfg.Users[0].Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.Users[0].PasswordHash), []byte("secreto")))
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ConfigParam)
	}{
		{name: "format", mutate: func(c *ConfigParam) { c.FormatVersion = "9" }},
		{name: "port", mutate: func(c *ConfigParam) { c.ServerPort = "" }},
		{name: "timezone", mutate: func(c *ConfigParam) { c.TimeZone = "Mars/Olympus" }},
		{name: "access validity", mutate: func(c *ConfigParam) { c.Auth.AccessTokenValidity = "soon" }},
		{name: "short key", mutate: func(c *ConfigParam) { c.Auth.SigningKey = "short" }},
		{name: "duplicate user", mutate: func(c *ConfigParam) { c.Users = append(c.Users, c.Users[0]) }},
		{name: "no password", mutate: func(c *ConfigParam) { c.Users[0].Password = "" }},
		{name: "bad hash", mutate: func(c *ConfigParam) { c.Users[0].PasswordHash = "plain" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}

	assert.NoError(t, ValidateConfig(Default()))
}
