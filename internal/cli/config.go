package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/internal/dashboard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the default name of the config file
	DefaultConfigFile = "config.yaml"
	ConfigVersion     = "0.1.0"
	DefaultServerURL  = "http://localhost:8000"
	// EnvAPIBase overrides server_url. It is also read from a .env file in the working directory.
	EnvAPIBase = "PLANTITAS_API_BASE"

	defaultRequestTimeout = 30 * time.Second
)

// Config is the CLI configuration file.
type Config struct {
	Version   string `yaml:"version" json:"version"`
	ServerURL string `yaml:"server_url" json:"server_url" validate:"required,url"`
	// RefreshTimeout bounds a token refresh, e.g. "15s".
	RefreshTimeout string `yaml:"refresh_timeout,omitempty" json:"refresh_timeout,omitempty" validate:"omitempty,duration"`
	// RequestTimeout bounds every other request.
	RequestTimeout    string `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty" validate:"omitempty,duration"`
	TimeZone          string `yaml:"timezone,omitempty" json:"timezone,omitempty" validate:"omitempty,timezone"`
	LowStockThreshold int    `yaml:"low_stock_threshold,omitempty" json:"low_stock_threshold,omitempty" validate:"gte=0"`

	path string
}

var config *Config

var (
	configValidatorOnce sync.Once
	configValidator     *validator.Validate
)

func getConfigValidator() *validator.Validate {
	configValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			d, err := time.ParseDuration(fl.Field().String())
			return err == nil && d > 0
		})
		configValidator = v
	})
	return configValidator
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version:           ConfigVersion,
		ServerURL:         DefaultServerURL,
		TimeZone:          dashboard.DefaultTimeZone,
		LowStockThreshold: dashboard.DefaultLowStockThreshold,
	}
}

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/plantitas on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "plantitas", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file. A missing file yields the defaults. The
// server URL can be overridden with PLANTITAS_API_BASE, from the environment or a .env file
// in the working directory.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	c := DefaultConfig()
	yamlStr, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(yamlStr, c); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	c.path = file

	_ = godotenv.Load() // a missing .env is fine; set variables are not overridden
	if base := strings.TrimSpace(os.Getenv(EnvAPIBase)); base != "" {
		c.ServerURL = base
	}
	c.ServerURL = MorphServer(c.ServerURL)

	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if config == nil {
		config = DefaultConfig()
	}
	return config
}

// ValidateConfig checks the configuration fields.
func (cfg *Config) ValidateConfig() error {
	if err := getConfigValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s %q is not valid (%s)", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server_url must start with http:// or https://")
	}
	return nil
}

// WriteConfig writes the configuration to file.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	if err := os.WriteFile(file, yamlStr, 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}

// Dir is the directory holding the config file, the remembered session and the cart.
func (cfg *Config) Dir() string {
	if cfg.path == "" {
		if p, err := GetDefaultConfigPath(); err == nil {
			return filepath.Dir(p)
		}
		return "."
	}
	return filepath.Dir(cfg.path)
}

func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

func (cfg *Config) GetRefreshTimeout() time.Duration {
	if d, err := time.ParseDuration(cfg.RefreshTimeout); err == nil && d > 0 {
		return d
	}
	return pipeline.DefaultRefreshTimeout
}

func (cfg *Config) GetRequestTimeout() time.Duration {
	if d, err := time.ParseDuration(cfg.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return defaultRequestTimeout
}

// Location returns the shop time zone, falling back to UTC when it cannot be loaded.
func (cfg *Config) Location() *time.Location {
	tz := cfg.TimeZone
	if tz == "" {
		tz = dashboard.DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MorphServer ensures the server URL is properly formatted. It removes trailing slashes and
// adds a scheme when missing: http for local hosts, https otherwise.
func MorphServer(server string) string {
	server = strings.TrimSpace(server)
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
		return server
	}
	host := server
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	if host == "localhost" || strings.HasPrefix(host, "127.") {
		return "http://" + server
	}
	return "https://" + server
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage CLI configuration settings like the server URL and the dashboard time zone.

Examples:
  # Show the configuration in use
  plantitas config

  # Point the CLI at a server
  plantitas config --server shop.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			if server == "" {
				return printConfig(cmd)
			}
			return setServerConfig(cmd, server)
		},
	}
	configCmd.Flags().String("server", "", "Set the server URL (e.g. localhost:8000 or https://api.example.com)")

	configCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget stored sessions and the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sessionManager().Logout(); err != nil {
				return fmt.Errorf("unable to clear sessions: %w", err)
			}
			if err := os.Remove(cartPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("unable to clear cart: %w", err)
			}
			return render(cmd, map[string]int{"result": 1}, func(w output) {
				w.println("Sessions and cart cleared")
			})
		},
	})
	return configCmd
}

func printConfig(cmd *cobra.Command) error {
	cfg := GetConfig()
	return render(cmd, cfg, func(w output) {
		w.printf("Config file:  %s\n", cfg.path)
		w.printf("Server:       %s\n", cfg.GetServerURL())
		w.printf("Time zone:    %s\n", cfg.Location())
		w.printf("Low stock at: %d\n", cfg.LowStockThreshold)
	})
}

// setServerConfig stores a new server URL, keeping the other settings.
func setServerConfig(cmd *cobra.Command, server string) error {
	cfg := GetConfig()
	cfg.Version = ConfigVersion
	cfg.ServerURL = MorphServer(server)
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}

	if err := cfg.WriteConfig(configPath()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return render(cmd, map[string]string{"server": cfg.ServerURL, "config_file": configPath()}, func(w output) {
		w.printf("Server configured: %s\n", cfg.ServerURL)
		w.printf("Config file: %s\n", configPath())
	})
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	p, err := GetDefaultConfigPath()
	if err != nil {
		return DefaultConfigFile
	}
	return p
}
