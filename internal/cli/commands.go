package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/plantitas/plantitas/internal/cart"
	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/internal/common/logtrace"
	"github.com/plantitas/plantitas/internal/kvstore"
	"github.com/plantitas/plantitas/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput   bool
	outputFormat string
	configFile   string
	verbose      bool
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var warnLabel = color.New(color.FgYellow)

const cartFile = "cart.json"

// newRootCmd builds the command tree. Global flag variables are reset to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plantitas [command] [flags]",
		Short: "Plantitas CLI - point of sale and inventory for the Plantitas shop",
		Long: `Plantitas CLI is a command line client for the Plantitas shop backend.
It keeps your session between runs, refreshing the access token when it expires.

Examples:
  # Log in and remember the session
  plantitas login fran --remember

  # Browse the catalogue
  plantitas products list --search ramo

  # Sell two bouquets
  plantitas cart add P001 --qty 2
  plantitas cart checkout --payment efectivo --cash 30000

  # Today's numbers
  plantitas dashboard`,
		PersistentPreRunE: preRunHandlePersistents,
		SilenceErrors:     true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests and token refreshes")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newStatusCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newCategoriesCmd(),
		newProductsCmd(),
		newCartCmd(),
		newOrdersCmd(),
		newDashboardCmd(),
	)
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, ErrAlreadyHandled) {
			reportError(err)
		}
		os.Exit(1)
	}
}

func reportError(err error) {
	if structuredOutput() {
		printJSON(os.Stdout, map[string]string{"error": err.Error()})
		return
	}
	errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
	if needsLogin(err) {
		fmt.Fprintln(os.Stderr, `Run "plantitas login" to start a new session.`)
	}
}

func needsLogin(err error) bool {
	return errors.Is(err, pipeline.ErrUnauthenticated) ||
		errors.Is(err, pipeline.ErrSessionExpired) ||
		errors.Is(err, session.ErrNotLoggedIn)
}

// preRunHandlePersistents sets up logging and loads the configuration before command execution
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	logtrace.InitConsoleLogger(cmd.ErrOrStderr(), verbose)
	cmd.SetContext(log.Logger.WithContext(cmd.Context()))

	switch outputFormat {
	case "", formatJSON, formatYAML:
	default:
		return fmt.Errorf("unsupported output format %q: use json or yaml", outputFormat)
	}

	c, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	config = c
	log.Debug().Str("config", c.path).Str("server", c.ServerURL).Msg("configuration loaded")
	return nil
}

// sessionManager returns the manager for the configured server.
func sessionManager() *session.Manager {
	cfg := GetConfig()
	return &session.Manager{
		BaseURL:   cfg.GetServerURL(),
		Locations: credentials.DefaultLocations(cfg.Dir()),
		Options: []pipeline.Option{
			pipeline.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout()}),
			pipeline.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		},
	}
}

// activeSession returns the stored session after checking that its role may use route.
func activeSession(route session.Route) (*session.Session, error) {
	s, _, err := sessionManager().Active()
	if err != nil {
		return nil, err
	}
	if route == "" {
		if !s.LoggedIn() {
			return nil, session.ErrNotLoggedIn
		}
		return s, nil
	}
	if err := s.Authorize(route); err != nil {
		return nil, err
	}
	return s, nil
}

func cartPath() string {
	return filepath.Join(GetConfig().Dir(), cartFile)
}

func openCart() (*cart.Cart, error) {
	kv, err := kvstore.OpenFileStore(cartPath())
	if err != nil {
		return nil, fmt.Errorf("unable to open cart: %w", err)
	}
	return cart.New(kv), nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the plantitas CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":     getCLIVersion(),
				"config_file": configPath(),
			}
			return render(cmd, info, func(w output) {
				w.printf("plantitas CLI %s\n", getCLIVersion())
				w.printf("Config file: %s\n", configPath())
			})
		},
	}
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.4.0"
}

func isNotFound(err error) bool {
	return pipeline.StatusCode(err) == http.StatusNotFound
}
