package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/avast/retry-go/v4"
	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const statusPollInterval = 500 * time.Millisecond

// apiConstraint accepts servers with the same major API version and at least our minor version.
var apiConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint("^" + shopapi.APIVersion)
	if err != nil {
		panic(err)
	}
	return c
}()

// IsAPICompatible reports whether a server speaking version can serve this client.
// Invalid version strings are not compatible.
func IsAPICompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return apiConstraint.Check(v)
}

// StatusResponse is the result of the status command.
type StatusResponse struct {
	Server        string `json:"server"`
	Name          string `json:"name"`
	ServerVersion string `json:"server_version"`
	APIVersion    string `json:"api_version"`
	Compatible    bool   `json:"compatible"`
	LoggedIn      bool   `json:"logged_in"`
	Role          string `json:"role,omitempty"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Get server status",
		Long: `Get server status. This command reports the server version, whether its API is
compatible with this CLI and whether a session is stored.

Examples:
  # Get server status
  plantitas status

  # Wait up to 30 seconds for the server to come up
  plantitas status --wait 30s`,
		RunE: getStatus,
	}
	cmd.Flags().Duration("wait", 0, "Keep retrying while the server is unreachable, up to this long")
	return cmd
}

// getStatus handles retrieving server status information
func getStatus(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetDuration("wait")
	s, _, err := sessionManager().Active()
	if err != nil {
		return err
	}

	info, err := fetchServerInfo(cmd.Context(), wait, func(ctx context.Context) (*shopapi.ServerInfo, error) {
		return s.Shop().ServerInfo(ctx)
	})
	if err != nil {
		return fmt.Errorf("unable to reach server %s: %w", GetConfig().GetServerURL(), err)
	}

	status := StatusResponse{
		Server:        GetConfig().GetServerURL(),
		Name:          info.Name,
		ServerVersion: info.Version,
		APIVersion:    info.APIVersion,
		Compatible:    IsAPICompatible(info.APIVersion),
		LoggedIn:      s.LoggedIn(),
		Role:          s.Role(),
	}

	if err := render(cmd, status, func(w output) { printStatusPretty(w, status) }); err != nil {
		return err
	}
	if !status.Compatible {
		return fmt.Errorf("server API %s is not compatible with this CLI (needs ^%s)", info.APIVersion, shopapi.APIVersion)
	}
	return nil
}

// fetchServerInfo calls fetch, retrying network failures for up to wait.
func fetchServerInfo(ctx context.Context, wait time.Duration, fetch func(context.Context) (*shopapi.ServerInfo, error)) (*shopapi.ServerInfo, error) {
	if wait <= 0 {
		return fetch(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	return retry.DoWithData(func() (*shopapi.ServerInfo, error) {
		return fetch(ctx)
	},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(statusPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, pipeline.ErrNetworkFailure)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().Uint("attempt", n+1).Err(err).Msg("server not reachable yet")
		}),
	)
}

// printStatusPretty prints the status information in a human-readable format
func printStatusPretty(w output, status StatusResponse) {
	w.printf("plantitas CLI %s\n", getCLIVersion())
	w.printf("Server:         %s\n", status.Server)
	w.printf("Server Version: %s (%s)\n", status.ServerVersion, status.Name)
	w.printf("API Version:    %s", status.APIVersion)
	if status.Compatible {
		okLabel.Fprintln(w.w, " ✓")
	} else {
		errorLabel.Fprintln(w.w, " incompatible")
	}
	if status.LoggedIn {
		w.printf("Session:        logged in (%s)\n", status.Role)
	} else {
		w.println("Session:        not logged in")
	}
}
