package cli

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plantitas/plantitas/internal/client/credentials"
	"github.com/plantitas/plantitas/internal/session"
	"github.com/spf13/cobra"
)

// EnvPassword supplies the login password when --password is not given.
const EnvPassword = "PLANTITAS_PASSWORD"

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Authenticate with the Plantitas server",
		Long: `Login to the Plantitas server to obtain an access and a refresh token.

Without --remember the session is kept in a temporary directory and is forgotten on
reboot. With --remember it is kept in the configuration directory until logout.

The password is read from --password, then from PLANTITAS_PASSWORD, then from the first
line of standard input.

Example:
  plantitas login fran --remember
  echo "$PASS" | plantitas login vale`,
		Args: cobra.ExactArgs(1),
		RunE: runLogin,
	}

	cmd.Flags().StringP("password", "p", "", "Password for authentication")
	cmd.Flags().Bool("remember", false, "Keep the session until logout")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	remember, _ := cmd.Flags().GetBool("remember")

	_, me, err := sessionManager().Login(cmd.Context(), username, password, remember)
	if err != nil {
		return err
	}

	scope := credentials.ScopeSession
	if remember {
		scope = credentials.ScopeDurable
	}
	return render(cmd, map[string]any{"result": 1, "user": me, "scope": scope}, func(w output) {
		okLabel.Fprintf(w.w, "✓ Logged in as %s (%s)\n", me.Username, me.Role)
		if !remember {
			w.println("Session ends on reboot. Use --remember to keep it.")
		}
	})
}

func readPassword(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv(EnvPassword); p != "" {
		return p, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", errors.New("no password provided: use --password, PLANTITAS_PASSWORD or standard input")
		}
		return "", errors.New("password cannot be empty")
	}
	return line, nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sessionManager().Logout(); err != nil {
				return err
			}
			return render(cmd, map[string]int{"result": 1}, func(w output) {
				okLabel.Fprintln(w.w, "✓ Logged out")
			})
		},
	}
}

// whoami is the result of the whoami command.
type whoami struct {
	Username  string            `json:"username"`
	Email     string            `json:"email,omitempty"`
	Role      string            `json:"role"`
	Groups    []string          `json:"groups"`
	Scope     credentials.Scope `json:"scope"`
	ExpiresAt *time.Time        `json:"access_expires_at,omitempty"`
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Long: `Show the logged-in user as reported by the server. An expired access token is
refreshed first. If the session cannot be restored it is cleared.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, scope, err := sessionManager().Active()
			if err != nil {
				return err
			}
			me, err := s.Current(cmd.Context())
			if err != nil {
				return err
			}
			res := whoami{
				Username: me.Username,
				Email:    me.Email,
				Role:     me.Role,
				Groups:   me.Groups,
				Scope:    scope,
			}
			if exp, ok := accessExpiry(s); ok {
				res.ExpiresAt = &exp
			}
			return render(cmd, res, func(w output) {
				w.printf("User:   %s\n", res.Username)
				w.printf("Role:   %s\n", res.Role)
				w.printf("Scope:  %s\n", res.Scope)
				if res.ExpiresAt != nil {
					w.printf("Access token expires: %s\n", res.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))
				}
			})
		},
	}
}

// accessExpiry reads the expiry of the stored access token. The token is not verified.
func accessExpiry(s *session.Session) (time.Time, bool) {
	access := s.Pipeline().Credentials().Access()
	if access == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
