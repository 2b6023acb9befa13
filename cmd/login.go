package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/databricks-solutions/appbridge/internal/auth/u2m"
	"github.com/databricks-solutions/appbridge/internal/logging"
)

func newLoginCmd() *cobra.Command {
	var (
		debugMode bool
		host      string
		clientID  string
		scopes    []string
		port      int
		timeout   time.Duration
		authURL   string
		tokenURL  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a Databricks workspace interactively",
		Long: `Run an interactive OAuth authorization-code login against a Databricks
workspace and print the resulting token as JSON on stdout.

The flow opens the system browser for consent and listens for the provider
redirect on a fixed loopback port. The port must match the redirect URI
registered for the OAuth client, so a busy port is a hard error rather than
a reason to pick another one.

Progress messages go to stderr; stdout carries only the token JSON, so the
output can be piped:

  appbridge login --host https://my-workspace.cloud.databricks.com | jq -r .access_token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(debugMode)

			if host == "" {
				host = os.Getenv("DATABRICKS_HOST")
			}
			if host == "" {
				host = os.Getenv("WORKSPACE_URL")
			}

			authorizer, err := u2m.New(u2m.Config{
				Host:         host,
				ClientID:     clientID,
				Scopes:       scopes,
				RedirectPort: port,
				Timeout:      timeout,
				AuthURL:      authURL,
				TokenURL:     tokenURL,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			token, err := authorizer.Authorize(ctx)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			slog.Info("login succeeded", logging.Operation("login"), "host", host)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(token)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&host, "host", "", "Databricks workspace URL. Can also use DATABRICKS_HOST or WORKSPACE_URL env vars.")
	cmd.Flags().StringVar(&clientID, "client-id", u2m.DefaultClientID, "OAuth public client ID")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{"all-apis", "offline_access"}, "OAuth scopes to request")
	cmd.Flags().IntVar(&port, "port", u2m.DefaultRedirectPort, "Loopback port for the OAuth redirect. Must match the client's registered redirect URI.")
	cmd.Flags().DurationVar(&timeout, "timeout", u2m.DefaultTimeout, "How long to wait for the browser consent to complete")
	cmd.Flags().StringVar(&authURL, "auth-url", "", "Override the authorization endpoint derived from the host")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "Override the token endpoint derived from the host")

	return cmd
}
