package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/databricks"
	"github.com/databricks-solutions/appbridge/internal/logging"
)

func newQueryCmd() *cobra.Command {
	var (
		debugMode bool
		host      string
		token     string
		endpoint  string
	)

	cmd := &cobra.Command{
		Use:   "query [prompt...]",
		Short: "Query a model serving endpoint directly",
		Long: `Send a prompt to a Databricks model serving endpoint and print the answer.

Intended for development: it exercises the same workspace client the ask_agent
tool uses, without going through an MCP client. With --token the given token
authenticates the call; otherwise the developer's local credential chain
(databricks CLI profile, DATABRICKS_TOKEN, etc.) is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(debugMode)

			if host == "" {
				host = os.Getenv("DATABRICKS_HOST")
			}
			if host == "" {
				host = os.Getenv("WORKSPACE_URL")
			}
			if host == "" {
				return fmt.Errorf("workspace host is required: set --host, DATABRICKS_HOST, or WORKSPACE_URL")
			}
			if endpoint == "" {
				endpoint = os.Getenv("AGENT_ENDPOINT_NAME")
			}
			if endpoint == "" {
				return fmt.Errorf("serving endpoint is required: set --endpoint or AGENT_ENDPOINT_NAME")
			}
			if token == "" {
				token = os.Getenv("DATABRICKS_TOKEN")
			}

			var (
				ws  databricks.Workspace
				err error
			)
			if token != "" {
				ws, err = databricks.NewTokenWorkspace(host, token)
			} else {
				ws, err = databricks.NewFactory(host, auth.ModeDeveloper).WorkspaceForRequest(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to create workspace client: %w", err)
			}

			prompt := strings.Join(args, " ")
			answer, err := ws.QueryAgent(cmd.Context(), endpoint, prompt)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&host, "host", "", "Databricks workspace URL. Can also use DATABRICKS_HOST or WORKSPACE_URL env vars.")
	cmd.Flags().StringVar(&token, "token", "", "Access token for the call. Can also use DATABRICKS_TOKEN env var.")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Model serving endpoint name. Can also use AGENT_ENDPOINT_NAME env var.")

	return cmd
}
