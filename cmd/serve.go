package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/databricks"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
	"github.com/databricks-solutions/appbridge/internal/logging"
	"github.com/databricks-solutions/appbridge/internal/server"
	"github.com/databricks-solutions/appbridge/internal/tools/agent_tools"
	"github.com/databricks-solutions/appbridge/internal/tools/workspace_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode     bool
		transport     string
		httpAddr      string
		host          string
		authModeStr   string
		agentEndpoint string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Databricks workspace
tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp

Authentication Modes:
  auto               Detect: delegated when DATABRICKS_APP_NAME is set,
                     developer credentials otherwise
  service-principal  Use the app's own ambient credentials for every request
  delegated          Act on behalf of each caller using the access token the
                     Databricks Apps proxy forwards in X-Forwarded-Access-Token
  developer          Use the local credential chain (databricks CLI profile,
                     DATABRICKS_TOKEN, etc.)

Workspace Configuration:
  --host https://your-workspace.cloud.databricks.com
  OR DATABRICKS_HOST / WORKSPACE_URL env vars

  --agent-endpoint names the model serving endpoint backing the ask_agent
  tool. Can also use AGENT_ENDPOINT_NAME env var.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fall back to environment for workspace configuration
			if host == "" {
				host = os.Getenv("DATABRICKS_HOST")
			}
			if host == "" {
				host = os.Getenv("WORKSPACE_URL")
			}
			if agentEndpoint == "" {
				agentEndpoint = os.Getenv("AGENT_ENDPOINT_NAME")
			}

			metricsConfig := resolveMetricsConfig(
				MetricsConfig{Enabled: metricsEnabled, Addr: metricsAddr},
				cmd.Flags().Changed("metrics-enabled"),
				cmd.Flags().Changed("metrics-addr"),
			)

			return runServe(transport, debugMode, httpAddr, host, authModeStr, agentEndpoint, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (streamable-http transport only)")
	cmd.Flags().StringVar(&host, "host", "", "Databricks workspace URL. Can also use DATABRICKS_HOST or WORKSPACE_URL env vars.")
	cmd.Flags().StringVar(&authModeStr, "auth-mode", "auto", "Authentication mode: auto, service-principal, delegated, or developer")
	cmd.Flags().StringVar(&agentEndpoint, "agent-endpoint", "", "Model serving endpoint for the ask_agent tool. Can also use AGENT_ENDPOINT_NAME env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// resolveMetricsConfig fills in METRICS_ENABLED and METRICS_ADDR from the
// environment for any knob that was not set explicitly on the command line.
// Flags always win over the environment, in both directions.
func resolveMetricsConfig(cfg MetricsConfig, enabledSet, addrSet bool) MetricsConfig {
	if !enabledSet {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				cfg.Enabled = enabled
			}
		}
	}
	if !addrSet {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.Addr = addr
		}
	}
	return cfg
}

func runServe(transport string, debugMode bool, httpAddr, host, authModeStr, agentEndpoint string, metricsConfig MetricsConfig) error {
	logging.Setup(debugMode)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mode, err := auth.ParseMode(authModeStr)
	if err != nil {
		return err
	}

	if host == "" {
		return fmt.Errorf("workspace host is required: set --host, DATABRICKS_HOST, or WORKSPACE_URL")
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Workspace clients: ambient credentials are shared, delegated clients are
	// built per request from the forwarded access token
	factory := databricks.NewFactory(host, mode)

	serverContext := server.NewServerContext(shutdownCtx, factory, agentEndpoint)

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("appbridge", version,
		mcpserver.WithToolCapabilities(true),
	)

	// Log the mode for visibility (only for non-stdio transports)
	if transport != "stdio" {
		slog.Info("starting MCP server",
			logging.AuthMode(string(mode)), logging.Endpoint(agentEndpoint))
	}

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(mcpSrv, serverContext, httpAddr, shutdownCtx, provider)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Workspace",
			register: func() error {
				return workspace_tools.RegisterWorkspaceTools(mcpSrv, ctx)
			},
		},
		{
			name: "Agent",
			register: func() error {
				return agent_tools.RegisterAgentTools(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, addr string, ctx context.Context, instrProvider *instrumentation.Provider) error {
	var metrics *instrumentation.Metrics
	if instrProvider != nil && instrProvider.Enabled() {
		metrics = instrProvider.Metrics()
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Addr:          addr,
		MCPServer:     mcpSrv,
		ServerContext: serverContext,
		Metrics:       metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// Confirm the listener bound before reporting the server as running
	ready := make(chan struct{})
	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.StartWithReadySignal(ready); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ready:
		log.Printf("MCP server listening on %s%s", httpServer.Addr(), server.MCPEndpointPath)
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("HTTP server startup timed out")
	}

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
