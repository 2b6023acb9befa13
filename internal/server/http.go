package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
)

const (
	// MCPEndpointPath is the path the streamable HTTP transport is served on.
	MCPEndpointPath = "/mcp"

	// DefaultHTTPReadHeaderTimeout bounds header reads on the main server.
	DefaultHTTPReadHeaderTimeout = 10 * time.Second

	// DefaultHTTPIdleTimeout is the idle timeout for the main server.
	// Streamable HTTP responses can be long-lived, so there is no write timeout.
	DefaultHTTPIdleTimeout = 120 * time.Second
)

// HTTPServerConfig holds configuration for the main HTTP server.
type HTTPServerConfig struct {
	// Addr is the address to bind to (e.g., ":8080").
	Addr string

	// MCPServer is the MCP server to expose over streamable HTTP.
	MCPServer *mcpserver.MCPServer

	// ServerContext backs the health endpoints.
	ServerContext *ServerContext

	// Metrics, when set, enables HTTP request instrumentation.
	Metrics *instrumentation.Metrics
}

// HTTPServer hosts the MCP streamable HTTP transport plus health endpoints.
// Every request to the MCP endpoint has the forwarded delegated access token
// bound onto its context before the MCP handler runs.
type HTTPServer struct {
	httpServer *http.Server
	addr       string
	health     *HealthChecker
}

// NewHTTPServer creates the main HTTP server.
func NewHTTPServer(config HTTPServerConfig) (*HTTPServer, error) {
	if config.MCPServer == nil {
		return nil, fmt.Errorf("MCP server is required")
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	streamable := mcpserver.NewStreamableHTTPServer(config.MCPServer,
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithHTTPContextFunc(auth.HTTPContextFunc),
	)

	health := NewHealthChecker(config.ServerContext)

	mux := http.NewServeMux()
	mux.Handle(MCPEndpointPath, streamable)
	health.RegisterHealthEndpoints(mux)

	var handler http.Handler = mux
	if config.Metrics != nil {
		handler = instrumentHTTP(config.Metrics, mux)
	}

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              config.Addr,
			Handler:           handler,
			ReadHeaderTimeout: DefaultHTTPReadHeaderTimeout,
			IdleTimeout:       DefaultHTTPIdleTimeout,
		},
		addr:   config.Addr,
		health: health,
	}, nil
}

// Start starts the HTTP server in a blocking manner.
func (s *HTTPServer) Start() error {
	slog.Info("starting HTTP server",
		"addr", s.addr,
		"mcp_endpoint", MCPEndpointPath)
	return s.httpServer.ListenAndServe()
}

// StartWithReadySignal starts the server and closes ready once the listener
// is bound, so callers can fail fast on bind errors.
func (s *HTTPServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind HTTP server to %s: %w", s.addr, err)
	}

	slog.Info("starting HTTP server",
		"addr", s.addr,
		"mcp_endpoint", MCPEndpointPath)
	close(ready)
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server. The health checker is
// flipped to not-ready first so load balancers drain traffic.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.addr
}

// HealthChecker returns the server's health checker.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.health
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrumentHTTP wraps a handler with request counting and duration metrics.
func instrumentHTTP(metrics *instrumentation.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Streamable HTTP requests are long-lived; count them while in flight.
		if r.URL.Path == MCPEndpointPath {
			metrics.IncrementActiveSessions(r.Context())
			defer metrics.DecrementActiveSessions(r.Context())
		}

		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
