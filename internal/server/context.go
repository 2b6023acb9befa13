package server

import (
	"context"
	"errors"
	"sync"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/databricks"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
)

// WorkspaceProvider hands out workspace clients for tool invocations.
type WorkspaceProvider interface {
	// Mode reports the credential resolution mode.
	Mode() auth.Mode

	// WorkspaceForRequest returns the workspace client for one invocation.
	// In delegated mode the request context must carry the forwarded token.
	WorkspaceForRequest(ctx context.Context) (databricks.Workspace, error)
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx           context.Context
	cancel        context.CancelFunc
	workspaces    WorkspaceProvider
	agentEndpoint string
	metrics       *instrumentation.Metrics
	auditLogger   *instrumentation.AuditLogger
	mu            sync.RWMutex
	shutdown      bool
}

// NewServerContext creates a new server context. agentEndpoint may be empty;
// the ask_agent tool reports a configuration error when it is unset.
func NewServerContext(ctx context.Context, workspaces WorkspaceProvider, agentEndpoint string) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:           shutdownCtx,
		cancel:        cancel,
		workspaces:    workspaces,
		agentEndpoint: agentEndpoint,
		shutdown:      false,
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Mode reports the credential resolution mode the server runs in.
func (sc *ServerContext) Mode() auth.Mode {
	return sc.workspaces.Mode()
}

// WorkspaceForRequest returns the workspace client for one tool invocation.
// In delegated mode each resolution outcome is recorded so missing or invalid
// forwarded tokens show up in metrics.
func (sc *ServerContext) WorkspaceForRequest(ctx context.Context) (databricks.Workspace, error) {
	w, err := sc.workspaces.WorkspaceForRequest(ctx)

	if sc.Mode() == auth.ModeDelegated {
		if m := sc.Metrics(); m != nil {
			switch {
			case err == nil:
				m.RecordDelegatedAuthResolution(ctx, instrumentation.AuthResultSuccess)
			case errors.Is(err, auth.ErrMissingDelegatedToken):
				m.RecordDelegatedAuthResolution(ctx, instrumentation.AuthResultMissing)
			default:
				m.RecordDelegatedAuthResolution(ctx, instrumentation.AuthResultFailure)
			}
		}
	}

	return w, err
}

// AgentEndpoint returns the configured serving endpoint name, if any.
func (sc *ServerContext) AgentEndpoint() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.agentEndpoint
}

// SetMetrics sets the metrics recorder for tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil if instrumentation is disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger for tool invocations.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, or nil if audit logging is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
