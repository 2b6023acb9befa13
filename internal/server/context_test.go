package server

import (
	"context"
	"errors"
	"testing"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/databricks"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
)

func TestWorkspaceForRequestDelegatedMissingToken(t *testing.T) {
	sc := newTestServerContext(t)

	_, err := sc.WorkspaceForRequest(context.Background())
	if !errors.Is(err, auth.ErrMissingDelegatedToken) {
		t.Fatalf("WorkspaceForRequest() error = %v, want ErrMissingDelegatedToken", err)
	}
}

func TestWorkspaceForRequestRecordsResolution(t *testing.T) {
	ctx := context.Background()

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	factory := databricks.NewFactory("https://ws.example.com", auth.ModeDelegated)
	sc := NewServerContext(ctx, factory, "agents_demo")
	t.Cleanup(func() { _ = sc.Shutdown() })
	sc.SetMetrics(provider.Metrics())

	// Missing token: the error still propagates, the resolution is counted.
	if _, err := sc.WorkspaceForRequest(ctx); !errors.Is(err, auth.ErrMissingDelegatedToken) {
		t.Fatalf("WorkspaceForRequest() error = %v, want ErrMissingDelegatedToken", err)
	}

	// Token present: resolution succeeds and is counted.
	tokenCtx := auth.WithDelegatedToken(ctx, "dapi-test-token")
	w, err := sc.WorkspaceForRequest(tokenCtx)
	if err != nil {
		t.Fatalf("WorkspaceForRequest() with token error = %v", err)
	}
	if w == nil {
		t.Fatal("expected workspace client")
	}
}

func TestServerContextAccessors(t *testing.T) {
	sc := newTestServerContext(t)

	if sc.Mode() != auth.ModeDelegated {
		t.Errorf("Mode() = %q, want %q", sc.Mode(), auth.ModeDelegated)
	}
	if sc.AgentEndpoint() != "agents_demo" {
		t.Errorf("AgentEndpoint() = %q, want %q", sc.AgentEndpoint(), "agents_demo")
	}
	if sc.Metrics() != nil {
		t.Error("expected nil metrics before SetMetrics")
	}
	if sc.AuditLogger() != nil {
		t.Error("expected nil audit logger before SetAuditLogger")
	}
}
