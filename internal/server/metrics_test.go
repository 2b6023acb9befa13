package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/databricks-solutions/appbridge/internal/instrumentation"
)

func newEnabledProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()

	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestNewMetricsServerValidation(t *testing.T) {
	_, err := NewMetricsServer(MetricsServerConfig{Addr: ":9090"})
	if err == nil {
		t.Error("expected error for missing instrumentation provider")
	}

	disabled, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create disabled provider: %v", err)
	}
	_, err = NewMetricsServer(MetricsServerConfig{
		Addr:                    ":9090",
		InstrumentationProvider: disabled,
	})
	if err == nil {
		t.Error("expected error for disabled instrumentation provider")
	}
}

func TestNewMetricsServerDefaultAddr(t *testing.T) {
	s, err := NewMetricsServer(MetricsServerConfig{InstrumentationProvider: newEnabledProvider(t)})
	if err != nil {
		t.Fatalf("NewMetricsServer() error = %v", err)
	}
	if s.Addr() != DefaultMetricsAddr {
		t.Errorf("Addr() = %q, want %q", s.Addr(), DefaultMetricsAddr)
	}
}

func TestMetricsServerServesMetrics(t *testing.T) {
	s, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:0",
		InstrumentationProvider: newEnabledProvider(t),
	})
	if err != nil {
		t.Fatalf("NewMetricsServer() error = %v", err)
	}

	ready := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
	case err := <-serveErr:
		t.Fatalf("metrics server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for metrics server to start")
	}

	// The kernel picked the port; probe through the handler directly.
	for _, tt := range []struct {
		path      string
		wantEmpty bool
	}{
		{path: "/metrics"},
		{path: "/healthz"},
	} {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, http.StatusOK)
		}
		if rec.Body.Len() == 0 {
			t.Errorf("GET %s returned empty body", tt.path)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Serve returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for metrics server to stop")
	}
}
