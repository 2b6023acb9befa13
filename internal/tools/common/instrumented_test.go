package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/databricks"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
	"github.com/databricks-solutions/appbridge/internal/server"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	factory := databricks.NewFactory("https://ws.example.com", auth.ModeServicePrincipal)
	sc := server.NewServerContext(context.Background(), factory, "agents_demo")
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestInstrumentedToolHandler_NoInstrumentation(t *testing.T) {
	sc := newTestServerContext(t)

	called := false
	handler := InstrumentedToolHandler("health", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !called {
		t.Error("wrapped handler was not called")
	}
	if result == nil || result.IsError {
		t.Error("expected success result")
	}
}

func TestInstrumentedToolHandler_AuditsFailure(t *testing.T) {
	sc := newTestServerContext(t)

	var buf bytes.Buffer
	sc.SetAuditLogger(instrumentation.NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	handler := InstrumentedToolHandler("ask_agent", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("endpoint unavailable")
	})

	_, err := handler(context.Background(), mcp.CallToolRequest{})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}

	out := buf.String()
	if !strings.Contains(out, "tool_failed") {
		t.Errorf("expected tool_failed audit entry, got %q", out)
	}
	if !strings.Contains(out, "ask_agent") {
		t.Errorf("expected tool name in audit entry, got %q", out)
	}
	if !strings.Contains(out, string(auth.ModeServicePrincipal)) {
		t.Errorf("expected auth mode in audit entry, got %q", out)
	}
}

func TestInstrumentedToolHandler_ErrorResultIsFailure(t *testing.T) {
	sc := newTestServerContext(t)

	var buf bytes.Buffer
	sc.SetAuditLogger(instrumentation.NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	// Tool errors surfaced as results (not Go errors) still count as failures.
	handler := InstrumentedToolHandler("get_current_user", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("no delegated token"), nil
	})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(buf.String(), "tool_failed") {
		t.Errorf("expected tool_failed audit entry, got %q", buf.String())
	}
}

func TestInstrumentedToolHandlerWithOperation(t *testing.T) {
	sc := newTestServerContext(t)

	var buf bytes.Buffer
	sc.SetAuditLogger(instrumentation.NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	handler := InstrumentedToolHandlerWithOperation("ask_agent", "serving.query", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("answer"), nil
	})

	if _, err := handler(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "tool_executed") {
		t.Errorf("expected tool_executed audit entry, got %q", out)
	}
	if !strings.Contains(out, "serving.query") {
		t.Errorf("expected operation in audit entry, got %q", out)
	}
	if !strings.Contains(out, "agents_demo") {
		t.Errorf("expected endpoint in audit entry, got %q", out)
	}
}
