package databricks

import (
	"context"
	"errors"
	"testing"

	"github.com/databricks-solutions/appbridge/internal/auth"
)

func TestFactoryMode(t *testing.T) {
	f := NewFactory("https://ws.example.com", auth.ModeDelegated)
	if f.Mode() != auth.ModeDelegated {
		t.Errorf("Mode() = %q, want %q", f.Mode(), auth.ModeDelegated)
	}
}

func TestWorkspaceForRequestDelegatedMissingToken(t *testing.T) {
	f := NewFactory("https://ws.example.com", auth.ModeDelegated)

	// A request context without a forwarded token must fail before any
	// client construction or network activity.
	w, err := f.WorkspaceForRequest(context.Background())
	if !errors.Is(err, auth.ErrMissingDelegatedToken) {
		t.Fatalf("WorkspaceForRequest() error = %v, want ErrMissingDelegatedToken", err)
	}
	if w != nil {
		t.Error("WorkspaceForRequest() returned a workspace alongside the error")
	}
}

func TestWorkspaceForRequestDelegatedWithToken(t *testing.T) {
	f := NewFactory("https://ws.example.com", auth.ModeDelegated)

	ctx := auth.WithDelegatedToken(context.Background(), "dapi-test-token")
	w, err := f.WorkspaceForRequest(ctx)
	if err != nil {
		t.Fatalf("WorkspaceForRequest() error = %v", err)
	}
	if w == nil {
		t.Fatal("WorkspaceForRequest() returned nil workspace")
	}
}

func TestNewTokenWorkspace(t *testing.T) {
	w, err := NewTokenWorkspace("https://ws.example.com", "dapi-test-token")
	if err != nil {
		t.Fatalf("NewTokenWorkspace() error = %v", err)
	}
	if w == nil {
		t.Fatal("NewTokenWorkspace() returned nil workspace")
	}
}
