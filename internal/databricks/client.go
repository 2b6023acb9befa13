package databricks

import (
	"context"
	"fmt"
	"sync"

	sdk "github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/serving"
	"go.opentelemetry.io/otel/attribute"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
)

// User is the subset of the workspace identity surfaced to tools.
type User struct {
	DisplayName string `json:"display_name"`
	UserName    string `json:"user_name"`
	Active      bool   `json:"active"`
}

// Workspace is the operation surface tools need from a Databricks workspace.
type Workspace interface {
	// CurrentUser returns the identity the workspace resolves for the
	// credential backing this client.
	CurrentUser(ctx context.Context) (*User, error)

	// QueryAgent sends a single user prompt to a serving endpoint and
	// returns the first choice's message content.
	QueryAgent(ctx context.Context, endpoint, prompt string) (string, error)
}

// workspaceClient adapts the SDK client to the Workspace interface.
type workspaceClient struct {
	w *sdk.WorkspaceClient
}

func (c *workspaceClient) CurrentUser(ctx context.Context) (*User, error) {
	ctx, span := instrumentation.StartDatabricksSpan(ctx, "current_user.me")
	defer span.End()

	me, err := c.w.CurrentUser.Me(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	instrumentation.SetSpanSuccess(span)
	return &User{
		DisplayName: me.DisplayName,
		UserName:    me.UserName,
		Active:      me.Active,
	}, nil
}

func (c *workspaceClient) QueryAgent(ctx context.Context, endpoint, prompt string) (string, error) {
	ctx, span := instrumentation.StartDatabricksSpan(ctx, "serving.query",
		attribute.String(instrumentation.SpanAttrEndpoint, endpoint))
	defer span.End()

	resp, err := c.w.ServingEndpoints.Query(ctx, serving.QueryEndpointInput{
		Name: endpoint,
		Messages: []serving.ChatMessage{
			{Role: serving.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", fmt.Errorf("failed to query serving endpoint %q: %w", endpoint, err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("serving endpoint %q returned no choices", endpoint)
		instrumentation.SetSpanError(span, err)
		return "", err
	}

	instrumentation.SetSpanSuccess(span)
	return resp.Choices[0].Message.Content, nil
}

// NewTokenWorkspace returns a Workspace backed by an explicit access token.
// The auth type is pinned so the SDK never falls back to ambient credentials
// when the token turns out to be invalid.
func NewTokenWorkspace(host, token string) (Workspace, error) {
	w, err := sdk.NewWorkspaceClient(&sdk.Config{
		Host:     host,
		Token:    token,
		AuthType: "pat",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace client: %w", err)
	}
	return &workspaceClient{w: w}, nil
}

// newAmbientWorkspace returns a Workspace using the SDK's default credential
// chain (app service principal in Apps, profile or env vars locally).
func newAmbientWorkspace(host string) (Workspace, error) {
	w, err := sdk.NewWorkspaceClient(&sdk.Config{Host: host})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace client: %w", err)
	}
	return &workspaceClient{w: w}, nil
}

// Factory hands out Workspace clients according to the resolved auth mode.
type Factory struct {
	host string
	mode auth.Mode

	// Ambient-credential clients are process-wide; only delegated clients
	// are per request.
	once    sync.Once
	ambient Workspace
	initErr error
}

// NewFactory returns a Factory for the given workspace host and auth mode.
func NewFactory(host string, mode auth.Mode) *Factory {
	return &Factory{host: host, mode: mode}
}

// Mode reports the credential resolution mode the factory was built with.
func (f *Factory) Mode() auth.Mode { return f.mode }

// WorkspaceForRequest returns the Workspace to use for one tool invocation.
// In delegated mode the caller's forwarded token must be present on ctx;
// its absence is auth.ErrMissingDelegatedToken.
func (f *Factory) WorkspaceForRequest(ctx context.Context) (Workspace, error) {
	switch f.mode {
	case auth.ModeDelegated:
		token, ok := auth.DelegatedTokenFromContext(ctx)
		if !ok {
			return nil, auth.ErrMissingDelegatedToken
		}
		return NewTokenWorkspace(f.host, token)
	default:
		f.once.Do(func() {
			f.ambient, f.initErr = newAmbientWorkspace(f.host)
		})
		return f.ambient, f.initErr
	}
}
