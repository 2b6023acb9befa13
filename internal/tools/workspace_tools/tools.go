package workspace_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/instrumentation"
	"github.com/databricks-solutions/appbridge/internal/server"
	"github.com/databricks-solutions/appbridge/internal/tools/common"
)

// healthStatus is the payload of the health tool.
type healthStatus struct {
	Status   string `json:"status"`
	AuthMode string `json:"auth_mode"`
}

// RegisterWorkspaceTools registers workspace identity and health tools with the MCP server
func RegisterWorkspaceTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	healthTool := mcp.NewTool("health",
		mcp.WithDescription("Check that the MCP server is running and report its credential mode"),
	)

	s.AddTool(healthTool, common.InstrumentedToolHandler("health", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleHealth(ctx, request, sc)
		}))

	getCurrentUserTool := mcp.NewTool("get_current_user",
		mcp.WithDescription("Get the Databricks identity backing this request. In delegated mode this is the calling user; otherwise it is the app's own identity."),
	)

	s.AddTool(getCurrentUserTool, common.InstrumentedToolHandlerWithOperation("get_current_user", "current_user.me", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCurrentUser(ctx, request, sc)
		}))

	return nil
}

func handleHealth(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(healthStatus{
		Status:   "healthy",
		AuthMode: string(sc.Mode()),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode health status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func handleGetCurrentUser(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	w, err := sc.WorkspaceForRequest(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrMissingDelegatedToken) {
			return mcp.NewToolResultError("No delegated access token on this request. When running behind Databricks Apps the proxy forwards the caller's token automatically; direct calls must send the " + auth.HeaderForwardedAccessToken + " header."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve workspace client: %v", err)), nil
	}

	user, err := w.CurrentUser(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get current user: %v", err)), nil
	}

	// Identity resolutions get a full audit record naming the resolved user.
	if al := sc.AuditLogger(); al != nil {
		al.LogToolAudit(instrumentation.NewToolInvocation("get_current_user").
			WithSpanContext(ctx).
			WithAuthMode(string(sc.Mode())).
			WithUser(user.UserName).
			CompleteSuccess())
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode user: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
