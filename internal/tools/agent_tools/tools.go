package agent_tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/databricks-solutions/appbridge/internal/auth"
	"github.com/databricks-solutions/appbridge/internal/logging"
	"github.com/databricks-solutions/appbridge/internal/server"
	"github.com/databricks-solutions/appbridge/internal/tools/common"
)

// RegisterAgentTools registers agent query tools with the MCP server
func RegisterAgentTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	askAgentTool := mcp.NewTool("ask_agent",
		mcp.WithDescription("Send a prompt to the configured Databricks model serving endpoint and return the agent's answer"),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question or instruction to send to the agent"),
		),
	)

	s.AddTool(askAgentTool, common.InstrumentedToolHandlerWithOperation("ask_agent", "serving.query", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAskAgent(ctx, request, sc)
		}))

	return nil
}

func handleAskAgent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	prompt, ok := args["prompt"].(string)
	if !ok || prompt == "" {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	endpoint := sc.AgentEndpoint()
	if endpoint == "" {
		return mcp.NewToolResultError("No serving endpoint configured. Set --agent-endpoint or the AGENT_ENDPOINT_NAME environment variable."), nil
	}

	w, err := sc.WorkspaceForRequest(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrMissingDelegatedToken) {
			return mcp.NewToolResultError("No delegated access token on this request. When running behind Databricks Apps the proxy forwards the caller's token automatically; direct calls must send the " + auth.HeaderForwardedAccessToken + " header."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve workspace client: %v", err)), nil
	}

	answer, err := w.QueryAgent(ctx, endpoint, prompt)
	if err != nil {
		slog.Warn("agent query failed",
			logging.Tool("ask_agent"), logging.Endpoint(endpoint), logging.Err(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to query agent: %v", err)), nil
	}

	slog.Debug("agent query completed",
		logging.Tool("ask_agent"), logging.Endpoint(endpoint), logging.Status(logging.StatusSuccess))
	return mcp.NewToolResultText(answer), nil
}
