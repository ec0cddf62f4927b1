// Package mcptools exposes the calendar agent over the Model Context
// Protocol, so MCP clients can drive the same query/confirm/cancel workflow
// the HTTP surface offers.
package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calagent/internal/agent"
)

// Register registers the agent tools with the MCP server.
func Register(s *mcpserver.MCPServer, a *agent.Agent) {
	queryTool := mcp.NewTool("calendar_query",
		mcp.WithDescription("Ask the calendar agent something in natural language, e.g. "+
			"'what's on my calendar today?' or 'schedule lunch with Sam tomorrow at noon'. "+
			"Mutating requests return an action_id that must be confirmed with calendar_confirm "+
			"before anything changes."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The natural language request"),
		),
	)

	s.AddTool(queryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleQuery(ctx, request, a)
	})

	confirmTool := mcp.NewTool("calendar_confirm",
		mcp.WithDescription("Confirm a pending calendar action by id, executing it"),
		mcp.WithString("action_id",
			mcp.Required(),
			mcp.Description("The action id returned by calendar_query"),
		),
	)

	s.AddTool(confirmTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleConfirm(ctx, request, a)
	})

	cancelTool := mcp.NewTool("calendar_cancel",
		mcp.WithDescription("Cancel a pending calendar action by id without executing it"),
		mcp.WithString("action_id",
			mcp.Required(),
			mcp.Description("The action id returned by calendar_query"),
		),
	)

	s.AddTool(cancelTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCancel(ctx, request, a)
	})
}

func handleQuery(ctx context.Context, request mcp.CallToolRequest, a *agent.Agent) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	resp, _ := a.HandleQuery(ctx, query)
	if resp.Type == "error" {
		return mcp.NewToolResultError(resp.Message), nil
	}

	text := resp.Message
	if resp.RequiresConfirmation {
		text += "\n\nAction ID: " + resp.ActionID
	}
	return mcp.NewToolResultText(text), nil
}

func handleConfirm(ctx context.Context, request mcp.CallToolRequest, a *agent.Agent) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	actionID, ok := args["action_id"].(string)
	if !ok || actionID == "" {
		return mcp.NewToolResultError("action_id is required"), nil
	}

	resp, _ := a.HandleConfirm(ctx, actionID)
	if !resp.Success {
		return mcp.NewToolResultError(resp.Message), nil
	}
	return mcp.NewToolResultText(resp.Message), nil
}

func handleCancel(ctx context.Context, request mcp.CallToolRequest, a *agent.Agent) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	actionID, ok := args["action_id"].(string)
	if !ok || actionID == "" {
		return mcp.NewToolResultError("action_id is required"), nil
	}

	resp, _ := a.HandleCancel(ctx, actionID)
	if !resp.Success {
		return mcp.NewToolResultError(resp.Message), nil
	}
	return mcp.NewToolResultText(resp.Message), nil
}
