package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"recruitcrm-mcp/internal/tools"
)

// newMCPServer registers every catalog tool on an MCP server shared by the SSE and
// streamable HTTP transports.
func newMCPServer(name, version string, dispatcher *tools.Dispatcher) (*mcpserver.MCPServer, error) {
	s := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	for _, d := range dispatcher.Catalog().All() {
		schema, err := d.InputSchemaJSON()
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", d.Name, err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(d.Name, d.Description, schema), toolHandler(d.Name, dispatcher))
	}
	return s, nil
}

func toolHandler(name string, dispatcher *tools.Dispatcher) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := dispatcher.Invoke(ctx, tools.Invocation{
			ID:        newInvocationID(),
			Tool:      name,
			Arguments: req.GetArguments(),
		})
		return callToolResult(res), nil
	}
}

// callToolResult carries the payload as text content and the full result as structured content.
func callToolResult(res tools.Result) *mcp.CallToolResult {
	text := string(res.Payload)
	if !res.Success {
		text = res.Error
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(text)},
		StructuredContent: res,
		IsError:           !res.Success,
	}
}
