package gateway

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// newMCPServer exposes the toolbox through an mcp-go session server
func newMCPServer(name, version string, toolbox *Toolbox) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	for _, t := range toolbox.List() {
		s.AddTool(mcpTool(t), mcpHandler(toolbox, t.Name))
	}
	return s
}

func mcpTool(t Tool) mcp.Tool {
	schema := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{},
	}
	if props, ok := t.InputSchema["properties"].(map[string]any); ok {
		schema.Properties = props
	}
	if required, ok := t.InputSchema["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}

	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

func mcpHandler(toolbox *Toolbox, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := toolbox.Call(withClient(ctx, "sse", ""), name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
