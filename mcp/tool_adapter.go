package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/tool"
)

// ToolCaller abstracts remote execution so adapters can be tested without a
// live server.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes one remote MCP tool through the local tool interface.
// The server's declared schema drives both the model-facing definition and
// required-argument validation; results come back as structured content when
// the server provides it, otherwise as concatenated text.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
}

// NewToolAdapter builds a tool.Tool backed by an MCP tool definition and caller.
func NewToolAdapter(t mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if t.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ToolAdapter{tool: t, caller: caller}, nil
}

// Name returns the remote tool name.
func (t *ToolAdapter) Name() string { return t.tool.Name }

// Description returns the server-declared description.
func (t *ToolAdapter) Description() string {
	if t.tool.Description != "" {
		return t.tool.Description
	}
	return fmt.Sprintf("Remote tool %q provided by an MCP server.", t.tool.Name)
}

// Parameters returns the server's input schema as a JSON schema map. A raw
// schema, when the server supplied one, wins over the structured form.
func (t *ToolAdapter) Parameters() map[string]any {
	raw := t.tool.RawInputSchema
	if len(raw) == 0 {
		encoded, err := json.Marshal(t.tool.InputSchema)
		if err != nil {
			return map[string]any{"type": "object"}
		}
		raw = encoded
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded == nil {
		return map[string]any{"type": "object"}
	}
	if _, ok := decoded["type"]; !ok {
		decoded["type"] = "object"
	}
	return decoded
}

// Call invokes the remote tool with the parsed arguments.
func (t *ToolAdapter) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	for _, key := range t.tool.InputSchema.Required {
		if _, ok := args[key]; !ok {
			return nil, tool.NewToolError(t.tool.Name, fmt.Sprintf("missing required field %q", key), "VALIDATION_ERROR")
		}
	}

	toolCtx.LogDebug("mcp.tool.call", "tool", t.tool.Name, "function_call_id", toolCtx.FunctionCallID())

	result, err := t.caller.CallTool(toolCtx.Context(), t.tool.Name, args)
	if err != nil {
		return nil, tool.NewToolError(t.tool.Name, err.Error(), "MCP_ERROR")
	}

	return resultToOutput(t.tool.Name, result)
}

func resultToOutput(name string, result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, tool.NewToolError(name, "empty result from server", "MCP_ERROR")
	}

	if result.IsError {
		return nil, tool.NewToolError(name, textContent(result.Content), "MCP_ERROR")
	}

	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}

	if text := textContent(result.Content); text != "" {
		return text, nil
	}

	// Non-text content (images, resources) is passed through whole; the
	// function response record serializes it for the model.
	return result, nil
}

func textContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ tool.Tool = (*ToolAdapter)(nil)
