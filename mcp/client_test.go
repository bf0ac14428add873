package mcp

import (
	"context"
	"os"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const stdioHelperEnv = "AGENTFLOW_MCP_STDIO_HELPER"

// TestHelperStdioServer is not a real test. When the helper env var is set
// the test binary re-executes itself as an MCP stdio server, which lets the
// client tests exercise a live transport without external processes.
func TestHelperStdioServer(t *testing.T) {
	if os.Getenv(stdioHelperEnv) != "1" {
		return
	}

	server := mcpserver.NewMCPServer("test-stdio", "1.0.0")
	server.AddTool(mcpgo.NewTool("ping"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "pong"}},
		}, nil
	})
	server.AddTool(mcpgo.NewTool("extra"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "should be filtered"}},
		}, nil
	})

	if err := mcpserver.ServeStdio(server); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func startHelperClient(t *testing.T) *Client {
	t.Helper()
	t.Setenv(stdioHelperEnv, "1")

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	client, err := NewStdioClient(exe, []string{"-test.run", "TestHelperStdioServer"})
	if err != nil {
		t.Fatalf("NewStdioClient error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_Stdio_ListAndCall(t *testing.T) {
	client := startHelperClient(t)

	tools, err := client.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools error: %v", err)
	}
	names := map[string]bool{}
	for _, tl := range tools {
		names[tl.Name] = true
	}
	if !names["ping"] || !names["extra"] {
		t.Fatalf("expected ping and extra, got %v", names)
	}

	result, err := client.CallTool(context.Background(), "ping", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if result == nil || result.IsError {
		t.Fatalf("expected successful result, got %+v", result)
	}
	if text := textContent(result.Content); text != "pong" {
		t.Fatalf("expected pong, got %q", text)
	}
}

func TestToolset_FilterAdmitsSubset(t *testing.T) {
	client := startHelperClient(t)

	toolset, err := NewToolset(client, func(o *ToolsetOptions) {
		o.ToolFilter = []string{"ping"}
	})
	if err != nil {
		t.Fatalf("NewToolset error: %v", err)
	}

	tools, err := toolset.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name() != "ping" {
		t.Fatalf("expected only ping, got %v", tools)
	}

	output, err := tools[0].Call(newTestToolContext(t), map[string]any{})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if output != "pong" {
		t.Fatalf("expected pong, got %v", output)
	}
}

func TestToolset_EmptyFilterAdmitsAll(t *testing.T) {
	client := startHelperClient(t)

	toolset, err := NewToolset(client)
	if err != nil {
		t.Fatalf("NewToolset error: %v", err)
	}

	tools, err := toolset.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected both tools, got %d", len(tools))
	}
}
