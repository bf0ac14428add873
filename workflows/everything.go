package workflows

import (
	"context"
	"fmt"

	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// ToolSource lists remote tools ready for registration. *mcp.Toolset
// satisfies it.
type ToolSource interface {
	Tools(ctx context.Context) ([]tool.Tool, error)
}

// NewEverythingAgent builds an assistant backed by a remote tool server,
// typically the MCP "everything" demo server with its getTinyImage tool.
// The source is listed once at construction; the agent holds adapters that
// proxy calls back to the server for the life of the session.
func NewEverythingAgent(ctx context.Context, llm model.Model, source ToolSource) (*agent.ModelAgent, error) {
	if source == nil {
		return nil, fmt.Errorf("tool source is required")
	}

	tools, err := source.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote tools: %w", err)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("tool source returned no tools")
	}

	a := agent.NewModelAgent("image_agent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText("Use the remote image tool to generate images when asked.")
		o.AllowTransfer = false
	})
	a.RegisterTools(tools...)
	return a, nil
}
