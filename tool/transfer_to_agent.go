package tool

import (
	"errors"

	"github.com/agentflow/agentflow/core"
)

// transferTool hands the conversation to a named sub-agent. Calling it stages
// a transfer action on the tool context; the flow performs the handoff after
// the response event is emitted.
type transferTool struct{}

// NewTransferToAgentTool returns the built-in transfer_to_agent control tool.
func NewTransferToAgentTool() Tool { return transferTool{} }

func (transferTool) Name() string { return "transfer_to_agent" }

func (transferTool) Description() string {
	return "Hand the conversation to another agent by name. Use when that agent is better suited to continue."
}

func (transferTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{"type": "string", "description": "Name of the agent to receive control"},
		},
		"required": []string{"agent"},
	}
}

func (transferTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	target, _ := args["agent"].(string)
	if target == "" {
		return nil, errors.New("transfer_to_agent requires a non-empty 'agent' argument")
	}

	tc.TransferToAgent(target)
	return map[string]any{"transferred": true, "agent": target}, nil
}
