package flow

import (
	"strings"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

const transferToolName = "transfer_to_agent"

// TransferToolInjector appends the transfer_to_agent declaration to outgoing
// requests for agents that may hand control to sub-agents. Injection happens
// per request so the declared target list always reflects the current
// delegation surface.
type TransferToolInjector struct {
	transferTool tool.Tool
}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector {
	return &TransferToolInjector{transferTool: tool.NewTransferToAgentTool()}
}

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest declares the transfer tool when the agent is transfer
// enabled, owns at least one sub-agent and supports function calling. The
// declaration is never duplicated.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() || len(agent.GetSubAgents()) == 0 {
		return nil
	}
	if !agent.IsFunctionCallingEnabled() {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == p.transferTool.Name() {
			return nil
		}
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        p.transferTool.Name(),
			Description: p.transferTool.Description() + transferTargetsHint(agent),
			Parameters:  p.transferTool.Parameters(),
		},
	})

	runCtx.LogDebug("agent.transfer.injected", "agent", agent.GetName(), "sub_agents", len(agent.GetSubAgents()))

	return nil
}

// transferTargetsHint lists the reachable sub-agent names so the model picks
// valid targets.
func transferTargetsHint(agent FlowAgent) string {
	subs := agent.GetSubAgents()
	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.GetName())
	}
	if len(names) == 0 {
		return ""
	}
	return " Available agents: " + strings.Join(names, ", ") + "."
}
