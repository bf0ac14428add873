package agent

import (
	"fmt"
	"maps"
	"slices"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/flow"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// ModelAgentOptions configure a ModelAgent. Use functional options with
// NewModelAgent to override the defaults.
type ModelAgentOptions struct {
	Instruction           Instruction
	EnableStreaming       bool
	EnableFunctionCalling bool
	AllowTransfer         bool
	OutputKey             string
	MaxHistoryMessages    int
	Tools                 map[string]tool.Tool
}

// ModelAgent is the unit agent: one language model, an instruction, and a
// set of tools. It supports streaming responses, function calling,
// {key} instruction templating against session state, saving its final
// reply under an output key, and transferring control to sub-agents.
// ModelAgent embeds BaseAgent for lifecycle and hierarchy management.
type ModelAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           Instruction
	tools                 map[string]tool.Tool
	enableFunctionCalling bool
	enableStreaming       bool
	allowTransfer         bool
	outputKey             string
	maxHistoryMessages    int
}

// NewModelAgent creates a model-backed agent. Defaults: streaming and
// function calling on, transfer allowed, 20-message history window, a
// generic assistant instruction derived from the name, and no tools.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s. Be accurate and concise.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		AllowTransfer:         true,
		MaxHistoryMessages:    20,
		Tools:                 map[string]tool.Tool{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		allowTransfer:         opts.AllowTransfer,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		tools:                 opts.Tools,
	}
}

// RegisterTool makes a tool callable by the model.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools registers several tools at once.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool, reporting whether it was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, ok := a.tools[name]; !ok {
		return false
	}
	delete(a.tools, name)
	return true
}

// HasTool reports whether a tool is registered.
func (a *ModelAgent) HasTool(name string) bool {
	_, ok := a.tools[name]
	return ok
}

// ListTools returns the registered tool names in sorted order.
func (a *ModelAgent) ListTools() []string {
	return slices.Sorted(maps.Keys(a.tools))
}

// GetTool retrieves a tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, ok := a.tools[name]
	return t, ok
}

// ClearTools removes every registered tool.
func (a *ModelAgent) ClearTools() {
	a.tools = map[string]tool.Tool{}
}

// The accessors below implement flow.FlowAgent, which is how the flow
// pipeline inspects the agent it is executing.

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tools for function calling.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	return maps.Clone(a.tools)
}

// GetSubAgents returns the child agents that participate in flow-level
// coordination. Children that are not flow-capable (pure composites) are
// still reachable through TransferToAgent but are not advertised to the
// model.
func (a *ModelAgent) GetSubAgents() []flow.FlowAgent {
	children := a.SubAgents()
	flowAgents := make([]flow.FlowAgent, 0, len(children))
	for _, child := range children {
		if fa, ok := child.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, fa)
		}
	}
	return flowAgents
}

// IsFunctionCallingEnabled reports whether function calling is enabled.
func (a *ModelAgent) IsFunctionCallingEnabled() bool { return a.enableFunctionCalling }

// IsStreamingEnabled reports whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled reports whether agent transfer is enabled.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// GetOutputKey returns the session state key the final response is saved
// under, or empty when responses are not persisted to state.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns how many conversation history messages are
// included in model requests.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions produces the system prompt from the static or
// dynamic instruction source. Placeholder rendering against session state
// happens later in the flow's instruction processor.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// TransferToAgent delegates execution to a named descendant agent on the
// same run context, sharing session state and the emit channel.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	target := a.FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent %q not found in hierarchy", agentName)
	}

	runCtx.LogInfo("agent.transfer", "from", a.Name(), "to", agentName)

	return target.Run(runCtx)
}

// Run implements core.Agent. It selects an execution flow and streams the
// flow's events to the parent run context. Flow errors surface as the Run
// error after the event stream drains.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "invocation", runCtx.InvocationID)

	fl := flow.Select(a)
	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	events, errs, err := fl.Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("agent flow failed: %w", err)
	}

	// Forward events until both channels close. The flow waits on
	// runCtx.Resume itself, so forwarding must never consume resume signals.
	var flowErr error
	for events != nil || errs != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			select {
			case runCtx.Emit <- event:
				runCtx.LogDebug(
					"agent.event.forward",
					"agent", a.Name(),
					"event_id", event.ID,
					"fn_calls", len(event.GetFunctionCalls()),
				)
			case <-runCtx.Done():
				runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", runCtx.Err())
				return runCtx.Err()
			}
		case ferr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if ferr != nil && flowErr == nil {
				flowErr = ferr
			}
		case <-runCtx.Done():
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", runCtx.Err())
			return runCtx.Err()
		}
	}

	if flowErr != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", flowErr.Error())
		return fmt.Errorf("agent flow failed: %w", flowErr)
	}

	runCtx.LogDebug("agent.flow.execute.complete", "agent", a.Name())

	return nil
}
