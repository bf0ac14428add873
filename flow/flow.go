// Package flow implements the model-interaction pipeline used by model-backed
// agents: assembling requests from instructions and conversation history,
// streaming model output, executing requested tools and reacting to
// orchestration signals such as transfer and escalation. Composite agents do
// not use flows; they schedule their children directly.
package flow

import (
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// Flow drives one agent turn to completion.
type Flow interface {
	// Execute runs the flow asynchronously. Events stream on the first
	// channel, a terminal failure arrives on the second; both close when the
	// flow finishes. The returned error covers setup problems only.
	Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error, error)
}

// FlowAgent is the narrow view of a model-backed agent that the pipeline
// needs. It deliberately hides the rest of the agent surface so flows cannot
// reach into lifecycle or hierarchy management.
type FlowAgent interface {
	// GetName returns the agent name used as the event author.
	GetName() string

	// GetLLM returns the model the flow sends requests to.
	GetLLM() model.Model

	// ResolveInstructions produces the raw, untemplated system instructions.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// MaxHistoryMessages bounds how much conversation history enters the
	// request; zero means unbounded.
	MaxHistoryMessages() int

	// GetOutputKey names the session state key that receives the final
	// response text, or empty when the agent does not persist output.
	GetOutputKey() string

	// GetTools returns the tool registry exposed to the model.
	GetTools() map[string]tool.Tool

	// IsFunctionCallingEnabled gates tool declarations in the request.
	IsFunctionCallingEnabled() bool

	// IsStreamingEnabled gates partial event emission.
	IsStreamingEnabled() bool

	// IsTransferEnabled gates injection of the transfer_to_agent tool.
	IsTransferEnabled() bool

	// GetSubAgents lists the flow-capable children advertised as transfer
	// targets.
	GetSubAgents() []FlowAgent

	// TransferToAgent hands the invocation to the named agent.
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// RequestProcessor mutates the outgoing model request. Processors run in
// registration order before every model call.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor inspects the completed model response before the flow
// turns it into events.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
