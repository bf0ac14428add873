package flow

// Select returns the flow matching an agent's capabilities: a MultiAgentFlow
// when the agent can transfer control or owns sub-agents, otherwise a
// SingleAgentFlow.
func Select(agent FlowAgent) Flow {
	if agent.IsTransferEnabled() || len(agent.GetSubAgents()) > 0 {
		return NewMultiAgentFlow(agent)
	}
	return NewSingleAgentFlow(agent)
}

// SingleAgentFlow runs one isolated agent: instruction resolution, content
// assembly, model generation and tool round trips, with no delegation
// surface.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow builds the flow for an agent without sub-agents.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	f := NewBaseFlow(agent)
	f.AddRequestProcessor(NewInstructionsProcessor())
	f.AddRequestProcessor(NewContentsProcessor())
	return &SingleAgentFlow{BaseFlow: f}
}

// MultiAgentFlow additionally advertises the transfer tool, so the model can
// hand the conversation to any reachable agent in the hierarchy.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow builds the flow for an agent that delegates.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	f := NewBaseFlow(agent)
	f.AddRequestProcessor(NewInstructionsProcessor())
	f.AddRequestProcessor(NewContentsProcessor())
	f.AddRequestProcessor(NewTransferToolInjector())
	return &MultiAgentFlow{BaseFlow: f}
}
