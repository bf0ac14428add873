package tool

import (
	"fmt"

	"github.com/agentflow/agentflow/core"
)

// AgentTool exposes a complete agent as a callable tool. A coordinating agent
// can then delegate a sub-task through an ordinary function call and receive
// the specialist's final answer as the function result, without transferring
// control of the conversation.
//
// The wrapped agent runs on an isolated child context: it shares the session,
// stores and model call limiter with the parent invocation but emits into a
// private channel drained by the tool. State deltas produced by the delegate
// (e.g. its output key) are forwarded to the parent so they persist exactly
// as if the delegate had run directly.
type AgentTool struct {
	agent       core.Agent
	description string
}

// NewAgentTool wraps the given agent. The tool name is the agent name, so it
// must be a valid function identifier for the model providers in use.
func NewAgentTool(agent core.Agent) *AgentTool {
	return &AgentTool{agent: agent, description: agent.Description()}
}

// Name returns the wrapped agent's name.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description returns the wrapped agent's description, or a generic
// delegation hint when the agent has none.
func (t *AgentTool) Description() string {
	if t.description != "" {
		return t.description
	}
	return fmt.Sprintf("Delegate a task to the %s agent and return its final response.", t.agent.Name())
}

// Parameters declares the single 'request' argument carrying the delegated task.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "Task or question to hand to the delegate agent",
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the wrapped agent to completion and returns its final text reply.
func (t *AgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	request, _ := args["request"].(string)
	if request == "" {
		return nil, fmt.Errorf("missing required field 'request'")
	}

	rc := tc.InternalRunContext()

	branch := t.agent.Name()
	if rc.Branch != "" {
		branch = rc.Branch + "." + branch
	}

	emit := make(chan core.Event, 64)
	resume := make(chan struct{}, 1)

	child := rc.NewChildContext(emit, resume, branch)
	child.Agent = core.AgentInfo{Name: t.agent.Name(), Type: "agent"}
	child.UserContent = core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: request}}}

	done := make(chan error, 1)
	go func() { done <- t.agent.Run(child) }()

	var finalText string
	handle := func(ev core.Event) {
		for k, v := range ev.Actions.StateDelta {
			tc.SetState(k, v)
		}
		if ev.IsPartial() || ev.Content == nil {
			return
		}
		if txt := textOf(ev); txt != "" && ev.IsFinalResponse() {
			finalText = txt
		}
	}

	for {
		select {
		case ev := <-emit:
			handle(ev)
			if !ev.IsPartial() {
				select {
				case resume <- struct{}{}:
				default:
				}
			}
		case err := <-done:
			// Drain anything emitted between the last receive and completion.
			for {
				select {
				case ev := <-emit:
					handle(ev)
					continue
				default:
				}
				break
			}
			if err != nil {
				return nil, fmt.Errorf("delegate agent %q failed: %w", t.agent.Name(), err)
			}
			if finalText == "" {
				return nil, fmt.Errorf("delegate agent %q produced no final response", t.agent.Name())
			}
			return finalText, nil
		case <-rc.Context.Done():
			return nil, rc.Context.Err()
		}
	}
}

// textOf concatenates the text parts of an event's content.
func textOf(ev core.Event) string {
	var out string
	for _, p := range ev.Content.Parts {
		if tp, ok := p.(core.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
