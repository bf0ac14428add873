package tool

import (
	"github.com/agentflow/agentflow/core"
)

// exitLoopTool lets a model break out of an enclosing loop agent by raising
// the escalate signal. Offered to checker/critic agents as an alternative to
// sentinel text matching.
type exitLoopTool struct{}

// NewExitLoopTool constructs the exit_loop tool instance.
func NewExitLoopTool() Tool { return &exitLoopTool{} }

func (t *exitLoopTool) Name() string { return "exit_loop" }

func (t *exitLoopTool) Description() string {
	return "Exit the enclosing refinement loop. Call only when the current result fully meets the requirements and no further iteration is needed."
}

func (t *exitLoopTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *exitLoopTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	tc.Escalate()
	return map[string]any{"status": "success", "message": "loop exit requested"}, nil
}
