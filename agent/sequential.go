package agent

import (
	"fmt"

	"github.com/agentflow/agentflow/core"
)

// SequentialAgent runs its steps one after another against the same run
// context. Because each step's state deltas are persisted before the next
// step starts, a step's output key becomes visible to every downstream
// step's instructions.
//
// SequentialAgent is ideal for:
//   - Multi-step content pipelines (outline, draft, edit)
//   - Workflows requiring a specific execution order
//   - Complex tasks broken into specialized subtasks
//   - Scenarios where agent outputs build upon each other
type SequentialAgent struct {
	BaseAgent
	steps []core.Agent
}

// NewSequentialAgent creates a pipeline that executes steps in the order
// given, sharing the run context so session state accumulates across steps.
func NewSequentialAgent(name string, steps ...core.Agent) *SequentialAgent {
	return &SequentialAgent{BaseAgent: NewBaseAgent(name), steps: steps}
}

// Run implements core.Agent. The first failing step aborts the chain.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for i, step := range s.steps {
		runCtx.LogDebug(
			"agent.sequential.step",
			"agent", s.Name(),
			"step", i+1,
			"child", step.Name(),
		)

		if err := step.Run(runCtx); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", step.Name(), err)
		}
	}

	return nil
}
