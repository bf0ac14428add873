package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentflow/agentflow/core"
)

// ParallelAgent coordinates the concurrent execution of multiple child agents.
//
// Each child runs on a cloned run context carrying a hierarchical branch
// label ("Parent.Child"), which isolates its pending state deltas and makes
// sibling conversation events invisible to each other's model requests.
// Correctness of concurrent state writes relies on children using disjoint
// output keys.
//
// ParallelAgent is ideal for:
//   - Independent research or data gathering from multiple sources
//   - I/O bound work that benefits from concurrency
//   - Fan-out stages feeding a downstream merge step
type ParallelAgent struct {
	BaseAgent
	children []core.Agent
	timeout  time.Duration
}

// NewParallelAgent creates a new parallel execution coordinator.
//
// The children run concurrently, each in its own isolated branch context.
// A timeout of zero means no overall deadline.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
		timeout:   timeout,
	}
}

// branchCtxForChild clones the parent context for one child, assigning a
// hierarchical branch path so pending deltas and conversation visibility stay
// isolated per branch. Nested parallel agents extend the dotted path.
func (p *ParallelAgent) branchCtxForChild(ctx context.Context, runCtx *core.RunContext, child core.Agent) *core.RunContext {
	branchCtx := runCtx.WithBranch(buildBranchPath(runCtx.Branch, fmt.Sprintf("%s.%s", p.Name(), child.Name())))
	branchCtx.Context = ctx
	return branchCtx
}

// Run implements core.Agent, launching all children concurrently and waiting
// for every one of them to finish before returning (the join barrier). The
// first child error is returned after the join; siblings are not cancelled
// when one fails. When a timeout is configured the shared context is bounded
// by it.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	ctx := runCtx.Context
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, child := range p.children {
		g.Go(func() error {
			branchCtx := p.branchCtxForChild(ctx, runCtx, child)

			runCtx.LogDebug(
				"agent.parallel.child.start",
				"agent", p.Name(),
				"child", child.Name(),
				"branch", branchCtx.Branch,
			)

			if err := child.Run(branchCtx); err != nil {
				return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
			}
			return nil
		})
	}

	return g.Wait()
}
