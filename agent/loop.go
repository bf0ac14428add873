package agent

import (
	"fmt"
	"time"

	"github.com/agentflow/agentflow/core"
)

// defaultLoopIterations bounds loops constructed without an explicit ceiling.
const defaultLoopIterations = 100

// LoopAgent coordinates the repeated execution of a list of child agents.
//
// Each iteration runs the children in declared order against the shared run
// context, so state written by one child is visible to the next, and to all
// children of later iterations. The loop terminates when a child event
// carries the Escalate action (the exit signal, typically raised by the
// exit_loop tool) or when the iteration ceiling is reached, whichever comes
// first. Callers cannot distinguish the two outcomes; the session state at
// termination is the result either way.
//
// LoopAgent is ideal for:
//   - Bounded refinement loops (critique then revise until approved)
//   - Retry workflows with an explicit exit signal
//   - Polling scenarios with an interval between iterations
type LoopAgent struct {
	BaseAgent
	children      []core.Agent
	maxIterations int
	interval      time.Duration
}

// NewLoopAgent constructs a looping coordinator over a list of children.
//
// maxIterations bounds the number of full passes over the child list; values
// of zero or less fall back to a default of 100. The iteration counter is
// transient run state, reset on every invocation.
func NewLoopAgent(name string, maxIterations int, children ...core.Agent) *LoopAgent {
	if maxIterations <= 0 {
		maxIterations = defaultLoopIterations
	}

	return &LoopAgent{
		BaseAgent:     NewBaseAgent(name),
		children:      children,
		maxIterations: maxIterations,
	}
}

// SetInterval configures a delay applied between iterations (not after the
// last one). Zero disables the delay. Useful for polling loops.
func (l *LoopAgent) SetInterval(d time.Duration) { l.interval = d }

// MaxIterations returns the configured iteration ceiling.
func (l *LoopAgent) MaxIterations() int { return l.maxIterations }

// Run implements core.Agent, executing the child list repeatedly until a
// child escalates, the iteration ceiling is reached, a child fails, or the
// context is cancelled. Escalation is an orderly exit, not an error.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	for i := range l.maxIterations {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}

		runCtx.LogDebug(
			"agent.loop.iteration",
			"agent", l.Name(),
			"iteration", i+1,
			"max_iterations", l.maxIterations,
		)

		for _, child := range l.children {
			escalated, err := l.runChildWatchingForEscalation(runCtx, child)
			if err != nil {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, child.Name(), err)
			}

			if escalated {
				runCtx.LogInfo(
					"agent.loop.escalated",
					"agent", l.Name(),
					"child", child.Name(),
					"iteration", i+1,
				)

				return nil
			}
		}

		if l.interval > 0 && i < l.maxIterations-1 {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	runCtx.LogDebug(
		"agent.loop.complete",
		"agent", l.Name(),
		"iterations", l.maxIterations,
	)

	return nil
}

// runChildWatchingForEscalation executes one child on a derived context whose
// emit channel is intercepted, so escalation flags can be observed while
// events stream through to the parent. Non-partial events keep the
// persistence handshake intact: the event is forwarded, the parent's resume
// signal awaited, and only then is the child released for its next step.
func (l *LoopAgent) runChildWatchingForEscalation(runCtx *core.RunContext, child core.Agent) (bool, error) {
	intercept := make(chan core.Event, 10)
	resume := make(chan struct{}, 1)
	childCtx := runCtx.NewChildContext(intercept, resume, runCtx.Branch)

	done := make(chan error, 1)
	go func() {
		done <- child.Run(childCtx)
		close(intercept)
	}()

	escalated := false
	for {
		select {
		case ev, ok := <-intercept:
			if !ok {
				return escalated, <-done
			}

			if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
				escalated = true
			}

			if err := runCtx.EmitEvent(ev); err != nil {
				return escalated, err
			}

			if ev.IsPartial() {
				continue
			}

			if err := runCtx.WaitForResume(); err != nil {
				return escalated, err
			}

			select {
			case resume <- struct{}{}:
			case <-runCtx.Done():
				return escalated, runCtx.Err()
			}

		case <-runCtx.Done():
			return escalated, runCtx.Err()
		}
	}
}

// CreateEscalationEvent constructs an event signalling escalation to any
// enclosing loop. Agents that decide they cannot make further progress can
// emit one to terminate the loop on the spot.
func CreateEscalationEvent(invocationID, author string, content *core.Content) core.Event {
	escalate := true
	ev := core.NewEvent(invocationID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content
	return ev
}
