package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agentflow/agentflow/core"
)

// BaseAgent supplies the identity, lifecycle and hierarchy plumbing shared by
// every agent type. Concrete agents embed it and add a Run method to satisfy
// core.Agent. All methods are safe for concurrent use.
type BaseAgent struct {
	name        string
	description string

	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
	parent    core.Agent
	subAgents []core.Agent
}

// NewBaseAgent constructs a BaseAgent with a placeholder description;
// override it with SetDescription.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{name: name, description: fmt.Sprintf("Agent %s", name)}
}

// Name returns the agent's external identifier.
func (a *BaseAgent) Name() string { return a.name }

// Description returns the agent's purpose statement. Descriptions surface in
// transfer tool hints, so routing quality depends on them being precise.
func (a *BaseAgent) Description() string { return a.description }

// SetDescription replaces the description.
func (a *BaseAgent) SetDescription(desc string) { a.description = desc }

// Start marks the agent running and derives a cancellable context torn down
// by Stop. Starting twice without an intervening Stop is an error.
func (a *BaseAgent) Start(runCtx *core.RunContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return errors.New("agent already started")
	}
	a.running = true
	_, a.cancel = context.WithCancel(runCtx.Context)
	return nil
}

// Stop cancels the context derived by Start and clears the running flag.
// Stopping an agent that is not running is an error.
func (a *BaseAgent) Stop(_ *core.RunContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return errors.New("agent not started")
	}
	a.running = false
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return nil
}

// parentSetter is implemented by agents whose parent link this package
// manages. Every BaseAgent embedder implements it.
type parentSetter interface{ setParent(core.Agent) }

func relink(agents []core.Agent, parent core.Agent) {
	for _, ag := range agents {
		if s, ok := ag.(parentSetter); ok {
			s.setParent(parent)
		}
	}
}

// SetSubAgents replaces the child set. Previous children are detached first,
// then each new child gets this agent as its single parent.
func (a *BaseAgent) SetSubAgents(children ...core.Agent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	relink(a.subAgents, nil)
	a.subAgents = slices.Clone(children)
	relink(a.subAgents, baseRef{a})
	return nil
}

func (a *BaseAgent) setParent(p core.Agent) {
	a.mu.Lock()
	a.parent = p
	a.mu.Unlock()
}

// Parent returns the owning agent, or nil at the hierarchy root.
func (a *BaseAgent) Parent() core.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parent
}

// SubAgents returns a copy of the child list, safe to iterate while the set
// is being replaced.
func (a *BaseAgent) SubAgents() []core.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.subAgents)
}

// FindAgent searches the subtree rooted here, including the receiver, depth
// first, and returns the first agent named name, or nil. Matches below the
// root come back as the concrete (runnable) child.
func (a *BaseAgent) FindAgent(name string) core.Agent {
	if a.name == name {
		return baseRef{a}
	}
	for _, child := range a.SubAgents() {
		if child.Name() == name {
			return child
		}
		if hit := child.FindAgent(name); hit != nil {
			return hit
		}
	}
	return nil
}

// baseRef exposes a bare BaseAgent through the core.Agent interface for
// parent links and self matches. It is not executable.
type baseRef struct{ *BaseAgent }

func (r baseRef) Run(_ *core.RunContext) error {
	return fmt.Errorf("agent %s is a bare base agent and cannot run; embed BaseAgent in a concrete type", r.name)
}
