package core

// Agent is the unit of execution. The runner drives one root Agent per
// invocation; composite agents drive their children through the same
// interface, so a tree of agents runs with no special casing anywhere.
//
// Run does the work for a single invocation, reading input and emitting
// events through the RunContext, and must honor cancellation of the
// context carried inside it. Start and Stop bracket an agent's lifetime
// across invocations. The remaining methods maintain and navigate the
// agent hierarchy: SetSubAgents attaches children and reparents them,
// FindAgent resolves a name to the agent itself or any descendant.
type Agent interface {
	Name() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
	Description() string
}

// AgentInfo identifies an agent in contexts and events without holding a
// reference to it. Type names the implementation kind, such as "model",
// "sequential", "parallel" or "loop".
type AgentInfo struct{ Name, Type string }
