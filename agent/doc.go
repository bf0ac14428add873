// Package agent holds the concrete agent types that run inside AgentFlow.
//
// BaseAgent supplies the lifecycle and hierarchy plumbing every agent needs:
// parent links, SetSubAgents, FindAgent lookup and start/stop bookkeeping.
// ModelAgent is the conversational workhorse, pairing a language model with
// instructions, tools and an optional output key. The composites arrange
// other agents rather than talking to a model themselves: SequentialAgent
// runs children in order, ParallelAgent fans them out on isolated branches,
// and LoopAgent repeats its child until an exit condition or iteration cap.
//
// Custom agents embed BaseAgent and implement Run. Everything an agent
// touches at runtime arrives through *core.RunContext; the package keeps no
// globals.
package agent
