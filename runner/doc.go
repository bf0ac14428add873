// Package runner implements the execution driver for AgentFlow.
//
// The Runner owns a single root agent and drives its invocations: it persists
// the incoming user turn, builds the run context, streams the agent's events
// to the caller, applies event side effects (session state deltas, artifact
// references) and appends completed events to the session history. After each
// completed event it signals the producing flow to continue, which makes
// per-step persistence visible to the next step of sequential workflows.
//
// Besides Run, the Runner carries the second half of the tool confirmation
// gate: Resume answers a pending approval recorded in session history and
// re-enters the root agent under the original invocation id, so the suspended
// tool call is replayed with the decision attached.
//
// Lifecycle callbacks (see callbacks.go) hook into agent start/stop, tool
// batches, state changes and errors.
package runner
