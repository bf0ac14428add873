// Package core holds the domain types the rest of AgentFlow is built on:
// the Agent interface, Session and its event log, the Event record that
// agents and tools communicate through, and the RunContext and ToolContext
// execution scopes. It also declares the store interfaces (SessionStore,
// ArtifactStore, MemoryStore) that persistence packages implement, and the
// ToolConfirmation record behind suspend and resume approval flows.
//
// core depends on nothing else in the module, so any package can import it
// without cycles. Implementations live elsewhere: concrete agents in agent,
// orchestration in runner, storage backends in session, artifact and memory.
package core
