// Package session houses concrete implementations of core.SessionStore. The
// interface itself (and the Session struct) live in the core package so that
// agents, flows and the runner depend on the contract rather than on a
// concrete backend.
//
// Two backends ship with AgentFlow: an in-memory store for tests and demos,
// and a SQLite store for durable sessions that survive process restarts
// (required when a run suspends on a pending confirmation and is resumed
// later). Additional backends can be added here without changing any calling
// code; only the wiring layer decides which implementation to instantiate.
package session
