// Package memory contains concrete MemoryStore implementations. The store
// interface and SearchResult type live in the core package: depend on
// core.MemoryStore in your code and pick an implementation at wiring time.
// Keeping the contract in core lets alternative backends (vector databases,
// embedding indexes) slot in without dependency cycles.
package memory
