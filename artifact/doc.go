// Package artifact implements core.ArtifactStore twice over: InMemoryStore
// for tests and short-lived processes, and SQLiteStore for artifacts that
// must survive restarts. Both scope artifacts by session id and are safe
// for concurrent use.
//
// Callers should hold a core.ArtifactStore, not a concrete type from this
// package, so stores stay swappable.
package artifact
