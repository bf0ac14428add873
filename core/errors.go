package core

import "errors"

// Configuration errors returned by RunContext and ToolContext helpers when a
// backing component was never wired into the run. Callers can match them with
// errors.Is to tell a missing store apart from a store failure.
var (
	ErrNoSessionStore  = errors.New("session store not configured")
	ErrNoArtifactStore = errors.New("artifact store not configured")
	ErrNoMemoryStore   = errors.New("memory store not configured")
	ErrNoEmitter       = errors.New("event emitter not configured")
)
