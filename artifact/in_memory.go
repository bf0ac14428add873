package artifact

import (
	"bytes"
	"maps"
	"slices"
	"sync"
)

// InMemoryStore holds artifacts in nested maps keyed by session and artifact
// id. Bytes are copied on both save and read, so callers never alias the
// stored buffers. There is no retention or quota handling; use the SQLite
// store when artifacts must survive a restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: map[string]map[string][]byte{}}
}

// Save stores or overwrites the artifact bytes under the session.
func (a *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessions[sessionID] == nil {
		a.sessions[sessionID] = map[string][]byte{}
	}
	a.sessions[sessionID][artifactID] = bytes.Clone(data)

	return nil
}

// Get returns a copy of the stored bytes, or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.sessions[sessionID][artifactID]
	if !ok {
		return nil, ErrNotFound
	}

	return bytes.Clone(data), nil
}

// List returns the artifact ids stored for the session, sorted.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.Sorted(maps.Keys(a.sessions[sessionID])), nil
}

// Delete removes the artifact, or returns ErrNotFound when absent.
func (a *InMemoryStore) Delete(sessionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[sessionID][artifactID]; !ok {
		return ErrNotFound
	}
	delete(a.sessions[sessionID], artifactID)

	return nil
}
