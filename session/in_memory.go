package session

import (
	"sync"

	"github.com/agentflow/agentflow/core"
)

// InMemoryStore keeps sessions in a process-local map. Reads hand out clones,
// so callers never share memory with the authoritative copy; writes go
// through AppendEvent and ApplyDelta. Suited to tests and single-process
// demos where durability does not matter.
type InMemoryStore struct {
	mu   sync.Mutex
	byID map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: map[string]*core.Session{}}
}

// ensure returns the authoritative session, creating it on first use. The
// caller must hold mu.
func (s *InMemoryStore) ensure(id string) *core.Session {
	sess, ok := s.byID[id]
	if !ok {
		sess = core.NewSession(id)
		s.byID[id] = sess
	}
	return sess
}

// Get returns a snapshot of the session, creating it lazily.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensure(sessionID).Clone(), nil
}

// Create resets the session to an empty state and returns a snapshot.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(sessionID)
	s.byID[sessionID] = sess

	return sess.Clone(), nil
}

// AppendEvent adds an event to the session history.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(sessionID).AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(sessionID).ApplyStateDelta(delta)

	return nil
}
