package memory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/agentflow/agentflow/core"
)

// ErrNotFound is returned when a memory id or session has nothing stored.
var ErrNotFound = errors.New("memory not found")

// storedMemory is one remembered entry inside a session.
type storedMemory struct {
	id       string
	content  string
	metadata map[string]any
}

// sessionMemories holds everything remembered for one session: the merged
// key/value map plus the append-only entry list.
type sessionMemories struct {
	kv      map[string]any
	entries []storedMemory
	nextID  int
}

// InMemoryStore is a process-local MemoryStore. Key/value memory merges
// through Put and reads back through Get; stored memories append through
// Store and answer substring Search queries in insertion order with a
// constant score of 1.0. Fine for tests and demos; retrieval quality work
// belongs in a real semantic index behind the same interface.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionMemories
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: map[string]*sessionMemories{}}
}

// session must be called with the write lock held.
func (m *InMemoryStore) session(sessionID string) *sessionMemories {
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &sessionMemories{kv: map[string]any{}}
		m.sessions[sessionID] = s
	}
	return s
}

// Get returns a copy of the session's key/value memory.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return map[string]any{}, nil
	}
	return maps.Clone(s.kv), nil
}

// Put merges delta into the session's key/value memory.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	maps.Copy(m.session(sessionID).kv, delta)
	return nil
}

// Search matches query as a substring of stored memory content, returning
// up to limit hits in the order they were stored. An empty query matches
// everything.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []core.SearchResult{}
	s, ok := m.sessions[sessionID]
	if !ok {
		return results, nil
	}
	for _, e := range s.entries {
		if len(results) >= limit {
			break
		}
		if query != "" && !strings.Contains(e.content, query) {
			continue
		}
		results = append(results, core.SearchResult{
			ID:       e.id,
			Content:  e.content,
			Score:    1.0,
			Metadata: maps.Clone(e.metadata),
		})
	}
	return results, nil
}

// Store appends a new memory entry with a generated id.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(sessionID)
	id := fmt.Sprintf("mem_%d", s.nextID)
	s.nextID++
	s.entries = append(s.entries, storedMemory{id: id, content: content, metadata: metadata})
	return nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}

	i := slices.IndexFunc(s.entries, func(e storedMemory) bool { return e.id == memoryID })
	if i < 0 {
		return ErrNotFound
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return nil
}
