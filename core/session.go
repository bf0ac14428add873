package core

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Session is a conversational container holding mutable key/value state and
// an ordered event history. All methods are safe for concurrent use; state
// mutations bump the Updated timestamp, and the read accessors hand out
// copies so callers cannot mutate shared internals.
type Session struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:       id,
		State:    map[string]any{},
		Events:   []Event{},
		Created:  now,
		Updated:  now,
		Metadata: map[string]string{},
	}
}

// touch must be called with the write lock held.
func (s *Session) touch() { s.Updated = time.Now() }

// GetState returns the value stored under key and whether it exists.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]
	return v, ok
}

// SetState stores a single key/value pair.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.touch()
}

// ApplyStateDelta merges every pair from delta into the state, last writer
// winning per key.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.State, delta)
	s.touch()
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	s.touch()
}

// GetEvents returns a copy of the full event history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.Events)
}

var conversationRoles = map[string]bool{"user": true, "assistant": true, "tool": true}

// GetConversationHistory returns the events a model should see as context:
// user, assistant and tool turns, with streaming fragments dropped.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || !conversationRoles[ev.Content.Role] || ev.IsPartial() {
			continue
		}
		history = append(history, ev)
	}
	return history
}

// StateSnapshot returns a shallow copy of the current state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.State)
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Session{
		ID:       s.ID,
		State:    maps.Clone(s.State),
		Events:   slices.Clone(s.Events),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: maps.Clone(s.Metadata),
	}
}

// SessionStore persists sessions and their evolving state and event history.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
}
