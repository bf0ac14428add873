package testutil

import "github.com/agentflow/agentflow/core"

// SessionBuilder assembles a core.Session with pre-seeded state and history:
//
//	sess := NewSessionBuilder("sess-1").State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	id     string
	state  map[string]any
	events []core.Event
}

// NewSessionBuilder starts a builder for the session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State seeds one state key.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Event appends one event to the history.
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder { return b.Events(ev) }

// Events appends events to the history in order.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build materializes the session through its regular mutation methods.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.ApplyStateDelta(b.state)
	for _, ev := range b.events {
		s.AddEvent(ev)
	}
	return s
}
