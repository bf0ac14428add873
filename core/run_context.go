package core

import (
	"context"
	"maps"

	"github.com/agentflow/agentflow/logging"
)

// RunContext is the mutable, per-invocation execution scope passed to an
// agent's Run method. It bundles the ambient cancellation context, the
// invocation identity, the user input, the emit and resume channels shared
// with the runner, and the backing stores. State writes accumulate in
// StateDelta until CommitStateDelta or EmitEvent applies them; saved artifact
// ids collect in Artifacts the same way. Branch labels isolate parallel
// execution paths from each other.
type RunContext struct {
	Context                 context.Context
	SessionID, InvocationID string
	Agent                   AgentInfo
	UserContent             Content
	MaxModelCalls           int
	Emit                    chan<- Event
	Resume                  <-chan struct{}
	SessionStore            SessionStore
	ArtifactStore           ArtifactStore
	MemoryStore             MemoryStore
	Limiter                 *ModelLimiter
	Session                 *Session
	StateDelta              map[string]any
	Artifacts               []string
	Branch                  string

	logSink
}

// RunContextParams collects everything NewRunContext needs. Zero fields are
// fine where the run does not touch the corresponding capability; helpers
// degrade as documented on the RunContext methods.
type RunContextParams struct {
	Context       context.Context
	SessionID     string
	InvocationID  string
	Agent         AgentInfo
	UserContent   Content
	MaxModelCalls int
	Emit          chan<- Event
	Resume        <-chan struct{}
	Session       *Session
	SessionStore  SessionStore
	ArtifactStore ArtifactStore
	MemoryStore   MemoryStore
	Logger        logging.Logger
}

// NewRunContext assembles a run scope from p, with empty delta buffers and
// a fresh model-call limiter sized to p.MaxModelCalls. A nil p.Context is
// replaced with context.Background and a nil p.Logger discards output.
func NewRunContext(p RunContextParams) *RunContext {
	if p.Context == nil {
		p.Context = context.Background()
	}

	return &RunContext{
		Context:       p.Context,
		SessionID:     p.SessionID,
		InvocationID:  p.InvocationID,
		Agent:         p.Agent,
		UserContent:   p.UserContent,
		MaxModelCalls: p.MaxModelCalls,
		Emit:          p.Emit,
		Resume:        p.Resume,
		Session:       p.Session,
		SessionStore:  p.SessionStore,
		ArtifactStore: p.ArtifactStore,
		MemoryStore:   p.MemoryStore,
		Limiter:       NewModelLimiter(p.MaxModelCalls),
		StateDelta:    map[string]any{},
		logSink:       newLogSink(p.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error, if any, from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetAgentName returns the logical agent name for this invocation.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// GetAgentType returns a categorization label for the agent.
func (rc *RunContext) GetAgentType() string { return rc.Agent.Type }

// GetState returns a staged value if one exists, falling back to the
// persisted session snapshot.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session == nil {
		return nil, false
	}

	return rc.Session.GetState(k)
}

// SetState stages a state write in the delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta stages every pair from d.
func (rc *RunContext) ApplyStateDelta(d map[string]any) { maps.Copy(rc.StateDelta, d) }

// AddArtifact stages an artifact id for attachment to the next emitted event.
func (rc *RunContext) AddArtifact(id string) { rc.Artifacts = append(rc.Artifacts, id) }

// SaveArtifact stores bytes in the ArtifactStore and stages the id for the
// next emitted event.
func (rc *RunContext) SaveArtifact(id string, data []byte) error {
	if rc.ArtifactStore == nil {
		return ErrNoArtifactStore
	}

	if err := rc.ArtifactStore.Save(rc.SessionID, id, data); err != nil {
		return err
	}
	rc.AddArtifact(id)

	return nil
}

// GetArtifact retrieves previously saved artifact bytes.
func (rc *RunContext) GetArtifact(id string) ([]byte, error) {
	if rc.ArtifactStore == nil {
		return nil, ErrNoArtifactStore
	}

	return rc.ArtifactStore.Get(rc.SessionID, id)
}

// ListArtifacts returns the artifact ids stored for the session. With no
// store configured it reports an empty list rather than an error, so agents
// that merely enumerate attachments work in minimal setups.
func (rc *RunContext) ListArtifacts() ([]string, error) {
	if rc.ArtifactStore == nil {
		return []string{}, nil
	}

	return rc.ArtifactStore.List(rc.SessionID)
}

// SearchMemory queries the MemoryStore for relevant content. A missing store
// yields no results instead of an error.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.SessionID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return ErrNoMemoryStore
	}

	return rc.MemoryStore.Store(rc.SessionID, content, md)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return ErrNoSessionStore
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}
	rc.Session = s

	return nil
}

// CommitStateDelta persists the staged state writes and clears the buffer.
func (rc *RunContext) CommitStateDelta() error {
	if len(rc.StateDelta) == 0 {
		return nil
	}

	if rc.SessionStore == nil {
		return ErrNoSessionStore
	}

	if err := rc.SessionStore.ApplyDelta(rc.SessionID, rc.StateDelta); err != nil {
		return err
	}
	rc.StateDelta = map[string]any{}

	return nil
}

// GetSessionHistory returns all historical events for the session.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetEvents()
}

// derive copies the scope with fresh, empty buffers. Channels, stores, the
// limiter and the session snapshot stay shared with the receiver.
func (rc *RunContext) derive() *RunContext {
	c := *rc
	c.StateDelta = map[string]any{}
	c.Artifacts = nil

	return &c
}

// Clone returns a copy with its own delta and artifact buffers seeded from
// the current ones. Writes on the clone do not affect the receiver.
func (rc *RunContext) Clone() *RunContext {
	c := rc.derive()
	maps.Copy(c.StateDelta, rc.StateDelta)
	c.Artifacts = append(c.Artifacts, rc.Artifacts...)

	return c
}

// WithBranch clones the context under a new branch label.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b

	return c
}

// NewChildContext derives a scope for a nested execution path with its own
// emit and resume channels and empty buffers. Composite agents use it to
// intercept child output without disturbing the parent's pending writes. An
// empty branch keeps the parent's label.
func (rc *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	c := rc.derive()
	c.Emit = emit
	c.Resume = resume

	if branch != "" {
		c.Branch = branch
	}

	return c
}

// EmitEvent folds the pending state and artifact deltas into ev, sends it on
// the emit channel, and clears the buffers. Honors context cancellation while
// blocked on the send.
func (rc *RunContext) EmitEvent(ev Event) error {
	mergeMap(&ev.Actions.StateDelta, rc.StateDelta)

	if len(rc.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for _, id := range rc.Artifacts {
			ev.Actions.ArtifactDelta[id] = 1
		}
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}
	rc.Artifacts = nil

	return nil
}

// WaitForResume blocks until the resume channel signals or the context is
// cancelled. A nil resume channel returns immediately.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
