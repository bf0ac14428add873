package core

// Shared in-memory store fixtures for the context tests in this package.

// memSessionStore applies deltas straight to the session state so tests can
// observe what would have been persisted.
type memSessionStore struct {
	sessions map[string]*Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*Session{}}
}

func (s *memSessionStore) Create(id string) (*Session, error) {
	sess := NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

func (s *memSessionStore) Get(id string) (*Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return s.Create(id)
}

func (s *memSessionStore) AppendEvent(id string, ev Event) error {
	sess, _ := s.Get(id)
	sess.Events = append(sess.Events, ev)
	return nil
}

func (s *memSessionStore) ApplyDelta(id string, delta map[string]any) error {
	sess, _ := s.Get(id)
	for k, v := range delta {
		sess.State[k] = v
	}
	return nil
}

type memArtifactStore struct {
	data map[string]map[string][]byte
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{data: map[string]map[string][]byte{}}
}

func (a *memArtifactStore) Save(sid, aid string, b []byte) error {
	if a.data[sid] == nil {
		a.data[sid] = map[string][]byte{}
	}
	a.data[sid][aid] = append([]byte(nil), b...)
	return nil
}

func (a *memArtifactStore) Get(sid, aid string) ([]byte, error) { return a.data[sid][aid], nil }

func (a *memArtifactStore) List(sid string) ([]string, error) {
	ids := make([]string, 0, len(a.data[sid]))
	for id := range a.data[sid] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *memArtifactStore) Delete(sid, aid string) error {
	delete(a.data[sid], aid)
	return nil
}

// stubMemoryStore answers every search with a single canned result.
type stubMemoryStore struct{}

func (stubMemoryStore) Get(string) (map[string]any, error)         { return map[string]any{}, nil }
func (stubMemoryStore) Put(string, map[string]any) error           { return nil }
func (stubMemoryStore) Store(string, string, map[string]any) error { return nil }
func (stubMemoryStore) Delete(string, string) error                { return nil }
func (stubMemoryStore) Search(string, string, int) ([]SearchResult, error) {
	return []SearchResult{{ID: "m1", Content: "canned recall", Score: 0.9}}, nil
}

// newTestRunContext wires a run context to fresh in-memory stores and returns
// the emit channel so tests can assert on emitted events.
func newTestRunContext() (*RunContext, chan Event) {
	store := newMemSessionStore()
	sess, _ := store.Create("sess-x")

	emit := make(chan Event, 8)
	rc := NewRunContext(RunContextParams{
		SessionID:     "sess-x",
		InvocationID:  "inv-x",
		Agent:         AgentInfo{Name: "Agent1", Type: "test"},
		UserContent:   Content{Role: "user", Parts: []Part{TextPart{Text: "input"}}},
		Emit:          emit,
		Resume:        make(chan struct{}, 1),
		Session:       sess,
		SessionStore:  store,
		ArtifactStore: newMemArtifactStore(),
		MemoryStore:   stubMemoryStore{},
	})
	return rc, emit
}
