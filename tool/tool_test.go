package tool

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/internal/util"
)

type conversionArgs struct {
	Amount   float64 `json:"amount" description:"Amount to convert"`
	Decimals *int    `json:"decimals" description:"Optional precision"`
	Note     string  `json:"note,omitempty" description:"Free-form note"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(conversionArgs{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "amount")
	assert.Contains(t, props, "decimals")
	assert.Contains(t, props, "note")

	// Pointer and omitempty fields stay optional.
	assert.Equal(t, []string{"amount"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"retries": map[string]any{"type": "integer"}},
		"required":   []any{"retries"},
	}

	assert.NoError(t, util.ValidateParameters(map[string]any{"retries": 5}, schema))

	var vErr *ValidationError

	err := util.ValidateParameters(map[string]any{}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "retries", vErr.Field)

	err = util.ValidateParameters(map[string]any{"retries": "three"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value":  map[string]any{"type": "number"},
			"factor": map[string]any{"type": "number"},
		},
		"required": []string{"value", "factor"},
	}

	scale := NewFunctionTool("scale", "Multiply value by factor", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["value"].(float64) * args["factor"].(float64), nil
	})

	tc := core.NewToolContext(stubRunContext(), "fc1")
	result, err := scale.Call(tc, map[string]any{"value": 3.5, "factor": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 7.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"message": map[string]any{"type": "string"}},
		"required":   []any{"message"},
	}
	echo := NewFunctionTool("echo", "Repeats the message", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["message"], nil
	})

	_, err := echo.Call(core.NewToolContext(stubRunContext(), "fc2"), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	flaky := NewFunctionTool("flaky", "Always fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("backend offline")
	})

	_, err := flaky.Call(core.NewToolContext(stubRunContext(), "fc3"), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend offline")
}

// stubSessions is a strict core.SessionStore: touching a session that was
// never created fails instead of being masked by auto-creation.
type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string]*core.Session{}}
}

func (s *stubSessions) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(id)
	s.sessions[id] = sess

	return sess.Clone(), nil
}

func (s *stubSessions) Get(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s was never created", id)
	}

	return sess.Clone(), nil
}

func (s *stubSessions) AppendEvent(id string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s was never created", id)
	}
	sess.AddEvent(ev)

	return nil
}

func (s *stubSessions) ApplyDelta(id string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s was never created", id)
	}
	sess.ApplyStateDelta(delta)

	return nil
}

// stubArtifacts keeps artifact payloads per session in plain maps.
type stubArtifacts struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func newStubArtifacts() *stubArtifacts {
	return &stubArtifacts{data: map[string]map[string][]byte{}}
}

func (a *stubArtifacts) Save(sid, aid string, b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	byID, ok := a.data[sid]
	if !ok {
		byID = map[string][]byte{}
		a.data[sid] = byID
	}
	byID[aid] = bytes.Clone(b)

	return nil
}

func (a *stubArtifacts) Get(sid, aid string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.data[sid][aid]
	if !ok {
		return nil, errors.New("artifact not stored")
	}

	return bytes.Clone(b), nil
}

func (a *stubArtifacts) List(sid string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Sorted(maps.Keys(a.data[sid])), nil
}

func (a *stubArtifacts) Delete(sid, aid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.data[sid], aid)

	return nil
}

// stubMemories records stores verbatim and returns them for any query.
type stubMemories struct {
	mu      sync.Mutex
	entries map[string][]core.SearchResult
}

func newStubMemories() *stubMemories {
	return &stubMemories{entries: map[string][]core.SearchResult{}}
}

func (m *stubMemories) Store(sid, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[sid] = append(m.entries[sid], core.SearchResult{
		ID:       content,
		Content:  content,
		Score:    1.0,
		Metadata: metadata,
	})

	return nil
}

func (m *stubMemories) Search(sid, _ string, limit int) ([]core.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := m.entries[sid]

	return hits[:min(limit, len(hits))], nil
}

func (m *stubMemories) Delete(_, _ string) error             { return nil }
func (m *stubMemories) Get(_ string) (map[string]any, error) { return map[string]any{}, nil }
func (m *stubMemories) Put(_ string, _ map[string]any) error { return nil }

func stubRunContext() *core.RunContext {
	sessions := newStubSessions()

	const sessionID = "sess-1"
	if _, err := sessions.Create(sessionID); err != nil {
		panic(err)
	}

	return core.NewRunContext(core.RunContextParams{
		SessionID:     sessionID,
		InvocationID:  "inv-1",
		Agent:         core.AgentInfo{Name: "Agent", Type: "test"},
		Emit:          make(chan core.Event, 10),
		Resume:        make(chan struct{}, 1),
		Session:       core.NewSession(sessionID),
		SessionStore:  sessions,
		ArtifactStore: newStubArtifacts(),
		MemoryStore:   newStubMemories(),
	})
}

// callRecord invokes a tool that reports through a status record and fails
// the test unless the call succeeded.
func callRecord(t *testing.T, tl Tool, tc *core.ToolContext, args map[string]any) map[string]any {
	t.Helper()

	res, err := tl.Call(tc, args)
	require.NoError(t, err)

	record, ok := res.(map[string]any)
	if !ok {
		t.Fatalf("tool returned %T, want map[string]any", res)
	}
	require.Equal(t, "success", record["status"])

	return record
}

func TestStateManagerTool_SetAndGetState(t *testing.T) {
	sm := NewStateManagerTool()
	rc := stubRunContext()

	tc := core.NewToolContext(rc, "fc-set")
	record := callRecord(t, sm, tc, map[string]any{"operation": "set_state", "key": "foo", "value": "bar"})
	assert.Equal(t, "foo", record["key"])
	assert.Equal(t, "bar", record["value"])
	assert.Equal(t, "bar", tc.Actions().StateDelta["foo"])

	// Commit the delta the way the executor would, then read it back.
	ev := core.Event{Actions: core.EventActions{StateDelta: map[string]any{}}}
	tc.InternalApplyActions(&ev)
	rc.Session.ApplyStateDelta(ev.Actions.StateDelta)

	record = callRecord(t, sm, core.NewToolContext(rc, "fc-get"), map[string]any{"operation": "get_state", "key": "foo"})
	assert.True(t, record["exists"].(bool))
	assert.Equal(t, "bar", record["value"])
}

func TestStateManagerTool_GetMissingKey(t *testing.T) {
	sm := NewStateManagerTool()
	tc := core.NewToolContext(stubRunContext(), "fc-miss")

	record := callRecord(t, sm, tc, map[string]any{"operation": "get_state", "key": "absent"})
	assert.False(t, record["exists"].(bool))
	assert.Nil(t, record["value"])
}

func TestStateManagerTool_FlowControlActions(t *testing.T) {
	sm := NewStateManagerTool()

	cases := []struct {
		name  string
		args  map[string]any
		check func(t *testing.T, actions *core.EventActions)
	}{
		{
			name: "escalate",
			args: map[string]any{"operation": "escalate"},
			check: func(t *testing.T, actions *core.EventActions) {
				require.NotNil(t, actions.Escalate)
				assert.True(t, *actions.Escalate)
			},
		},
		{
			name: "transfer_agent",
			args: map[string]any{"operation": "transfer_agent", "agent_name": "NextAgent"},
			check: func(t *testing.T, actions *core.EventActions) {
				require.NotNil(t, actions.TransferToAgent)
				assert.Equal(t, "NextAgent", *actions.TransferToAgent)
			},
		},
		{
			name: "skip_summarization",
			args: map[string]any{"operation": "skip_summarization"},
			check: func(t *testing.T, actions *core.EventActions) {
				require.NotNil(t, actions.SkipSummarization)
				assert.True(t, *actions.SkipSummarization)
			},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tc := core.NewToolContext(stubRunContext(), "fc-"+tt.name)
			callRecord(t, sm, tc, tt.args)
			tt.check(t, tc.Actions())
		})
	}
}

func TestStateManagerTool_UnknownOperation(t *testing.T) {
	sm := NewStateManagerTool()
	tc := core.NewToolContext(stubRunContext(), "fc-bad")

	_, err := sm.Call(tc, map[string]any{"operation": "format_disk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}

func TestExitLoopTool_SignalsEscalation(t *testing.T) {
	el := NewExitLoopTool()
	tc := core.NewToolContext(stubRunContext(), "fc-exit")

	callRecord(t, el, tc, map[string]any{})

	require.NotNil(t, tc.Actions().Escalate)
	assert.True(t, *tc.Actions().Escalate)

	ev := core.NewEvent("inv-1", "checker")
	tc.InternalApplyActions(&ev)
	require.NotNil(t, ev.Actions.Escalate)
	assert.True(t, *ev.Actions.Escalate)
}

type fakeDelegateAgent struct {
	name      string
	reply     string
	stateKey  string
	runErr    error
	silent    bool
	received  string
	gotBranch string
}

func (f *fakeDelegateAgent) Name() string                       { return f.name }
func (f *fakeDelegateAgent) Description() string                { return "fake delegate" }
func (f *fakeDelegateAgent) Start(_ *core.RunContext) error     { return nil }
func (f *fakeDelegateAgent) Stop(_ *core.RunContext) error      { return nil }
func (f *fakeDelegateAgent) SetSubAgents(_ ...core.Agent) error { return nil }
func (f *fakeDelegateAgent) SubAgents() []core.Agent            { return nil }
func (f *fakeDelegateAgent) Parent() core.Agent                 { return nil }
func (f *fakeDelegateAgent) FindAgent(name string) core.Agent   { return nil }

func (f *fakeDelegateAgent) Run(rc *core.RunContext) error {
	f.gotBranch = rc.Branch
	for _, p := range rc.UserContent.Parts {
		if tp, ok := p.(core.TextPart); ok {
			f.received += tp.Text
		}
	}
	if f.runErr != nil {
		return f.runErr
	}
	if f.silent {
		return nil
	}

	ev := core.NewEvent(rc.InvocationID, f.name)
	ev.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: f.reply}}}
	if f.stateKey != "" {
		ev.Actions.StateDelta = map[string]any{f.stateKey: f.reply}
	}
	return rc.EmitEvent(ev)
}

func TestAgentTool_DelegatesAndMergesState(t *testing.T) {
	rc := stubRunContext()
	tc := core.NewToolContext(rc, "fc-agent")

	delegate := &fakeDelegateAgent{name: "tech_researcher", reply: "AI advances rapidly.", stateKey: "tech_research"}
	at := NewAgentTool(delegate)

	assert.Equal(t, "tech_researcher", at.Name())

	res, err := at.Call(tc, map[string]any{"request": "latest AI trends"})
	require.NoError(t, err)
	assert.Equal(t, "AI advances rapidly.", res)

	// Delegate saw the request as its user content and ran on its own branch.
	assert.Equal(t, "latest AI trends", delegate.received)
	assert.Equal(t, "tech_researcher", delegate.gotBranch)

	// Delegate's output key surfaced through the parent tool context.
	assert.Equal(t, "AI advances rapidly.", tc.Actions().StateDelta["tech_research"])
}

func TestAgentTool_MissingRequest(t *testing.T) {
	tc := core.NewToolContext(stubRunContext(), "fc-agent2")
	at := NewAgentTool(&fakeDelegateAgent{name: "helper", reply: "ok"})

	_, err := at.Call(tc, map[string]any{})
	assert.Error(t, err)
}

func TestAgentTool_DelegateFailure(t *testing.T) {
	tc := core.NewToolContext(stubRunContext(), "fc-agent3")
	at := NewAgentTool(&fakeDelegateAgent{name: "broken", runErr: errors.New("model unavailable")})

	_, err := at.Call(tc, map[string]any{"request": "do it"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestAgentTool_NoFinalResponse(t *testing.T) {
	tc := core.NewToolContext(stubRunContext(), "fc-agent4")
	at := NewAgentTool(&fakeDelegateAgent{name: "mute", silent: true})

	_, err := at.Call(tc, map[string]any{"request": "say something"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no final response")
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Equal(t, "tool error [E123] in demo: something failed", err.Error())

	err = NewToolError("demo", "something failed", "")
	assert.Equal(t, "tool error in demo: something failed", err.Error())
}
