package core

import (
	"context"
	"fmt"

	"github.com/agentflow/agentflow/logging"
)

// ToolContext is the execution surface handed to a tool for the duration of
// one function call. It exposes the invocation identity, staged access to
// session state, and the orchestration signals a tool may raise (transfer,
// escalation, confirmation requests). Nothing reaches the session until the
// accumulated EventActions are folded into the tool's response event.
type ToolContext struct {
	runCtx       *RunContext
	callID       string
	agent        AgentInfo
	actions      EventActions
	confirmation *ToolConfirmation
	valid        bool

	logSink
}

// NewToolContext binds a tool execution surface to the enclosing run and the
// function call id the model assigned to this invocation.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:  runCtx,
		callID:  functionCallID,
		agent:   runCtx.Agent,
		valid:   true,
		logSink: newLogSink(runCtx.Logger()),
	}
}

// Context returns the cancellation context of the enclosing run.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID identifies the session this call executes in.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// InvocationID identifies the runner invocation that scheduled this call.
func (tc *ToolContext) InvocationID() string { return tc.runCtx.InvocationID }

// FunctionCallID returns the id the model assigned to this function call.
func (tc *ToolContext) FunctionCallID() string { return tc.callID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.agent.Name }

// AgentType returns the category label of the requesting agent.
func (tc *ToolContext) AgentType() string { return tc.agent.Type }

// Logger exposes the run's structured logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.logSink.Logger() }

// GetState reads a state key, preferring values staged during this invocation
// over the persisted session snapshot.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// SetState stages a state write. The value is visible immediately through
// GetState and rides on the tool's response event as part of its state delta.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)

	if tc.actions.StateDelta == nil {
		tc.actions.StateDelta = map[string]any{}
	}
	tc.actions.StateDelta[k] = v
}

// Actions exposes the signals and deltas accumulated so far. The function
// executor folds them into the response event after the call returns.
func (tc *ToolContext) Actions() *EventActions { return &tc.actions }

// SkipSummarization marks the eventual response event so the flow returns the
// raw tool output instead of asking the model to rephrase it.
func (tc *ToolContext) SkipSummarization() {
	on := true
	tc.actions.SkipSummarization = &on
}

// TransferToAgent asks the orchestrator to hand the conversation to another
// agent once this call completes.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.actions.TransferToAgent = &name

	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.callID)
}

// Escalate signals the nearest enclosing loop to stop iterating and surface
// control upward.
func (tc *ToolContext) Escalate() {
	on := true
	tc.actions.Escalate = &on

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.callID)
}

// RequestConfirmation suspends the run until an external approver decides on
// this call. The hint is free text shown to the approver; payload describes
// the pending action in structured form. The request is keyed by the function
// call id so a later resume can route the decision back to this exact call,
// at which point the tool runs again with Confirmation populated.
func (tc *ToolContext) RequestConfirmation(hint string, payload map[string]any) {
	if tc.actions.RequestedConfirmations == nil {
		tc.actions.RequestedConfirmations = map[string]*ToolConfirmation{}
	}
	tc.actions.RequestedConfirmations[tc.callID] = &ToolConfirmation{Hint: hint, Payload: payload}

	tc.LogInfo("tool.confirmation.request", "agent", tc.AgentName(), "function_call_id", tc.callID, "hint", hint)
}

// Confirmation returns the approver's decision on a post-resume re-execution,
// or nil the first time the tool runs.
func (tc *ToolContext) Confirmation() *ToolConfirmation { return tc.confirmation }

// SaveArtifact writes artifact bytes for this session and records the byte
// count in the artifact delta of the eventual response event.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	store := tc.runCtx.ArtifactStore
	if store == nil {
		return ErrNoArtifactStore
	}

	if err := store.Save(tc.SessionID(), id, data); err != nil {
		return err
	}

	if tc.actions.ArtifactDelta == nil {
		tc.actions.ArtifactDelta = map[string]int{}
	}
	tc.actions.ArtifactDelta[id] = len(data)

	return nil
}

// LoadArtifact reads back a previously saved artifact.
func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) {
	store := tc.runCtx.ArtifactStore
	if store == nil {
		return nil, ErrNoArtifactStore
	}

	return store.Get(tc.SessionID(), id)
}

// ListArtifacts lists the artifact ids stored for this session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	store := tc.runCtx.ArtifactStore
	if store == nil {
		return nil, ErrNoArtifactStore
	}

	return store.List(tc.SessionID())
}

// SearchMemory runs a recall query against the session's memory store.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	store := tc.runCtx.MemoryStore
	if store == nil {
		return nil, ErrNoMemoryStore
	}

	return store.Search(tc.SessionID(), q, limit)
}

// StoreMemory writes content with metadata into the session's memory store.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	store := tc.runCtx.MemoryStore
	if store == nil {
		return ErrNoMemoryStore
	}

	return store.Store(tc.SessionID(), content, md)
}

// GetSessionHistory returns the non-partial conversation events recorded for
// the session so far.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}

	return tc.runCtx.Session.GetConversationHistory()
}

// RefreshSession replaces the working session snapshot with the latest
// persisted version.
func (tc *ToolContext) RefreshSession() error {
	store := tc.runCtx.SessionStore
	if store == nil {
		return ErrNoSessionStore
	}

	s, err := store.Get(tc.SessionID())
	if err != nil {
		return err
	}
	tc.runCtx.Session = s

	return nil
}

// EmitEvent pushes an event onto the run's stream without folding in the
// accumulated actions. Long running tools use it for progress updates.
func (tc *ToolContext) EmitEvent(ev Event) error {
	if tc.runCtx.Emit == nil {
		return ErrNoEmitter
	}

	select {
	case <-tc.runCtx.Context.Done():
		return tc.runCtx.Context.Err()
	case tc.runCtx.Emit <- ev:
		return nil
	}
}

// IsValid reports whether the context carries the identity a tool needs to
// act on the session.
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.runCtx != nil && tc.runCtx.SessionID != "" && tc.callID != ""
}

// Validate returns a descriptive error when IsValid is false.
func (tc *ToolContext) Validate() error {
	if !tc.IsValid() {
		return fmt.Errorf("tool context missing session or function call identity")
	}

	return nil
}

// InternalRunContext exposes the enclosing run context to flow internals.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalSetConfirmation injects an approval decision before the flow
// replays a suspended call.
func (tc *ToolContext) InternalSetConfirmation(c *ToolConfirmation) { tc.confirmation = c }

// InternalPendingConfirmation reports the confirmation request this call
// staged, if any. The function executor suspends the run when it is non-nil.
func (tc *ToolContext) InternalPendingConfirmation() *ToolConfirmation {
	return tc.actions.RequestedConfirmations[tc.callID]
}

// InternalApplyActions folds the accumulated actions into ev, logging the
// control-flow signals as they land.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	mergeMap(&ev.Actions.StateDelta, tc.actions.StateDelta)
	mergeMap(&ev.Actions.ArtifactDelta, tc.actions.ArtifactDelta)
	mergeMap(&ev.Actions.RequestedConfirmations, tc.actions.RequestedConfirmations)

	if tc.actions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.actions.TransferToAgent

		tc.LogInfo("tool.transfer.applied", "from_agent", tc.AgentName(), "to_agent", *tc.actions.TransferToAgent, "function_call_id", tc.callID)
	}

	if tc.actions.Escalate != nil {
		ev.Actions.Escalate = tc.actions.Escalate

		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.callID)
	}
}
