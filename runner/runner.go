package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentflow/agentflow/artifact"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/logging"
	"github.com/agentflow/agentflow/memory"
	"github.com/agentflow/agentflow/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits concurrent agent invocations.
	MaxConcurrentInvocations int
	// EnableStreaming forwards partial (streaming) events to the consumer.
	// When false only completed events are delivered; persistence and resume
	// signalling are unaffected.
	EnableStreaming bool
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per invocation.
	MaxModelCalls int
	// Session management services.
	SessionStore core.SessionStore
	// Artifact management services.
	ArtifactStore core.ArtifactStore
	// Memory management services.
	MemoryStore core.MemoryStore
	// Logging services.
	Logger logging.Logger
	// Callbacks registered before the first invocation.
	Callbacks []Callback
}

// Runner coordinates agent execution. It builds a run context per
// invocation and streams the resulting events while persisting their side
// effects to the session. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	maxConcurrentInvocations int
	enableStreaming          bool
	eventBufferSize          int
	maxModelCalls            int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger
	callbacks     *CallbackManager
	tracer        trace.Tracer

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		EnableStreaming:          true,
		EventBufferSize:          100,
		MaxModelCalls:            100,
		SessionStore:             session.NewInMemoryStore(),
		ArtifactStore:            artifact.NewInMemoryStore(),
		MemoryStore:              memory.NewInMemoryStore(),
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	callbacks := NewCallbackManager()
	for _, cb := range opts.Callbacks {
		callbacks.RegisterCallback(cb)
	}

	return &Runner{
		agent:                    agent,
		maxConcurrentInvocations: opts.MaxConcurrentInvocations,
		enableStreaming:          opts.EnableStreaming,
		eventBufferSize:          opts.EventBufferSize,
		maxModelCalls:            opts.MaxModelCalls,
		sessionStore:             opts.SessionStore,
		artifactStore:            opts.ArtifactStore,
		memoryStore:              opts.MemoryStore,
		logger:                   opts.Logger,
		callbacks:                callbacks,
		tracer:                   otel.Tracer("agentflow/runner"),
		activeRuns:               make(map[string]context.CancelFunc),
	}
}

// RegisterCallback adds a lifecycle callback. Register before the first
// invocation; the manager is not synchronized for concurrent registration.
func (r *Runner) RegisterCallback(cb Callback) { r.callbacks.RegisterCallback(cb) }

// Run starts an asynchronous invocation of the root agent with fresh user
// content. It returns the invocation id together with the event and error
// streams for this invocation. Both channels are closed when the invocation
// finishes.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	invocationID := core.NewID()

	eventsCh, errorsCh, err := r.start(ctx, sessionID, invocationID, userContent)
	if err != nil {
		return "", nil, nil, err
	}

	return invocationID, eventsCh, errorsCh, nil
}

// Resume answers a pending tool confirmation and re-enters the root agent
// under the SAME invocation id so downstream events stay correlated. The
// approval must reference a confirmation that is still pending in the
// session history; unknown, mismatched or already answered approvals are
// rejected without touching the session.
func (r *Runner) Resume(
	ctx context.Context,
	sessionID, invocationID, approvalID string,
	confirmed bool,
) (<-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if _, err := findPendingConfirmation(sess.GetEvents(), invocationID, approvalID); err != nil {
		return nil, nil, err
	}

	r.logger.Info("runner.resume",
		"session_id", sessionID,
		"invocation_id", invocationID,
		"approval_id", approvalID,
		"confirmed", confirmed,
	)

	return r.start(ctx, sessionID, invocationID, core.NewApprovalContent(approvalID, confirmed))
}

// Cancel cancels a running invocation by id.
func (r *Runner) Cancel(invocationID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[invocationID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	cancel()

	return nil
}

// start persists the incoming user content, builds the run context and spawns
// the agent + event processing goroutines shared by Run and Resume.
func (r *Runner) start(
	ctx context.Context,
	sessionID, invocationID string,
	userContent core.Content,
) (<-chan core.Event, <-chan error, error) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if len(r.activeRuns) >= r.maxConcurrentInvocations {
		r.mu.Unlock()
		cancel()
		return nil, nil, fmt.Errorf("concurrent invocation limit (%d) reached", r.maxConcurrentInvocations)
	}
	if _, active := r.activeRuns[invocationID]; active {
		r.mu.Unlock()
		cancel()
		return nil, nil, fmt.Errorf("invocation %s is already running", invocationID)
	}
	r.activeRuns[invocationID] = cancel
	r.mu.Unlock()

	unregister := func() {
		r.mu.Lock()
		delete(r.activeRuns, invocationID)
		r.mu.Unlock()
		cancel()
	}

	userEvent := core.NewUserContentEvent(invocationID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		unregister()
		return nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	// Snapshot after the append so the flow sees the new user turn in history.
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		unregister()
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	// Parallel branches share one resume channel, so it needs room for a
	// signal per in-flight event.
	resumeCh := make(chan struct{}, r.eventBufferSize)
	agentErrCh := make(chan error, 1)

	spanCtx, span := r.tracer.Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("invocation.id", invocationID),
		attribute.String("agent.name", r.agent.Name()),
	))

	runCtx := core.NewRunContext(core.RunContextParams{
		Context:       spanCtx,
		SessionID:     sessionID,
		InvocationID:  invocationID,
		Agent:         core.AgentInfo{Name: r.agent.Name(), Type: "root"},
		UserContent:   userContent,
		MaxModelCalls: r.maxModelCalls,
		Emit:          agentEmit,
		Resume:        resumeCh,
		Session:       sess,
		SessionStore:  r.sessionStore,
		ArtifactStore: r.artifactStore,
		MemoryStore:   r.memoryStore,
		Logger:        r.logger,
	})

	go func() {
		// Drop the active run before closing the emit channel so the
		// invocation id is reusable once the output channels close.
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, invocationID)
			r.mu.Unlock()
			close(agentEmit)
		}()

		err := r.runAgent(runCtx)
		if err != nil {
			span.RecordError(err)
		}
		span.End()

		agentErrCh <- err
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()

		procErr := r.processEvents(runCtx, cancel, agentEmit, resumeCh, eventsCh)
		agentErr := <-agentErrCh

		switch {
		case procErr != nil:
			errorsCh <- procErr
		case agentErr != nil && runCtx.Err() == nil:
			errorsCh <- fmt.Errorf("agent execution failed: %w", agentErr)
		}
	}()

	return eventsCh, errorsCh, nil
}

// runAgent drives the root agent through its lifecycle and surrounding
// callbacks.
func (r *Runner) runAgent(runCtx *core.RunContext) error {
	cbCtx := &CallbackContext{RunContext: runCtx, AgentName: r.agent.Name()}

	if err := r.callbacks.ExecuteCallbacks(runCtx.Context, CallbackBeforeAgent, cbCtx); err != nil {
		return fmt.Errorf("before agent callback: %w", err)
	}

	if err := r.agent.Start(runCtx); err != nil {
		return err
	}

	// Ensure the agent is stopped when the run context is done
	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			r.logger.Warn("runner.agent.stop", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	if err := r.agent.Run(runCtx); err != nil {
		r.fireErrorCallbacks(runCtx, err)
		return err
	}

	if err := r.callbacks.ExecuteCallbacks(runCtx.Context, CallbackAfterAgent, cbCtx); err != nil {
		return fmt.Errorf("after agent callback: %w", err)
	}

	return nil
}

func (r *Runner) fireErrorCallbacks(runCtx *core.RunContext, cause error) {
	cbCtx := &CallbackContext{
		RunContext: runCtx,
		AgentName:  r.agent.Name(),
		Metadata:   map[string]any{"error": cause.Error()},
	}
	if err := r.callbacks.ExecuteCallbacks(runCtx.Context, CallbackOnError, cbCtx); err != nil {
		r.logger.Warn("runner.callback.on_error", "error", err.Error())
	}
}

// processEvents consumes the agent's emit channel until it closes. On a
// processing failure the run context is cancelled and the remaining events
// are drained so the producer can unwind; the first failure is returned.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	cancel context.CancelFunc,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	var procErr error

	for ev := range agentEmit {
		if procErr != nil {
			continue
		}
		if err := r.handleEvent(runCtx, ev, resumeCh, eventsCh); err != nil {
			procErr = err
			cancel()
		}
	}

	return procErr
}

// handleEvent applies side effects, persists and forwards a single event,
// then releases the producing flow. Order matters: state and tool callbacks
// run before persistence, and the resume signal is sent last so the producer
// only continues once the event is durable.
func (r *Runner) handleEvent(
	runCtx *core.RunContext,
	ev core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	if err := r.applyEventActions(runCtx, ev); err != nil {
		return fmt.Errorf("failed to process event actions: %w", err)
	}

	if err := r.fireToolCallbacks(runCtx, ev); err != nil {
		return err
	}

	if !ev.IsPartial() {
		if err := r.sessionStore.AppendEvent(runCtx.SessionID, ev); err != nil {
			return fmt.Errorf("failed to append event to session: %w", err)
		}
	}

	if !ev.IsPartial() || r.enableStreaming {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case eventsCh <- ev:
			r.logger.Debug("runner.event.delivered",
				"event_id", ev.ID,
				"session_id", runCtx.SessionID,
				"author", ev.Author,
			)
		}
	}

	if !ev.IsPartial() {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case resumeCh <- struct{}{}:
		default:
			r.logger.Warn("runner.resume.dropped", "event_id", ev.ID, "session_id", runCtx.SessionID)
		}
	}

	return nil
}

func (r *Runner) applyEventActions(runCtx *core.RunContext, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		cbCtx := &CallbackContext{RunContext: runCtx, Event: &ev, AgentName: ev.Author}
		if err := r.callbacks.ExecuteCallbacks(runCtx.Context, CallbackOnStateChange, cbCtx); err != nil {
			return fmt.Errorf("state change rejected: %w", err)
		}

		if err := r.sessionStore.ApplyDelta(runCtx.SessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if len(ev.Actions.ArtifactDelta) > 0 {
		// Artifact bytes were already written through the run context; the
		// delta on the event is the durable reference.
		for id, version := range ev.Actions.ArtifactDelta {
			r.logger.Debug("runner.event.artifact",
				"artifact_id", id,
				"version", version,
				"session_id", runCtx.SessionID,
			)
		}
	}

	if len(ev.Actions.RequestedConfirmations) > 0 {
		r.logger.Info("runner.event.confirmation_pending",
			"session_id", runCtx.SessionID,
			"invocation_id", ev.InvocationID,
			"approvals", len(ev.Actions.RequestedConfirmations),
		)
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		r.logger.Debug("runner.event.transfer_to_agent",
			"target", *ev.Actions.TransferToAgent,
			"session_id", runCtx.SessionID,
		)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate", "session_id", runCtx.SessionID)
	}

	return nil
}

// fireToolCallbacks maps event content onto the tool hook points. A model
// turn carrying function calls precedes execution (the flow blocks on resume
// until this event is processed), so CallbackBeforeTool can still veto the
// batch. Function responses have already executed and get CallbackAfterTool.
func (r *Runner) fireToolCallbacks(runCtx *core.RunContext, ev core.Event) error {
	if ev.Content == nil || ev.Content.Role == "user" {
		return nil
	}

	calls := 0
	for _, fc := range ev.GetFunctionCalls() {
		if fc.Name != core.ConfirmationToolName {
			calls++
		}
	}
	if calls > 0 {
		cbCtx := &CallbackContext{RunContext: runCtx, Event: &ev, AgentName: ev.Author}
		if err := r.callbacks.ExecuteCallbacks(runCtx.Context, CallbackBeforeTool, cbCtx); err != nil {
			return fmt.Errorf("before tool callback: %w", err)
		}
	}

	if len(ev.GetFunctionResponses()) > 0 {
		cbCtx := &CallbackContext{RunContext: runCtx, Event: &ev, AgentName: ev.Author}
		if err := r.callbacks.ExecuteCallbacks(runCtx.Context, CallbackAfterTool, cbCtx); err != nil {
			return fmt.Errorf("after tool callback: %w", err)
		}
	}

	return nil
}

// findPendingConfirmation scans session history newest first for the approval
// id. A confirmation-named function response means the approval was already
// answered; the matching confirmation call is the pending suspension marker.
func findPendingConfirmation(events []core.Event, invocationID, approvalID string) (*core.ConfirmationRequest, error) {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Content == nil {
			continue
		}
		for _, p := range ev.Content.Parts {
			switch part := p.(type) {
			case core.FunctionResponsePart:
				fr := part.FunctionResponse
				if fr.Name == core.ConfirmationToolName && fr.ID == approvalID {
					return nil, fmt.Errorf("approval %s was already answered", approvalID)
				}
			case core.FunctionCallPart:
				fc := part.FunctionCall
				if fc.Name != core.ConfirmationToolName || fc.ID != approvalID {
					continue
				}
				if ev.InvocationID != invocationID {
					return nil, fmt.Errorf("approval %s belongs to invocation %s, not %s", approvalID, ev.InvocationID, invocationID)
				}

				var req core.ConfirmationRequest
				if err := json.Unmarshal([]byte(fc.Arguments), &req); err != nil {
					return nil, fmt.Errorf("decode confirmation request %s: %w", approvalID, err)
				}
				return &req, nil
			}
		}
	}

	return nil, fmt.Errorf("no pending confirmation %s for invocation %s", approvalID, invocationID)
}
