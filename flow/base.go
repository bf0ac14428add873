package flow

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// BaseFlow drives the request -> model -> tool loop shared by all flows.
// Request processors shape the outgoing model request, response processors
// observe each model chunk, and a FunctionExecutor runs tool batches. Tool
// responses of one batch are folded into a single event so a multi-call turn
// persists atomically.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow for the given agent with the default parallel
// function executor. Processors are registered by the concrete flow types.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 4, PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; order of registration
// defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the executor used for tool batches.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	if executor != nil {
		f.executor = executor
	}
}

// Execute launches the flow asynchronously. Events stream on the first
// channel; a terminal failure (processor failure, model error, exhausted call
// budget) arrives on the error channel. Both channels close when the flow
// finishes.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error, error) {
	if f.agent.GetLLM() == nil {
		return nil, nil, fmt.Errorf("agent %s has no model configured", f.agent.GetName())
	}

	eventChan := make(chan core.Event, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		defer close(errChan)

		if err := f.run(runCtx, eventChan); err != nil {
			errChan <- err
		}
	}()

	return eventChan, errChan, nil
}

func (f *BaseFlow) run(runCtx *core.RunContext, eventChan chan<- core.Event) error {
	// A resumed invocation replays its suspended calls first so the next
	// model turn observes the decided outcome.
	if _, err := f.resumeSuspended(runCtx, eventChan); err != nil {
		return err
	}

	for {
		last, err := f.runOnce(runCtx, eventChan)
		if err != nil {
			return err
		}
		if last == nil {
			return nil
		}

		if target := last.Actions.TransferToAgent; target != nil {
			if err := f.agent.TransferToAgent(runCtx, *target); err != nil {
				return fmt.Errorf("transfer to %s: %w", *target, err)
			}
			return nil
		}
		if last.Actions.Escalate != nil && *last.Actions.Escalate {
			return nil
		}
		if len(last.LongRunningToolIDs) > 0 {
			// Awaiting an external approval; the turn ends here.
			return nil
		}
		// A function response batch feeds the next model turn.
		if len(last.GetFunctionResponses()) > 0 {
			continue
		}
		if last.IsPartial() {
			runCtx.LogWarn("agent.flow.partial_tail", "agent", f.agent.GetName())
			return nil
		}

		return nil
	}
}

// runOnce performs a single model turn including any resulting tool batch and
// returns the last emitted event. A nil event means the model produced no
// output at all.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) (*core.Event, error) {
	// Request builders read the session snapshot; refresh it so this turn
	// sees everything persisted by the previous one.
	f.refreshSession(runCtx)

	req := new(model.Request)
	req.Stream = f.agent.IsStreamingEnabled()

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s: %w", processor.Name(), err)
		}
	}

	f.appendToolDefinitions(req)

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			return nil, err
		}
	}

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for respCh != nil || errCh != nil {
		select {
		case <-runCtx.Context.Done():
			return lastEvent, runCtx.Context.Err()

		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return lastEvent, fmt.Errorf("response processor %s: %w", processor.Name(), err)
				}
			}

			ev := f.newModelEvent(runCtx, resp)
			lastEvent = &ev
			if err := f.emit(runCtx, eventChan, ev); err != nil {
				return lastEvent, err
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				batchLast, err := f.executeFunctionCalls(runCtx, eventChan, fnCalls)
				if err != nil {
					return lastEvent, err
				}
				if batchLast != nil {
					lastEvent = batchLast
				}
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return lastEvent, fmt.Errorf("model generate: %w", err)
			}
		}
	}

	return lastEvent, nil
}

// newModelEvent wraps a model response chunk into an event, marking turn
// completion and staging the agent's output key on final text responses.
func (f *BaseFlow) newModelEvent(runCtx *core.RunContext, resp model.Response) core.Event {
	ev := core.NewEvent(runCtx.InvocationID, f.agent.GetName())
	content := resp.Content
	ev.Content = &content
	partial := resp.Partial
	ev.Partial = &partial
	if runCtx.Branch != "" {
		b := runCtx.Branch
		ev.Branch = &b
	}

	if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
		complete := true
		ev.TurnComplete = &complete

		if key := f.agent.GetOutputKey(); key != "" {
			if text := contentText(ev.Content); text != "" {
				if ev.Actions.StateDelta == nil {
					ev.Actions.StateDelta = map[string]any{}
				}
				ev.Actions.StateDelta[key] = text
			}
		}
	}

	return ev
}

// executeFunctionCalls runs the batch through the function executor and emits
// one merged response event. A staged confirmation suspends the invocation
// instead of looping back into the model.
func (f *BaseFlow) executeFunctionCalls(runCtx *core.RunContext, eventChan chan<- core.Event, fnCalls []core.FunctionCall) (*core.Event, error) {
	var (
		mu        sync.Mutex
		collected []core.Event
	)
	collect := func(ev core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		collected = append(collected, ev)
		return nil
	}

	f.executor.Execute(runCtx, f.agent, f.toolRegistry(), fnCalls, collect)

	if len(collected) == 0 {
		return nil, nil
	}

	merged := f.mergeFunctionResponses(runCtx, collected)

	if len(merged.Actions.RequestedConfirmations) > 0 {
		return f.suspendForConfirmation(runCtx, eventChan, fnCalls, merged)
	}

	if err := f.emit(runCtx, eventChan, merged); err != nil {
		return &merged, err
	}

	return &merged, nil
}

// suspendForConfirmation persists the pending tool records, then surfaces the
// approvals as a long-running confirmation call that terminates the turn. The
// emitted call carries everything a later resume needs to replay the original
// invocation.
func (f *BaseFlow) suspendForConfirmation(runCtx *core.RunContext, eventChan chan<- core.Event, fnCalls []core.FunctionCall, merged core.Event) (*core.Event, error) {
	if err := f.emit(runCtx, eventChan, merged); err != nil {
		return &merged, err
	}

	var (
		ids   []string
		parts []core.Part
	)
	for _, fc := range fnCalls {
		conf, ok := merged.Actions.RequestedConfirmations[fc.ID]
		if !ok {
			continue
		}

		args, err := json.Marshal(core.ConfirmationRequest{
			ApprovalID:   fc.ID,
			InvocationID: runCtx.InvocationID,
			Hint:         conf.Hint,
			Payload:      conf.Payload,
			OriginalCall: fc,
		})
		if err != nil {
			return &merged, fmt.Errorf("encode confirmation request: %w", err)
		}

		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        fc.ID,
			Name:      core.ConfirmationToolName,
			Arguments: string(args),
		}})
		ids = append(ids, fc.ID)
	}

	ev := core.NewEvent(runCtx.InvocationID, f.agent.GetName())
	ev.Content = &core.Content{Role: "assistant", Parts: parts}
	ev.LongRunningToolIDs = ids
	if runCtx.Branch != "" {
		b := runCtx.Branch
		ev.Branch = &b
	}

	runCtx.LogInfo("agent.confirmation.suspend", "agent", f.agent.GetName(), "approvals", len(ids))

	if err := f.emit(runCtx, eventChan, ev); err != nil {
		return &ev, err
	}

	return &ev, nil
}

// resumeSuspended replays tool calls suspended for confirmation when the
// invocation input carries approval decisions. It reports whether at least
// one suspended call owned by this agent was replayed.
func (f *BaseFlow) resumeSuspended(runCtx *core.RunContext, eventChan chan<- core.Event) (bool, error) {
	decisions := collectDecisions(runCtx.UserContent)
	if len(decisions) == 0 {
		return false, nil
	}

	f.refreshSession(runCtx)

	registry := f.toolRegistry()
	replayed := make([]core.Event, 0, len(decisions))
	for _, dec := range decisions {
		req, ok := f.findSuspendedCall(runCtx, dec.approvalID)
		if !ok {
			continue
		}

		toolCtx := core.NewToolContext(runCtx, req.OriginalCall.ID)
		toolCtx.InternalSetConfirmation(&core.ToolConfirmation{
			Hint:      req.Hint,
			Payload:   req.Payload,
			Confirmed: dec.confirmed,
		})

		runCtx.LogInfo("agent.confirmation.replay",
			"agent", f.agent.GetName(),
			"function", req.OriginalCall.Name,
			"approval_id", dec.approvalID,
			"confirmed", dec.confirmed,
		)

		result, err := dispatchTool(registry, toolCtx, req.OriginalCall.Name, req.OriginalCall.Arguments)
		respEv := core.NewFunctionResponseEvent(f.agent.GetName(), req.OriginalCall.ID, req.OriginalCall.Name, result, err)
		toolCtx.InternalApplyActions(&respEv)
		replayed = append(replayed, respEv)
	}

	if len(replayed) == 0 {
		return false, nil
	}

	merged := f.mergeFunctionResponses(runCtx, replayed)
	if err := f.emit(runCtx, eventChan, merged); err != nil {
		return true, err
	}

	return true, nil
}

// findSuspendedCall locates the confirmation request this agent emitted for
// approvalID and returns the recorded original call.
func (f *BaseFlow) findSuspendedCall(runCtx *core.RunContext, approvalID string) (*core.ConfirmationRequest, bool) {
	events := runCtx.GetSessionHistory()
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Author != f.agent.GetName() || ev.Content == nil {
			continue
		}
		for _, p := range ev.Content.Parts {
			fc, ok := p.(core.FunctionCallPart)
			if !ok || fc.FunctionCall.Name != core.ConfirmationToolName || fc.FunctionCall.ID != approvalID {
				continue
			}

			var req core.ConfirmationRequest
			if err := json.Unmarshal([]byte(fc.FunctionCall.Arguments), &req); err != nil {
				runCtx.LogError("agent.confirmation.decode", "approval_id", approvalID, "error", err.Error())
				return nil, false
			}
			return &req, true
		}
	}
	return nil, false
}

// mergeFunctionResponses folds per-call response events into one batch event.
// Responses keep executor emission order; actions are merged with sticky
// escalation flags and last-writer-wins transfer targets.
func (f *BaseFlow) mergeFunctionResponses(runCtx *core.RunContext, events []core.Event) core.Event {
	merged := core.NewEvent(runCtx.InvocationID, f.agent.GetName())
	content := core.Content{Role: "tool"}

	for _, ev := range events {
		if ev.Content != nil {
			content.Parts = append(content.Parts, ev.Content.Parts...)
		}
		mergeEventActions(&merged.Actions, ev.Actions)
	}

	merged.Content = &content
	if runCtx.Branch != "" {
		b := runCtx.Branch
		merged.Branch = &b
	}
	return merged
}

func mergeEventActions(dst *core.EventActions, src core.EventActions) {
	if len(src.StateDelta) > 0 {
		if dst.StateDelta == nil {
			dst.StateDelta = map[string]any{}
		}
		maps.Copy(dst.StateDelta, src.StateDelta)
	}
	if len(src.ArtifactDelta) > 0 {
		if dst.ArtifactDelta == nil {
			dst.ArtifactDelta = map[string]int{}
		}
		maps.Copy(dst.ArtifactDelta, src.ArtifactDelta)
	}
	if src.TransferToAgent != nil {
		dst.TransferToAgent = src.TransferToAgent
	}
	if src.Escalate != nil && *src.Escalate {
		dst.Escalate = src.Escalate
	}
	if src.SkipSummarization != nil && *src.SkipSummarization {
		dst.SkipSummarization = src.SkipSummarization
	}
	if len(src.RequestedConfirmations) > 0 {
		if dst.RequestedConfirmations == nil {
			dst.RequestedConfirmations = map[string]*core.ToolConfirmation{}
		}
		maps.Copy(dst.RequestedConfirmations, src.RequestedConfirmations)
	}
}

// emit forwards one event and, for non-partial events, waits for the runner's
// persistence acknowledgement so the next model turn reads committed history.
func (f *BaseFlow) emit(runCtx *core.RunContext, eventChan chan<- core.Event, ev core.Event) error {
	select {
	case <-runCtx.Context.Done():
		return runCtx.Context.Err()
	case eventChan <- ev:
	}

	if ev.IsPartial() || runCtx.Resume == nil {
		return nil
	}

	select {
	case <-runCtx.Context.Done():
		return runCtx.Context.Err()
	case <-runCtx.Resume:
		return nil
	}
}

// appendToolDefinitions exposes the agent's registered tools to the model,
// skipping names a request processor already declared.
func (f *BaseFlow) appendToolDefinitions(req *model.Request) {
	if !f.agent.IsFunctionCallingEnabled() {
		return
	}

	declared := make(map[string]bool, len(req.Tools))
	for _, td := range req.Tools {
		declared[td.Function.Name] = true
	}

	tools := f.agent.GetTools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if declared[name] {
			continue
		}
		t := tools[name]
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
}

// toolRegistry returns the executable tool set for this turn. Transfer-capable
// agents get the transfer tool registered implicitly so the injected
// declaration always has a backing implementation.
func (f *BaseFlow) toolRegistry() map[string]tool.Tool {
	tools := f.agent.GetTools()
	registry := make(map[string]tool.Tool, len(tools)+1)
	for name, t := range tools {
		registry[name] = t
	}

	if f.agent.IsTransferEnabled() && len(f.agent.GetSubAgents()) > 0 {
		if _, ok := registry[transferToolName]; !ok {
			registry[transferToolName] = tool.NewTransferToAgentTool()
		}
	}

	return registry
}

func (f *BaseFlow) refreshSession(runCtx *core.RunContext) {
	if runCtx.SessionStore == nil {
		return
	}
	if latest, err := runCtx.SessionStore.Get(runCtx.SessionID); err == nil && latest != nil {
		runCtx.Session = latest
	}
}

// approvalDecision is one confirmation outcome extracted from resumed user content.
type approvalDecision struct {
	approvalID string
	confirmed  bool
}

func collectDecisions(content core.Content) []approvalDecision {
	var out []approvalDecision
	for _, p := range content.Parts {
		fr, ok := p.(core.FunctionResponsePart)
		if !ok || fr.FunctionResponse.Name != core.ConfirmationToolName {
			continue
		}
		out = append(out, approvalDecision{
			approvalID: fr.FunctionResponse.ID,
			confirmed:  decisionConfirmed(fr.FunctionResponse.Response),
		})
	}
	return out
}

func decisionConfirmed(v any) bool {
	switch resp := v.(type) {
	case core.ConfirmationResponse:
		return resp.Confirmed
	case *core.ConfirmationResponse:
		return resp.Confirmed
	case map[string]any:
		b, _ := resp["confirmed"].(bool)
		return b
	}
	return false
}

// contentText concatenates all text parts of a content block.
func contentText(c *core.Content) string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}
