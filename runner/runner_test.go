package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/session"
	"github.com/agentflow/agentflow/tool"
)

// scriptedAgent is a root agent whose Run body is supplied by the test.
type scriptedAgent struct {
	agent.BaseAgent
	runFn func(rc *core.RunContext) error
}

func newScriptedAgent(name string, runFn func(rc *core.RunContext) error) *scriptedAgent {
	return &scriptedAgent{BaseAgent: agent.NewBaseAgent(name), runFn: runFn}
}

func (a *scriptedAgent) Run(rc *core.RunContext) error { return a.runFn(rc) }

func userText(text string) core.Content {
	return core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}
}

// drain collects all events and the terminal error (if any) from one
// invocation. It fails the test when the invocation does not finish.
func drain(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()

	var (
		collected []core.Event
		runErr    error
	)
	timeout := time.After(5 * time.Second)
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			collected = append(collected, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && runErr == nil {
				runErr = err
			}
		case <-timeout:
			t.Fatal("invocation did not finish")
		}
	}
	return collected, runErr
}

func TestRunner_Run_PersistsEventsAndState(t *testing.T) {
	root := newScriptedAgent("Greeter", func(rc *core.RunContext) error {
		rc.SetState("greeting", "hello")
		ev := core.NewEvent(rc.InvocationID, "Greeter")
		ev.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "hello there"}}}
		if err := rc.EmitEvent(ev); err != nil {
			return err
		}
		return rc.WaitForResume()
	})

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) { o.SessionStore = store })

	invocationID, events, errs, err := r.Run(context.Background(), "sess-1", userText("hi"))
	require.NoError(t, err)
	require.NotEmpty(t, invocationID)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, collected, 1)
	assert.Equal(t, "Greeter", collected[0].Author)
	assert.Equal(t, invocationID, collected[0].InvocationID)
	assert.Equal(t, "hello", collected[0].Actions.StateDelta["greeting"])

	sess, err := store.Get("sess-1")
	require.NoError(t, err)

	history := sess.GetEvents()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "Greeter", history[1].Author)

	greeting, ok := sess.GetState("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", greeting)
}

func TestRunner_Run_AgentErrorSurfaces(t *testing.T) {
	boom := errors.New("boom")
	root := newScriptedAgent("Faulty", func(rc *core.RunContext) error { return boom })

	r := New(root)

	_, events, errs, err := r.Run(context.Background(), "sess-err", userText("go"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	assert.Empty(t, collected)
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, boom)
	assert.Contains(t, runErr.Error(), "agent execution failed")
}

func TestRunner_Run_StreamingDisabledFiltersPartials(t *testing.T) {
	partial := true
	root := newScriptedAgent("Streamer", func(rc *core.RunContext) error {
		chunk := core.NewEvent(rc.InvocationID, "Streamer")
		chunk.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "par"}}}
		chunk.Partial = &partial
		if err := rc.EmitEvent(chunk); err != nil {
			return err
		}

		final := core.NewEvent(rc.InvocationID, "Streamer")
		final.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "partial"}}}
		if err := rc.EmitEvent(final); err != nil {
			return err
		}
		return rc.WaitForResume()
	})

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) {
		o.SessionStore = store
		o.EnableStreaming = false
	})

	_, events, errs, err := r.Run(context.Background(), "sess-stream", userText("stream"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, collected, 1)
	assert.False(t, collected[0].IsPartial())

	sess, err := store.Get("sess-stream")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 2) // user turn + final; partials are never persisted
}

func TestRunner_Cancel(t *testing.T) {
	root := newScriptedAgent("Blocker", func(rc *core.RunContext) error {
		<-rc.Done()
		return rc.Err()
	})

	r := New(root)

	invocationID, events, errs, err := r.Run(context.Background(), "sess-cancel", userText("wait"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(invocationID))

	collected, runErr := drain(t, events, errs)
	assert.Empty(t, collected)
	assert.NoError(t, runErr) // cancellation is not reported as an agent failure

	assert.Error(t, r.Cancel(invocationID))
	assert.Error(t, r.Cancel("unknown-invocation"))
}

func TestRunner_ConcurrentInvocationLimit(t *testing.T) {
	release := make(chan struct{})
	root := newScriptedAgent("Slow", func(rc *core.RunContext) error {
		select {
		case <-release:
			return nil
		case <-rc.Done():
			return rc.Err()
		}
	})

	r := New(root, func(o *Options) { o.MaxConcurrentInvocations = 1 })

	_, events, errs, err := r.Run(context.Background(), "sess-limit", userText("first"))
	require.NoError(t, err)

	_, _, _, err = r.Run(context.Background(), "sess-limit", userText("second"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrent invocation limit")

	close(release)
	_, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	_, events, errs, err = r.Run(context.Background(), "sess-limit", userText("third"))
	require.NoError(t, err)
	_, runErr = drain(t, events, errs)
	require.NoError(t, runErr)
}

func TestRunner_BeforeAgentCallbackVeto(t *testing.T) {
	ran := false
	root := newScriptedAgent("Guarded", func(rc *core.RunContext) error {
		ran = true
		return nil
	})

	r := New(root, func(o *Options) {
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackBeforeAgent, func(ctx context.Context, cc *CallbackContext) error {
				return errors.New("not allowed")
			}),
		}
	})

	_, events, errs, err := r.Run(context.Background(), "sess-veto", userText("go"))
	require.NoError(t, err)

	_, runErr := drain(t, events, errs)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "before agent callback")
	assert.False(t, ran)
}

func TestRunner_AgentCallbackOrder(t *testing.T) {
	var order []string
	root := newScriptedAgent("Observed", func(rc *core.RunContext) error {
		order = append(order, "run")
		return nil
	})

	record := func(label string) Callback {
		return NewFunctionCallback(CallbackType(label), func(ctx context.Context, cc *CallbackContext) error {
			order = append(order, label)
			return nil
		})
	}

	r := New(root, func(o *Options) {
		o.Callbacks = []Callback{record(string(CallbackBeforeAgent)), record(string(CallbackAfterAgent))}
	})

	_, events, errs, err := r.Run(context.Background(), "sess-order", userText("go"))
	require.NoError(t, err)
	_, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	assert.Equal(t, []string{"before_agent", "run", "after_agent"}, order)
}

func TestRunner_ErrorCallbackFires(t *testing.T) {
	var captured string
	root := newScriptedAgent("Faulty", func(rc *core.RunContext) error {
		return errors.New("tool exploded")
	})

	r := New(root, func(o *Options) {
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackOnError, func(ctx context.Context, cc *CallbackContext) error {
				captured, _ = cc.Metadata["error"].(string)
				return nil
			}),
		}
	})

	_, events, errs, err := r.Run(context.Background(), "sess-onerr", userText("go"))
	require.NoError(t, err)
	_, runErr := drain(t, events, errs)
	require.Error(t, runErr)

	assert.Equal(t, "tool exploded", captured)
}

func TestRunner_StateValidationRejectsDelta(t *testing.T) {
	root := newScriptedAgent("Mutator", func(rc *core.RunContext) error {
		rc.SetState("forbidden", true)
		ev := core.NewEvent(rc.InvocationID, "Mutator")
		ev.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "done"}}}
		if err := rc.EmitEvent(ev); err != nil {
			return err
		}
		return rc.WaitForResume()
	})

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) {
		o.SessionStore = store
		o.Callbacks = []Callback{
			NewStateValidationCallback(func(delta map[string]any) error {
				if _, ok := delta["forbidden"]; ok {
					return errors.New("forbidden key")
				}
				return nil
			}),
		}
	})

	_, events, errs, err := r.Run(context.Background(), "sess-validate", userText("go"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	assert.Empty(t, collected)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "state change rejected")

	sess, err := store.Get("sess-validate")
	require.NoError(t, err)
	_, ok := sess.GetState("forbidden")
	assert.False(t, ok)
	assert.Len(t, sess.GetEvents(), 1) // only the user turn survived
}

func TestRunner_Run_ModelAgentOutputKey(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.QueueTextResponse("The answer is 42.")

	oracle := agent.NewModelAgent("Oracle", llm, func(o *agent.ModelAgentOptions) {
		o.EnableStreaming = false
		o.AllowTransfer = false
		o.OutputKey = "answer"
	})

	store := session.NewInMemoryStore()
	r := New(oracle, func(o *Options) { o.SessionStore = store })

	_, events, errs, err := r.Run(context.Background(), "sess-oracle", userText("what is the answer?"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, collected, 1)
	assert.Equal(t, "Oracle", collected[0].Author)
	assert.True(t, collected[0].IsFinalResponse())

	sess, err := store.Get("sess-oracle")
	require.NoError(t, err)
	answer, ok := sess.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "The answer is 42.", answer)
}

// gatedOrderTool returns a place_order function tool that requires approval
// above a count of 5.
func gatedOrderTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"place_order",
		"Places an order for the given item count.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"count": map[string]any{"type": "integer"},
			},
			"required": []string{"count"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			count, _ := args["count"].(float64)
			if conf := tc.Confirmation(); conf != nil {
				status := "rejected"
				if conf.Confirmed {
					status = "approved"
				}
				return map[string]any{"status": status, "count": count}, nil
			}
			if count > 5 {
				tc.RequestConfirmation("Large order needs approval", map[string]any{"count": count})
				return map[string]any{"status": "pending", "count": count}, nil
			}
			return map[string]any{"status": "approved", "count": count}, nil
		},
	)
}

func TestRunner_ResumeLifecycle(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	approvalID := llm.QueueFunctionCall("place_order", `{"count": 10}`)

	orderAgent := agent.NewModelAgent("OrderAgent", llm, func(o *agent.ModelAgentOptions) {
		o.EnableStreaming = false
		o.AllowTransfer = false
		o.Tools = map[string]tool.Tool{"place_order": gatedOrderTool()}
	})

	store := session.NewInMemoryStore()
	r := New(orderAgent, func(o *Options) { o.SessionStore = store })

	invocationID, events, errs, err := r.Run(context.Background(), "sess-order", userText("order 10 widgets"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, collected, 3)

	// Model turn requesting the tool, pending record, then the suspension.
	require.Len(t, collected[0].GetFunctionCalls(), 1)
	assert.Equal(t, "place_order", collected[0].GetFunctionCalls()[0].Name)

	pending := collected[1].GetFunctionResponses()
	require.Len(t, pending, 1)
	assert.Contains(t, collected[1].Actions.RequestedConfirmations, approvalID)

	suspension := collected[2]
	assert.Equal(t, []string{approvalID}, suspension.LongRunningToolIDs)
	assert.True(t, suspension.IsFinalResponse())

	// Bad identifiers are rejected before touching the session.
	_, _, err = r.Resume(context.Background(), "sess-order", "other-invocation", approvalID, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to invocation")

	_, _, err = r.Resume(context.Background(), "sess-order", invocationID, "no-such-approval", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending confirmation")

	llm.QueueTextResponse("Order confirmed.")

	events, errs, err = r.Resume(context.Background(), "sess-order", invocationID, approvalID, true)
	require.NoError(t, err)

	resumed, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, resumed, 2)

	replay := resumed[0].GetFunctionResponses()
	require.Len(t, replay, 1)
	assert.Equal(t, "place_order", replay[0].Name)
	record, ok := replay[0].Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "approved", record["status"])

	final := resumed[1]
	assert.Equal(t, invocationID, final.InvocationID)
	assert.True(t, final.IsFinalResponse())

	// The decision is burned once it has been answered.
	_, _, err = r.Resume(context.Background(), "sess-order", invocationID, approvalID, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already answered")
}

func TestRunner_Resume_NoPendingConfirmation(t *testing.T) {
	root := newScriptedAgent("Idle", func(rc *core.RunContext) error { return nil })
	r := New(root)

	_, _, err := r.Resume(context.Background(), "sess-empty", "inv-1", "approval-1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending confirmation")
}
