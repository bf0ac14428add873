package workflows

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentflow/agentflow/artifact"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
)

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

// newToolContext builds a ToolContext with an in-memory artifact store for
// calling workflow tools directly, outside a model turn.
func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()

	rc := core.NewRunContext(core.RunContextParams{
		SessionID:     "sess",
		InvocationID:  "inv-1",
		Agent:         core.AgentInfo{Name: "agent", Type: "model"},
		UserContent:   userText("hi"),
		Emit:          make(chan core.Event, 10),
		Session:       core.NewSession("sess"),
		ArtifactStore: artifact.NewInMemoryStore(),
	})
	return core.NewToolContext(rc, core.NewID())
}

// confirmedToolContext builds a ToolContext carrying an answered approval,
// mimicking the replay of a suspended call after resume.
func confirmedToolContext(t *testing.T, confirmed bool) *core.ToolContext {
	t.Helper()

	tc := newToolContext(t)
	tc.InternalSetConfirmation(&core.ToolConfirmation{Confirmed: confirmed})
	return tc
}

// recordingModel wraps a MockModel and records every request so tests can
// inspect the rendered instructions an agent actually received.
type recordingModel struct {
	*model.MockModel
	mu       sync.Mutex
	requests []model.Request
}

func newRecordingModel() *recordingModel {
	return &recordingModel{MockModel: model.NewMockModel("mock", "test")}
}

func (m *recordingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.MockModel.Generate(ctx, req)
}

func (m *recordingModel) recorded() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
