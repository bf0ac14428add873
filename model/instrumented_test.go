package model

import (
	"context"
	"testing"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/telemetry"
)

func TestInstrumentedModel_PassThrough(t *testing.T) {
	inner := NewMockModel("mock", "test")
	inner.QueueTextResponse("pass through")

	m := NewInstrumentedModel(inner, nil)
	if m.Info().Name != "mock" {
		t.Fatalf("Info should delegate, got %+v", m.Info())
	}

	req := Request{Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}}}}
	respCh, errCh := m.Generate(context.Background(), req)
	responses := collect(t, respCh, errCh)

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	tp, ok := responses[0].Content.Parts[0].(core.TextPart)
	if !ok || tp.Text != "pass through" {
		t.Fatalf("unexpected response part: %+v", responses[0].Content.Parts[0])
	}
}

func TestInstrumentedModel_RecordsUsage(t *testing.T) {
	metrics, err := telemetry.NewModelMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	inner := NewMockModel("mock", "test")
	inner.QueueResponse(Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "done"}}},
		FinishReason: "stop",
		Usage:        &TokenUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
	})

	m := NewInstrumentedModel(inner, metrics)
	req := Request{Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}}}}
	respCh, errCh := m.Generate(context.Background(), req)
	responses := collect(t, respCh, errCh)

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].Usage == nil || responses[0].Usage.TotalTokens != 16 {
		t.Fatalf("usage should survive the wrapper: %+v", responses[0].Usage)
	}
}

func TestInstrumentedModel_ForwardsErrors(t *testing.T) {
	inner := NewMockModel("mock", "test")
	m := NewInstrumentedModel(inner, nil)

	// No queued reply and no contents makes the mock fail.
	respCh, errCh := m.Generate(context.Background(), Request{})
	for range respCh {
	}
	if err := <-errCh; err == nil {
		t.Fatal("expected the inner error to be forwarded")
	}
}
