package core

import (
	"encoding/json"
	"testing"
)

func confirmationCallEvent(t *testing.T, invocationID, approvalID, hint string) Event {
	t.Helper()

	args, err := json.Marshal(ConfirmationRequest{
		ApprovalID:   approvalID,
		InvocationID: invocationID,
		Hint:         hint,
		Payload:      map[string]any{"num_containers": float64(10)},
		OriginalCall: FunctionCall{ID: "call-1", Name: "place_shipping_order"},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	ev := NewEvent(invocationID, "ShippingAgent")
	ev.Content = &Content{
		Role: "assistant",
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{
			ID:        approvalID,
			Name:      ConfirmationToolName,
			Arguments: string(args),
		}}},
	}
	ev.LongRunningToolIDs = []string{approvalID}
	return ev
}

func TestFindApprovalRequest(t *testing.T) {
	events := []Event{
		NewUserMessageEvent("inv-1", "ship 10 containers"),
		NewFunctionCallEvent("ShippingAgent", "place_shipping_order", `{"num_containers":10}`),
		confirmationCallEvent(t, "inv-1", "appr-1", "Large order: 10 containers to Tokyo. Approve?"),
	}

	req := FindApprovalRequest(events)
	if req == nil {
		t.Fatal("expected a pending approval request")
	}
	if req.ApprovalID != "appr-1" || req.InvocationID != "inv-1" {
		t.Fatalf("unexpected correlation pair: %+v", req)
	}
	if req.Hint != "Large order: 10 containers to Tokyo. Approve?" {
		t.Fatalf("unexpected hint: %s", req.Hint)
	}
	if req.Payload["num_containers"] != float64(10) {
		t.Fatalf("unexpected payload: %+v", req.Payload)
	}
	if req.OriginalCall.Name != "place_shipping_order" {
		t.Fatalf("original call not preserved: %+v", req.OriginalCall)
	}
}

func TestFindApprovalRequest_NonePending(t *testing.T) {
	events := []Event{
		NewUserMessageEvent("inv-1", "ship 2 containers"),
		NewMessageEvent("ShippingAgent", "Order ORD-2-AUTO approved."),
	}
	if req := FindApprovalRequest(events); req != nil {
		t.Fatalf("expected nil, got %+v", req)
	}

	if req := FindApprovalRequest(nil); req != nil {
		t.Fatalf("expected nil for empty history, got %+v", req)
	}
}

func TestFindApprovalRequest_SkipsAnswered(t *testing.T) {
	answer := NewEvent("inv-1", "user")
	answerContent := NewApprovalContent("appr-1", true)
	answer.Content = &answerContent

	events := []Event{
		confirmationCallEvent(t, "inv-1", "appr-1", "Approve?"),
		answer,
	}
	if req := FindApprovalRequest(events); req != nil {
		t.Fatalf("answered approval should not be reported, got %+v", req)
	}

	// A newer unanswered request is still found behind the answered one.
	events = append(events, confirmationCallEvent(t, "inv-2", "appr-2", "Approve again?"))
	req := FindApprovalRequest(events)
	if req == nil || req.ApprovalID != "appr-2" || req.InvocationID != "inv-2" {
		t.Fatalf("expected appr-2 pending, got %+v", req)
	}
}

func TestFindApprovalRequest_FillsCorrelationFromEvent(t *testing.T) {
	// Requests serialized without explicit ids fall back to the call id and
	// the carrying event's invocation id.
	ev := NewEvent("inv-9", "ImageAgent")
	ev.Content = &Content{
		Role: "assistant",
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{
			ID:        "appr-9",
			Name:      ConfirmationToolName,
			Arguments: `{"hint":"Generate 5 images?"}`,
		}}},
	}

	req := FindApprovalRequest([]Event{ev})
	if req == nil {
		t.Fatal("expected a pending approval request")
	}
	if req.ApprovalID != "appr-9" || req.InvocationID != "inv-9" {
		t.Fatalf("correlation fallback failed: %+v", req)
	}
}

func TestNewApprovalContent(t *testing.T) {
	content := NewApprovalContent("appr-1", true)

	if content.Role != "user" {
		t.Fatalf("expected user role, got %s", content.Role)
	}
	if len(content.Parts) != 1 {
		t.Fatalf("expected a single part, got %d", len(content.Parts))
	}

	part, ok := content.Parts[0].(FunctionResponsePart)
	if !ok {
		t.Fatalf("expected a function response part, got %T", content.Parts[0])
	}
	fr := part.FunctionResponse
	if fr.ID != "appr-1" || fr.Name != ConfirmationToolName {
		t.Fatalf("unexpected response identity: %+v", fr)
	}
	decision, ok := fr.Response.(ConfirmationResponse)
	if !ok || !decision.Confirmed {
		t.Fatalf("unexpected decision payload: %+v", fr.Response)
	}

	denied := NewApprovalContent("appr-2", false)
	fr = denied.Parts[0].(FunctionResponsePart).FunctionResponse
	if fr.Response.(ConfirmationResponse).Confirmed {
		t.Fatal("expected denied decision")
	}
}
