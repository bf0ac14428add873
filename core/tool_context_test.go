package core

import "testing"

func TestToolContext_Identity(t *testing.T) {
	rc, _ := newTestRunContext()
	tc := NewToolContext(rc, "call-1")

	if !tc.IsValid() {
		t.Fatal("context built from a live run context should be valid")
	}
	if tc.SessionID() != "sess-x" || tc.InvocationID() != "inv-x" {
		t.Errorf("identity mismatch: %s %s", tc.SessionID(), tc.InvocationID())
	}
	if tc.FunctionCallID() != "call-1" {
		t.Errorf("function call id = %q", tc.FunctionCallID())
	}
	if tc.AgentName() != "Agent1" || tc.AgentType() != "test" {
		t.Errorf("agent info mismatch: %s %s", tc.AgentName(), tc.AgentType())
	}
	if tc.Logger() == nil {
		t.Error("logger should never be nil, even without one configured")
	}
}

func TestToolContext_SetStateStagesDelta(t *testing.T) {
	bare := NewRunContext(RunContextParams{
		SessionID:    "sess-x",
		InvocationID: "inv-x",
		Agent:        AgentInfo{Name: "Agent1", Type: "test"},
	})
	tc := NewToolContext(bare, "call-1")

	tc.SetState("customer_tier", "gold")

	if v, ok := tc.GetState("customer_tier"); !ok || v != "gold" {
		t.Fatalf("staged value not readable: %v %v", v, ok)
	}
	if got := tc.Actions().StateDelta["customer_tier"]; got != "gold" {
		t.Errorf("state delta = %+v", tc.Actions().StateDelta)
	}
}

func TestToolContext_ControlSignals(t *testing.T) {
	rc, _ := newTestRunContext()
	tc := NewToolContext(rc, "call-1")

	tc.SkipSummarization()
	tc.TransferToAgent("TierTwo")
	tc.Escalate()

	actions := tc.Actions()
	if got := actions.SkipSummarization; got == nil || !*got {
		t.Error("SkipSummarization was not staged")
	}
	if got := actions.TransferToAgent; got == nil || *got != "TierTwo" {
		t.Error("TransferToAgent was not staged")
	}
	if got := actions.Escalate; got == nil || !*got {
		t.Error("Escalate was not staged")
	}

	ev := NewEvent("inv-x", "Agent1")
	tc.InternalApplyActions(&ev)
	if ev.Actions.TransferToAgent == nil || *ev.Actions.TransferToAgent != "TierTwo" {
		t.Error("transfer not folded into event")
	}
	if ev.Actions.Escalate == nil || !*ev.Actions.Escalate {
		t.Error("escalate not folded into event")
	}
}

func TestToolContext_ConfirmationLifecycle(t *testing.T) {
	rc, _ := newTestRunContext()
	tc := NewToolContext(rc, "call-42")

	if tc.Confirmation() != nil {
		t.Fatal("first execution should have no confirmation")
	}

	tc.RequestConfirmation("Approve order?", map[string]any{"quantity": 7})

	pending := tc.InternalPendingConfirmation()
	if pending == nil {
		t.Fatal("expected staged confirmation request")
	}
	if pending.Hint != "Approve order?" {
		t.Errorf("hint = %q", pending.Hint)
	}
	if pending.Payload["quantity"].(int) != 7 {
		t.Errorf("payload = %+v", pending.Payload)
	}

	ev := NewEvent("inv-x", "Agent1")
	tc.InternalApplyActions(&ev)
	if ev.Actions.RequestedConfirmations["call-42"] == nil {
		t.Error("confirmation request not merged into event actions")
	}

	replay := NewToolContext(rc, "call-42")
	replay.InternalSetConfirmation(&ToolConfirmation{Confirmed: true})
	if c := replay.Confirmation(); c == nil || !c.Confirmed {
		t.Error("resumed execution should see the decision")
	}
}

func TestToolContext_Artifacts(t *testing.T) {
	rc, _ := newTestRunContext()
	tc := NewToolContext(rc, "call-1")

	if err := tc.SaveArtifact("report.txt", []byte("first draft")); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	b, err := tc.LoadArtifact("report.txt")
	if err != nil || string(b) != "first draft" {
		t.Fatalf("LoadArtifact returned %q, %v", b, err)
	}

	list, err := tc.ListArtifacts()
	if err != nil || len(list) != 1 || list[0] != "report.txt" {
		t.Fatalf("ListArtifacts returned %v, %v", list, err)
	}

	ev := NewEvent("inv-x", "Agent1")
	tc.InternalApplyActions(&ev)
	if ev.Actions.ArtifactDelta["report.txt"] != len("first draft") {
		t.Errorf("artifact delta not merged: %+v", ev.Actions.ArtifactDelta)
	}
}

func TestToolContext_MissingStoresAreExplicit(t *testing.T) {
	bare := NewRunContext(RunContextParams{
		SessionID:    "sess-x",
		InvocationID: "inv-x",
		Agent:        AgentInfo{Name: "Agent1", Type: "test"},
	})
	tc := NewToolContext(bare, "call-1")

	if err := tc.SaveArtifact("a1", nil); err != ErrNoArtifactStore {
		t.Errorf("SaveArtifact err = %v", err)
	}
	if _, err := tc.SearchMemory("q", 1); err != ErrNoMemoryStore {
		t.Errorf("SearchMemory err = %v", err)
	}
	if err := tc.RefreshSession(); err != ErrNoSessionStore {
		t.Errorf("RefreshSession err = %v", err)
	}
	if err := tc.EmitEvent(NewEvent("inv-x", "a")); err != ErrNoEmitter {
		t.Errorf("EmitEvent err = %v", err)
	}
}

func TestToolContext_Memory(t *testing.T) {
	rc, _ := newTestRunContext()
	tc := NewToolContext(rc, "call-1")

	if err := tc.StoreMemory("user prefers metric units", map[string]any{"source": "chat"}); err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}

	res, err := tc.SearchMemory("units", 5)
	if err != nil || len(res) != 1 {
		t.Fatalf("SearchMemory returned %d results, %v", len(res), err)
	}
	if res[0].Content != "canned recall" {
		t.Errorf("unexpected result: %+v", res[0])
	}
}

func TestToolContext_Validate(t *testing.T) {
	var zero ToolContext
	if zero.IsValid() {
		t.Error("zero context should be invalid")
	}
	if err := zero.Validate(); err == nil {
		t.Error("zero context should fail validation")
	}

	rc, _ := newTestRunContext()
	if err := NewToolContext(rc, "call-1").Validate(); err != nil {
		t.Errorf("Validate on a wired context: %v", err)
	}
}
