package session

import (
	"testing"

	"github.com/agentflow/agentflow/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_LazyCreateOnGet(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sess.ID != "s1" {
		t.Errorf("expected session id s1, got %q", sess.ID)
	}
	if len(sess.State) != 0 || len(sess.Events) != 0 {
		t.Errorf("expected empty fresh session, got state=%v events=%d", sess.State, len(sess.Events))
	}
}

func TestInMemoryStore_ApplyDeltaVisibleOnNextGet(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.ApplyDelta("s1", map[string]interface{}{"blog_outline": "intro"}); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if err := store.ApplyDelta("s1", map[string]interface{}{"blog_outline": "revised"}); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := sess.State["blog_outline"]; got != "revised" {
		t.Errorf("expected last write to win, got %v", got)
	}
}

func TestInMemoryStore_AppendEventOrdering(t *testing.T) {
	store := NewInMemoryStore()

	first := core.NewUserMessageEvent("inv-1", "hello")
	second := core.NewMessageEvent("writer", "draft one")
	if err := store.AppendEvent("s1", first); err != nil {
		t.Fatalf("AppendEvent returned error: %v", err)
	}
	if err := store.AppendEvent("s1", second); err != nil {
		t.Fatalf("AppendEvent returned error: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(sess.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sess.Events))
	}
	if sess.Events[0].ID != first.ID || sess.Events[1].ID != second.ID {
		t.Errorf("events out of order: %q, %q", sess.Events[0].ID, sess.Events[1].ID)
	}
}

func TestInMemoryStore_GetReturnsClone(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.ApplyDelta("s1", map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}

	sess, _ := store.Get("s1")
	sess.State["k"] = "mutated"

	fresh, _ := store.Get("s1")
	if got := fresh.State["k"]; got != "v" {
		t.Errorf("external mutation leaked into store: got %v", got)
	}
}

func TestInMemoryStore_CreateResetsExisting(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.ApplyDelta("s1", map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if _, err := store.Create("s1"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	sess, _ := store.Get("s1")
	if len(sess.State) != 0 {
		t.Errorf("expected Create to reset state, got %v", sess.State)
	}
}
