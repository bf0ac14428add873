package testutil

import (
	"slices"

	"github.com/agentflow/agentflow/core"
)

// EventBuilder assembles a core.Event through chained calls:
//
//	ev := NewEventBuilder().Author("agent").Invocation("inv-1").AssistantText("hello").Build()
//
// Parts appear on the event in the order the chain added them. Unset fields
// keep the zero values core.NewEvent assigns.
type EventBuilder struct {
	ev    core.Event
	role  string
	parts []core.Part
}

// NewEventBuilder starts a builder authored by "agent".
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{ev: core.NewEvent("", "agent")}
}

// Author overrides the event author.
func (b *EventBuilder) Author(a string) *EventBuilder { b.ev.Author = a; return b }

// Invocation sets the owning invocation id.
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.ev.InvocationID = id; return b }

// Branch attributes the event to the named parallel branch.
func (b *EventBuilder) Branch(br string) *EventBuilder { b.ev.Branch = &br; return b }

// Partial flags the event as a streaming fragment.
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.ev.Partial = &p; return b }

// UserText appends a text part and marks the content as a user turn.
func (b *EventBuilder) UserText(text string) *EventBuilder { return b.text("user", text) }

// AssistantText appends a text part and marks the content as an assistant
// turn.
func (b *EventBuilder) AssistantText(text string) *EventBuilder { return b.text("assistant", text) }

func (b *EventBuilder) text(role, text string) *EventBuilder {
	b.role = role
	b.parts = append(b.parts, core.TextPart{Text: text})
	return b
}

// FunctionCall appends a tool call part with raw JSON arguments.
func (b *EventBuilder) FunctionCall(name, args string) *EventBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{
		FunctionCall: core.FunctionCall{Name: name, Arguments: args},
	})
	return b
}

// FunctionResponse appends a tool result part; a non-nil err fills the
// response's Error field.
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: fr})
	return b
}

// Escalate raises the escalate action flag.
func (b *EventBuilder) Escalate() *EventBuilder {
	on := true
	b.ev.Actions.Escalate = &on
	return b
}

// LongRunning records suspended tool call ids on the event.
func (b *EventBuilder) LongRunning(ids ...string) *EventBuilder {
	b.ev.LongRunningToolIDs = append(b.ev.LongRunningToolIDs, ids...)
	return b
}

// Build returns the assembled event. Content stays nil when no parts were
// added; otherwise the role defaults to assistant unless a text call chose
// one.
func (b *EventBuilder) Build() core.Event {
	ev := b.ev
	if len(b.parts) == 0 {
		return ev
	}

	role := b.role
	if role == "" {
		role = "assistant"
	}
	ev.Content = &core.Content{Role: role, Parts: slices.Clone(b.parts)}
	return ev
}
