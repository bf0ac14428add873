package core

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side effects or orchestration signals attached to an
// Event. All fields are optional pointers or maps so absence stays
// distinguishable from a zero value. The runner interprets them after the
// event is persisted.
type EventActions struct {
	SkipSummarization      *bool                        `json:"skip_summarization,omitempty"`
	StateDelta             map[string]any               `json:"state_delta,omitempty"`
	ArtifactDelta          map[string]int               `json:"artifact_delta,omitempty"`
	TransferToAgent        *string                      `json:"transfer_to_agent,omitempty"`
	Escalate               *bool                        `json:"escalate,omitempty"`
	RequestedConfirmations map[string]*ToolConfirmation `json:"requested_confirmations,omitempty"`
}

// Event is the unit of communication between agents, the runner and external
// clients. After emission it should be treated as immutable. An event carries
// correlation ids (ID, InvocationID, Author), optional role-based Content,
// orchestration directives in Actions, ids of suspended long-running tools,
// error metadata and a UTC timestamp. Content may be nil for control or
// error-only events.
type Event struct {
	ID                 string       `json:"id"`
	InvocationID       string       `json:"invocation_id"`
	Author             string       `json:"author"`
	Actions            EventActions `json:"actions"`
	LongRunningToolIDs []string     `json:"long_running_tool_ids,omitempty"`
	Branch             *string      `json:"branch,omitempty"`
	Timestamp          time.Time    `json:"timestamp"`
	Content            *Content     `json:"content,omitempty"`
	Partial            *bool        `json:"partial,omitempty"`
	TurnComplete       *bool        `json:"turn_complete,omitempty"`
	ErrorCode          *string      `json:"error_code,omitempty"`
	ErrorMessage       *string      `json:"error_message,omitempty"`
}

// NewID generates a unique identifier for events, invocations and function
// calls.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event authored by author and bound to an
// invocation. Prefer the semantic constructors below for messages and
// function traffic.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

func newContentEvent(invocationID, author, role string, parts ...Part) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: role, Parts: parts}
	return e
}

// NewMessageEvent creates an assistant text message. Author can be an agent
// name or a system identifier.
func NewMessageEvent(author, message string) Event {
	return newContentEvent("", author, "assistant", TextPart{Text: message})
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	return newContentEvent(invocationID, "user", "user", TextPart{Text: message})
}

// NewUserContentEvent creates a user-authored event with arbitrary Content,
// for inputs that are not plain text, e.g. a resumed confirmation decision
// delivered as a function response part.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent records an agent requesting execution of a named
// function with raw JSON arguments.
func NewFunctionCallEvent(author, functionName, args string) Event {
	return newContentEvent("", author, "assistant", FunctionCallPart{
		FunctionCall: FunctionCall{Name: functionName, Arguments: args},
	})
}

// NewFunctionResponseEvent records the completion result, or error, of a
// function invocation. A non-nil err has its message copied into the response
// Error field.
func NewFunctionResponseEvent(author, id, functionName string, result any, err error) Event {
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}

	return newContentEvent("", author, "tool", FunctionResponsePart{FunctionResponse: fr})
}

// IsPartial reports whether the event is a streaming fragment that will be
// followed by more events composing the final assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// partsOf extracts every content part of the given concrete type, in order.
func partsOf[T Part](e Event) []T {
	if e.Content == nil {
		return nil
	}

	var out []T
	for _, p := range e.Content.Parts {
		if v, ok := p.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// GetFunctionCalls returns the FunctionCall parts of the event in their
// original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range partsOf[FunctionCallPart](e) {
		calls = append(calls, p.FunctionCall)
	}
	return calls
}

// GetFunctionResponses returns the FunctionResponse parts of the event in
// their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range partsOf[FunctionResponsePart](e) {
		responses = append(responses, p.FunctionResponse)
	}
	return responses
}

// IsFinalResponse reports whether the event completes an assistant turn. An
// event that suspended on long-running tool ids ends the turn immediately, as
// does an explicit skip-summarization signal. Otherwise the turn is complete
// when no tool calls or responses are in flight and the event is not a
// streaming fragment.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}

	if len(e.LongRunningToolIDs) > 0 {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since the Unix
// epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

// mergeMap copies src into *dst, allocating the destination map on first use.
// Empty sources leave the destination untouched.
func mergeMap[M ~map[K]V, K comparable, V any](dst *M, src M) {
	if len(src) == 0 {
		return
	}

	if *dst == nil {
		*dst = make(M, len(src))
	}
	maps.Copy(*dst, src)
}
