package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/agentflow/agentflow/core"
)

// ToolDefinition wraps one function declaration in the envelope providers expect.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one function offered to the model. Parameters
// is a JSON schema object restricted to the subset every provider accepts.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized model input produced by flows: resolved
// instructions, conversation contents, tool declarations and the streaming
// preference. Provider adapters translate it into vendor wire formats.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage reports the token accounting of a completed generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one chunk emitted by a model. Partial chunks carry streaming
// fragments; the closing chunk has Partial false, a finish reason ("stop",
// "length", "tool_calls") and, when the provider reports it, token usage.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info describes a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal surface flows need to drive generation. Generate
// returns a response channel and an error channel; both close when the
// generation finishes or fails.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)
	Info() Info
}

// MockModel scripts model behavior for tests and examples. Two styles are
// supported: AddResponse maps an exact prompt to a canned completion, while
// QueueTextResponse / QueueFunctionCall / QueueResponse enqueue replies
// consumed one per Generate call regardless of input, which is what
// multi-turn flows (tool round trips, loop critics emitting a sentinel)
// need. Queued replies take precedence over prompt-keyed ones.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	queue     []Response
}

// NewMockModel constructs a MockModel advertising tool support.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsTools: true},
		responses: map[string]string{},
	}
}

// AddResponse registers a canned completion for an exact input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// QueueTextResponse enqueues a plain assistant reply for the next unserved
// Generate call.
func (m *MockModel) QueueTextResponse(text string) {
	m.QueueResponse(Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	})
}

// QueueFunctionCall enqueues an assistant reply requesting execution of the
// named function with the given JSON argument payload. It returns the
// generated call id so tests can correlate the eventual response.
func (m *MockModel) QueueFunctionCall(name, args string) string {
	id := core.NewID()
	m.QueueResponse(Response{
		Content: core.Content{
			Role: "assistant",
			Parts: []core.Part{core.FunctionCallPart{
				FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args},
			}},
		},
		FinishReason: "tool_calls",
	})
	return id
}

// QueueResponse enqueues a fully caller-specified reply.
func (m *MockModel) QueueResponse(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

func (m *MockModel) dequeue() (Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return Response{}, false
	}
	head := m.queue[0]
	m.queue = m.queue[1:]
	return head, true
}

func (m *MockModel) lookup(prompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reply, ok := m.responses[prompt]; ok {
		return reply
	}
	return fmt.Sprintf("Mock response to: %s", prompt)
}

// Generate implements Model. Queued replies are served first; otherwise the
// reply is selected by the text of the last content block and, when
// streaming is requested, delivered rune by rune before the closing chunk.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if queued, ok := m.dequeue(); ok {
			send(ctx, respCh, errCh, queued)
			return
		}

		if len(req.Contents) == 0 {
			errCh <- errors.New("mock model: request has no contents")
			return
		}

		reply := m.lookup(promptText(req.Contents))

		if req.Stream {
			for _, r := range reply {
				if !send(ctx, respCh, errCh, Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: string(r)}}},
				}) {
					return
				}
			}
		}

		send(ctx, respCh, errCh, Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: reply}}},
			FinishReason: "stop",
		})
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// send delivers one chunk, reporting context cancellation on errCh. It
// returns false when the generation should stop.
func send(ctx context.Context, respCh chan<- Response, errCh chan<- error, resp Response) bool {
	select {
	case <-ctx.Done():
		errCh <- ctx.Err()
		return false
	case respCh <- resp:
		return true
	}
}

// promptText concatenates the text parts of the newest content block.
func promptText(contents []core.Content) string {
	last := contents[len(contents)-1]

	var sb strings.Builder
	for _, p := range last.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}
