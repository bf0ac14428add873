// Package openai adapts the OpenAI Chat Completions API to AgentFlow's
// model.Model interface. Both streaming and single-shot generation are
// supported, and tool calls round-trip through the normalized
// Request/Response structures.
package openai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/openai/openai-go"
)

// Options control the completion parameters sent with every request.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model speaks the Chat Completions protocol through the official client.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// NewModel builds a Model with a client configured from the environment
// (OPENAI_API_KEY and friends).
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient builds a Model around a caller-supplied client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate converts the request into Chat Completions parameters and runs
// it, streaming when req.Stream is set. Responses and errors arrive on the
// returned channels; both close when generation ends.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		var err error
		if req.Stream {
			err = m.streamCompletion(ctx, m.requestParams(req), out)
		} else {
			err = m.completeOnce(ctx, m.requestParams(req), out)
		}
		if err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func (m *Model) requestParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            chatMessages(req.Contents),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}
	return params
}

// chatMessages flattens normalized contents into the SDK message union.
// The API wants each tool result directly after the assistant turn that
// issued the call, so results are indexed up front and spliced in as the
// transcript is walked. Results whose call never appears are appended at
// the end rather than dropped.
func chatMessages(contents []core.Content) []openai.ChatCompletionMessageParamUnion {
	pending, order := indexToolResults(contents)
	var msgs []openai.ChatCompletionMessageParamUnion
	for _, c := range contents {
		switch c.Role {
		case "tool":
			// spliced in next to the matching assistant turn
		case "system":
			msgs = append(msgs, openai.SystemMessage(flatText(c)))
		case "user":
			msgs = append(msgs, openai.UserMessage(flatText(c)))
		case "assistant":
			msgs = append(msgs, assistantTurn(c, pending)...)
		default:
			if text := flatText(c); text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}
	for _, id := range order {
		if result, ok := pending[id]; ok {
			msgs = append(msgs, openai.ToolMessage(result, id))
		}
	}
	return msgs
}

// indexToolResults maps call IDs to rendered result text, remembering
// first-seen order. Duplicate IDs keep the first result.
func indexToolResults(contents []core.Content) (map[string]string, []string) {
	pending := map[string]string{}
	var order []string
	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			if _, seen := pending[fr.FunctionResponse.ID]; seen {
				continue
			}
			text, ok := fr.FunctionResponse.Response.(string)
			if !ok {
				text = fmt.Sprintf("%v", fr.FunctionResponse.Response)
			}
			pending[fr.FunctionResponse.ID] = text
			order = append(order, fr.FunctionResponse.ID)
		}
	}
	return pending, order
}

// assistantTurn renders one assistant content, followed by tool messages
// for any of its calls whose results are already known. Consumed results
// are removed from pending.
func assistantTurn(c core.Content, pending map[string]string) []openai.ChatCompletionMessageParamUnion {
	var calls []openai.ChatCompletionMessageToolCallParam
	var ids []string
	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
		ids = append(ids, fc.FunctionCall.ID)
	}
	if len(calls) == 0 {
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(flatText(c))}
	}
	msgs := []openai.ChatCompletionMessageParamUnion{{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: calls,
		},
	}}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if result, ok := pending[id]; ok {
			msgs = append(msgs, openai.ToolMessage(result, id))
			delete(pending, id)
		}
	}
	return msgs
}

func flatText(c core.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// callDraft accumulates one streamed tool call; fragments for the same
// index arrive across many chunks and only the finish chunk marks it done.
type callDraft struct {
	id, name, args string
}

func (d *callDraft) part() core.Part {
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID:        d.id,
		Name:      d.name,
		Arguments: d.args,
	}}
}

func (m *Model) streamCompletion(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var text strings.Builder
	drafts := map[int64]*callDraft{}
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				out <- partialResponse(core.TextPart{Text: choice.Delta.Content})
			}
			for _, tc := range choice.Delta.ToolCalls {
				d := drafts[tc.Index]
				if d == nil {
					d = &callDraft{}
					drafts[tc.Index] = d
				}
				if tc.ID != "" {
					d.id = tc.ID
				}
				if tc.Function.Name != "" {
					d.name = tc.Function.Name
				}
				d.args += tc.Function.Arguments
				out <- partialResponse(d.part())
			}
			if choice.FinishReason != "" {
				out <- finalResponse(choice.FinishReason, &text, drafts)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai: stream failed: %w", err)
	}

	return nil
}

func partialResponse(p core.Part) model.Response {
	return model.Response{
		Partial: true,
		Content: core.Content{Role: "assistant", Parts: []core.Part{p}},
	}
}

// finalResponse assembles the accumulated text and completed tool calls
// into the non-partial response that closes a streamed turn.
func finalResponse(reason string, text *strings.Builder, drafts map[int64]*callDraft) model.Response {
	parts := make([]core.Part, 0, len(drafts)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	indexes := make([]int64, 0, len(drafts))
	for i := range drafts {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	for _, i := range indexes {
		parts = append(parts, drafts[i].part())
	}
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: reason,
	}
}

var errNoChoices = errors.New("openai: response contained no choices")

func (m *Model) completeOnce(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errNoChoices
	}

	choice := resp.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	return nil
}

// Info reports the configured model name and provider.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
