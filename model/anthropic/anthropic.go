// Package anthropic adapts the Anthropic Messages API to AgentFlow's
// model.Model interface, covering streaming, tool use and system prompts.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
)

// Options control the message parameters sent with every request. APIKey,
// when set, overrides the environment-provided key.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Model speaks the Messages protocol through the official client.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel builds a Model with its own client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := applyOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient builds a Model around a caller-supplied client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: applyOptions(optFns)}
}

// Generate converts the request into Messages API parameters and runs it,
// streaming when req.Stream is set. Responses and errors arrive on the
// returned channels; both close when generation ends.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		var err error
		if req.Stream {
			err = m.streamMessage(ctx, m.messageParams(req), out)
		} else {
			err = m.messageOnce(ctx, m.messageParams(req), out)
		}
		if err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func (m *Model) messageParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    conversationMessages(req.Contents),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system := systemBlocks(req.Contents); len(system) > 0 {
		params.System = system
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, toolParam(def))
	}
	return params
}

// conversationMessages flattens normalized contents into Messages API
// turns. The API wants tool results inside a user turn directly after the
// assistant turn that issued the calls, so results are indexed up front
// and spliced in while walking. Results whose call never appears are
// appended in a trailing user turn rather than dropped.
func conversationMessages(contents []core.Content) []anthropic.MessageParam {
	pending, order := indexToolResults(contents)
	var msgs []anthropic.MessageParam
	for _, c := range contents {
		switch c.Role {
		case "system", "tool":
			// system goes into params.System, tool results splice in below
		case "assistant":
			blocks, ids := assistantBlocks(c.Parts)
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}
			if results := resultBlocks(ids, pending); len(results) > 0 {
				msgs = append(msgs, anthropic.NewUserMessage(results...))
			}
		default:
			// user and unknown roles both render as user turns
			if blocks := textBlocks(c.Parts); len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	if results := resultBlocks(order, pending); len(results) > 0 {
		msgs = append(msgs, anthropic.NewUserMessage(results...))
	}
	return msgs
}

// indexToolResults maps call IDs to rendered result text, remembering
// first-seen order.
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

func systemBlocks(contents []core.Content) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, c := range contents {
		if c.Role != "system" {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
				blocks = append(blocks, anthropic.TextBlockParam{Text: tp.Text})
			}
		}
	}
	return blocks
}

func textBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(tp.Text))
		}
	}
	return blocks
}

// assistantBlocks renders assistant text and tool_use blocks, returning
// the call IDs so the caller can splice in matching results.
func assistantBlocks(parts []core.Part) ([]anthropic.ContentBlockParamUnion, []string) {
	var blocks []anthropic.ContentBlockParamUnion
	var ids []string
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			var input any
			if part.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
					input = part.FunctionCall.Arguments
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(part.FunctionCall.ID, input, part.FunctionCall.Name))
			ids = append(ids, part.FunctionCall.ID)
		}
	}
	return blocks, ids
}

// resultBlocks renders tool_result blocks for the given call IDs, consuming
// matched entries from pending.
func resultBlocks(ids []string, pending map[string]string) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, id := range ids {
		result, ok := pending[id]
		if !ok {
			continue
		}
		blocks = append(blocks, anthropic.NewToolResultBlock(id, result, false))
		delete(pending, id)
	}
	return blocks
}

func toolParam(def model.ToolDefinition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if params := def.Function.Parameters; params != nil {
		if properties, ok := params["properties"]; ok {
			schema.Properties = properties
		}
		schema.Required = requiredNames(params["required"])
	}
	return anthropic.ToolUnionParamOfTool(schema, def.Function.Name)
}

// requiredNames tolerates both schema shapes: []string as built in Go and
// []any as produced by JSON decoding.
func requiredNames(required any) []string {
	switch req := required.(type) {
	case []string:
		return req
	case []any:
		var names []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// streamMessage forwards text deltas as partial responses while
// accumulating the full message, then emits the final response with any
// tool_use blocks included.
func (m *Model) streamMessage(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	stream := m.client.Messages.NewStreaming(ctx, params)

	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return fmt.Errorf("anthropic: accumulate failed: %w", err)
		}

		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta()
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- model.Response{
			Partial: true,
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: delta.Delta.Text}},
			},
		}:
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic: stream failed: %w", err)
	}

	out <- model.Response{
		ID:           message.ID,
		Content:      core.Content{Role: "assistant", Parts: partsFromBlocks(message.Content)},
		FinishReason: finishReasonFrom(message.StopReason),
		Usage:        tokenUsage(message.Usage),
	}

	return nil
}

func (m *Model) messageOnce(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic: message failed: %w", err)
	}

	out <- model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: "assistant", Parts: partsFromBlocks(resp.Content)},
		FinishReason: finishReasonFrom(resp.StopReason),
		Usage:        tokenUsage(resp.Usage),
	}

	return nil
}

// partsFromBlocks converts response content blocks (text and tool_use)
// into normalized parts.
func partsFromBlocks(blocks []anthropic.ContentBlockUnion) []core.Part {
	var parts []core.Part
	for _, block := range blocks {
		switch block.Type {
		case "text":
			text := block.AsText()
			if text.Text != "" {
				parts = append(parts, core.TextPart{Text: text.Text})
			}
		case "tool_use":
			call := block.AsToolUse()
			args := ""
			if call.Input != nil {
				if raw, err := json.Marshal(call.Input); err == nil {
					args = string(raw)
				}
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: args,
			}})
		}
	}
	return parts
}

func finishReasonFrom(stop anthropic.StopReason) string {
	if stop == "" {
		return "stop"
	}
	return string(stop)
}

func tokenUsage(u anthropic.Usage) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
	}
}

// Info reports the configured model name and provider.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
