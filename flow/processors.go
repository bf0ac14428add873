package flow

import (
	"fmt"
	"maps"
	"strings"

	"github.com/agentflow/agentflow/core"
	internalutil "github.com/agentflow/agentflow/internal/util"
	"github.com/agentflow/agentflow/model"
)

// InstructionsProcessor handles system prompt and instruction processing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest resolves the agent's instructions and renders {key}
// placeholders against session state. Staged (not yet persisted) deltas
// overlay the snapshot so same-invocation writes resolve too.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	runCtx.LogDebug("agent.instructions.resolved", "agent", agent.GetName(), "length", len(instructions))

	state := map[string]any{}
	if runCtx.Session != nil {
		state = runCtx.Session.StateSnapshot()
	}
	maps.Copy(state, runCtx.StateDelta)

	rendered, err := internalutil.RenderTemplate(instructions, state)
	if err != nil {
		return fmt.Errorf("render instructions: %w", err)
	}

	req.Instructions = rendered
	return nil
}

// ContentsProcessor assembles the model conversation: system instructions
// first, then the visible session history.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest builds req.Contents from instructions and session history.
// History is restricted to the agent's branch view, trimmed to the newest
// MaxHistoryMessages entries, stripped of confirmation plumbing and
// deduplicated so a replayed tool call surfaces only its latest response.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	contents := []core.Content{{
		Role:  "system",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	}}

	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		visible := make([]core.Event, 0, len(events))
		for _, ev := range events {
			if !branchVisible(ev.Branch, runCtx.Branch) {
				continue
			}
			visible = append(visible, ev)
		}
		if max := agent.MaxHistoryMessages(); max > 0 && len(visible) > max {
			visible = visible[len(visible)-max:]
		}

		history := make([]core.Content, 0, len(visible))
		for _, ev := range visible {
			c := sanitizeContent(*ev.Content)
			if len(c.Parts) == 0 {
				continue
			}
			history = append(history, c)
		}

		contents = append(contents, dedupeFunctionResponses(history)...)
	}

	req.Contents = contents
	return nil
}

// branchVisible reports whether an event recorded under eventBranch may be
// shown to an agent running under branch. Events are visible to their own
// branch and its descendants; unbranched events are visible everywhere.
func branchVisible(eventBranch *string, branch string) bool {
	if eventBranch == nil || *eventBranch == "" {
		return true
	}
	if branch == "" {
		return false
	}
	return branch == *eventBranch || strings.HasPrefix(branch, *eventBranch+".")
}

// sanitizeContent removes confirmation plumbing parts that must never reach a
// model provider.
func sanitizeContent(c core.Content) core.Content {
	parts := make([]core.Part, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.FunctionCallPart:
			if part.FunctionCall.Name == core.ConfirmationToolName {
				continue
			}
		case core.FunctionResponsePart:
			if part.FunctionResponse.Name == core.ConfirmationToolName {
				continue
			}
		}
		parts = append(parts, p)
	}
	return core.Content{Role: c.Role, Parts: parts}
}

// dedupeFunctionResponses drops all but the newest FunctionResponse part per
// call id. A call suspended for approval and replayed after the decision
// produces two responses with the same id; only the decided one may reach the
// model.
func dedupeFunctionResponses(history []core.Content) []core.Content {
	type pos struct{ content, part int }
	last := map[string]pos{}
	for i, c := range history {
		for j, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
				last[fr.FunctionResponse.ID] = pos{content: i, part: j}
			}
		}
	}

	out := make([]core.Content, 0, len(history))
	for i, c := range history {
		parts := make([]core.Part, 0, len(c.Parts))
		for j, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
				if keep := last[fr.FunctionResponse.ID]; keep.content != i || keep.part != j {
					continue
				}
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, core.Content{Role: c.Role, Parts: parts})
	}
	return out
}
