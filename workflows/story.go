package workflows

import (
	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// DefaultStoryIterations bounds the refinement loop when no override is given.
const DefaultStoryIterations = 2

// StoryPipelineOptions tunes the story refinement pipeline.
type StoryPipelineOptions struct {
	// MaxIterations caps the critique/refine cycle. The ceiling is a safety
	// bound against a critic that never approves.
	MaxIterations int
}

// newStoryExitTool returns the exit_loop tool the refiner calls when the
// critique is exactly the approval sentinel. It raises the escalate signal,
// which terminates the enclosing loop without a further model turn, so the
// approved draft is left untouched under its state key.
func newStoryExitTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"exit_loop",
		"Call this function ONLY when the critique is 'APPROVED', indicating the story is finished and no more changes are needed.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.Escalate()
			return map[string]any{
				"status":  "approved",
				"message": "Story approved. Exiting refinement loop.",
			}, nil
		},
	)
}

// NewStoryPipeline builds the iterative refinement pipeline: an initial writer
// seeds the draft, then a bounded loop alternates a critic and a refiner over
// it. The critic either emits the exact sentinel "APPROVED" or actionable
// feedback; the refiner exits the loop on the sentinel and rewrites the draft
// otherwise, overwriting the draft key each pass. The pipeline's result is
// whatever the draft key holds when the loop terminates, approved or not.
func NewStoryPipeline(llm model.Model, optFns ...func(o *StoryPipelineOptions)) *agent.SequentialAgent {
	opts := StoryPipelineOptions{MaxIterations: DefaultStoryIterations}
	for _, fn := range optFns {
		fn(&opts)
	}

	writer := agent.NewModelAgent("InitialWriterAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Based on the user's prompt, write the first draft of a short story (around 100-150 words).
Output only the story text, with no introduction or explanation.`)
		o.OutputKey = "current_story"
		o.AllowTransfer = false
	})

	critic := agent.NewModelAgent("CriticAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a constructive story critic. Review the story provided below.
Story: {current_story}

Evaluate the story's plot, characters, and pacing.
- If the story is well-written and complete, you MUST respond with the exact phrase: "APPROVED"
- Otherwise, provide 2-3 specific, actionable suggestions for improvement.`)
		o.OutputKey = "critique"
		o.AllowTransfer = false
	})

	refiner := agent.NewModelAgent("RefinerAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a story refiner. You have a story draft and critique.

Story Draft: {current_story}
Critique: {critique}

Your task is to analyze the critique.
- IF the critique is EXACTLY "APPROVED", you MUST call the ` + "`exit_loop`" + ` function and nothing else.
- OTHERWISE, rewrite the story draft to fully incorporate the feedback from the critique.`)
		o.OutputKey = "current_story"
		o.AllowTransfer = false
	})
	refiner.RegisterTool(newStoryExitTool())

	loop := agent.NewLoopAgent("StoryRefinementLoop", opts.MaxIterations, critic, refiner)

	return agent.NewSequentialAgent("StoryPipeline", writer, loop)
}
