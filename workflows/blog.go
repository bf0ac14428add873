package workflows

import (
	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/model"
)

// NewBlogPipeline builds the fixed-order outline -> draft -> edit pipeline.
// Each stage saves its result under its output key and the next stage reads it
// through an instruction placeholder, so the draft always follows the outline
// and the edit always works on the draft.
func NewBlogPipeline(llm model.Model) *agent.SequentialAgent {
	outline := agent.NewModelAgent("OutlineAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Create a blog outline for the given topic with:
1. A catchy headline
2. An introduction hook
3. 3-5 main sections with 2-3 bullet points for each
4. A concluding thought`)
		o.OutputKey = "blog_outline"
		o.AllowTransfer = false
	})

	writer := agent.NewModelAgent("WriterAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Following this outline strictly: {blog_outline}
Write a brief, 200 to 300-word blog post with an engaging and informative tone.`)
		o.OutputKey = "blog_draft"
		o.AllowTransfer = false
	})

	editor := agent.NewModelAgent("EditorAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Edit this draft: {blog_draft}
Your task is to polish the text by fixing any grammatical errors,
improving the flow and sentence structure, and enhancing overall clarity.`)
		o.OutputKey = "final_blog"
		o.AllowTransfer = false
	})

	return agent.NewSequentialAgent("BlogPipeline", outline, writer, editor)
}
