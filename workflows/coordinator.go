package workflows

import (
	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// NewResearchCoordinator builds the LLM-directed delegation topology: a
// research specialist and a summarizer are exposed to a coordinator as
// callable tools, and the coordinator's model decides which to invoke and in
// what order. Unlike the sequential pipelines there is no fixed schedule; the
// instruction mandates the intended order but the model drives it.
func NewResearchCoordinator(llm model.Model) *agent.ModelAgent {
	research := agent.NewModelAgent("ResearchAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a specialized research agent. Your only job is to find 2-3 pieces
of relevant information on the given topic and present the findings clearly.`)
		o.OutputKey = "research_findings"
		o.AllowTransfer = false
	})
	research.SetDescription("Finds 2-3 pieces of relevant information on a topic and presents the findings.")

	summarizer := agent.NewModelAgent("SummarizerAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Read the provided research findings: {research_findings}
Create a concise summary as a bulleted list with 3-5 key points.`)
		o.OutputKey = "final_summary"
		o.AllowTransfer = false
	})
	summarizer.SetDescription("Condenses research findings into a bulleted summary.")

	coordinator := agent.NewModelAgent("ResearchCoordinator", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a research coordinator. Your goal is to answer the user's query by orchestrating a workflow.
1. First, you MUST call the ` + "`ResearchAgent`" + ` tool to find relevant information on the topic provided by the user.
2. Next, after receiving the research findings, you MUST call the ` + "`SummarizerAgent`" + ` tool to create a concise summary.
3. Finally, present the final summary clearly to the user as your response.`)
		o.AllowTransfer = false
	})
	coordinator.RegisterTools(tool.NewAgentTool(research), tool.NewAgentTool(summarizer))

	return coordinator
}
