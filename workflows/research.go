package workflows

import (
	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/model"
)

// NewResearchSystem builds a fan-out/fan-in topology: three researchers run
// concurrently, each writing a distinct state key, then an aggregator combines
// the three reports into an executive summary. The aggregator sits after the
// parallel stage in a sequential container, which is the join barrier: it
// never starts before every researcher has finished.
func NewResearchSystem(llm model.Model) *agent.SequentialAgent {
	tech := agent.NewModelAgent("TechResearcher", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Research the latest AI/ML trends. Include 3 key developments,
the main companies involved, and the potential impact. Keep the report very concise (100 words).`)
		o.OutputKey = "tech_research"
		o.AllowTransfer = false
	})

	health := agent.NewModelAgent("HealthResearcher", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Research recent medical breakthroughs. Include 3 significant advances,
their practical applications, and estimated timelines. Keep the report concise (100 words).`)
		o.OutputKey = "health_research"
		o.AllowTransfer = false
	})

	finance := agent.NewModelAgent("FinanceResearcher", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Research current fintech trends. Include 3 key trends,
their market implications, and the future outlook. Keep the report concise (100 words).`)
		o.OutputKey = "finance_research"
		o.AllowTransfer = false
	})

	aggregator := agent.NewModelAgent("AggregatorAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Combine these three research findings into a single executive summary:

**Technology Trends:**
{tech_research}

**Health Breakthroughs:**
{health_research}

**Finance Innovations:**
{finance_research}

Your summary should highlight common themes, surprising connections,
and the most important key takeaways from all three reports.
The final summary should be around 200 words.`)
		o.OutputKey = "executive_summary"
		o.AllowTransfer = false
	})

	team := agent.NewParallelAgent("ParallelResearchTeam", 0, tech, health, finance)

	return agent.NewSequentialAgent("ResearchSystem", team, aggregator)
}
