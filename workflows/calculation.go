package workflows

import (
	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/code"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// NewCalculationAgent builds the arithmetic specialist. It writes Python for
// every request and runs it through the execute_code tool, so results come
// from an interpreter rather than model arithmetic.
func NewCalculationAgent(llm model.Model, exec code.Executor) *agent.ModelAgent {
	a := agent.NewModelAgent("CalculationAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a calculation specialist.

RULES:
1. Write Python code that computes the requested result
2. The code MUST print the final result to stdout
3. Run the code with the execute_code tool
4. Respond with only the printed result
5. You are PROHIBITED from doing the calculation yourself`)
		o.AllowTransfer = false
	})
	a.RegisterTool(code.NewExecuteTool(exec))
	return a
}

// NewEnhancedCurrencyAgent builds the currency assistant that keeps the fee
// and exchange rate tools but delegates every calculation to the
// CalculationAgent specialist, wrapped as a tool.
func NewEnhancedCurrencyAgent(llm model.Model, exec code.Executor) *agent.ModelAgent {
	calc := NewCalculationAgent(llm, exec)
	calc.SetDescription("Generates and runs Python code for a calculation request, returning the printed result.")

	a := agent.NewModelAgent("enhanced_currency_agent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a currency conversion assistant.

CRITICAL: You are PROHIBITED from doing arithmetic yourself.

For conversion requests:
1. Use get_fee_for_payment_method() for transaction fees
2. Use get_exchange_rate() for conversion rates
3. Delegate every calculation to the CalculationAgent tool
4. Provide a breakdown using the returned results`)
		o.AllowTransfer = false
	})
	a.RegisterTools(NewFeeTool(), NewExchangeRateTool(), tool.NewAgentTool(calc))
	return a
}
