package workflows

import (
	"fmt"
	"strings"

	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// paymentFees maps payment method names (lower case) to their transaction fee
// percentage.
var paymentFees = map[string]float64{
	"platinum credit card": 0.02,
	"gold debit card":      0.035,
	"bank transfer":        0.01,
}

// exchangeRates maps base currency -> target currency -> rate, all keys lower
// case ISO 4217 codes.
var exchangeRates = map[string]map[string]float64{
	"usd": {"eur": 0.93, "jpy": 157.50, "inr": 83.58},
}

// NewFeeTool returns the get_fee_for_payment_method tool. Lookups are
// case-insensitive; unknown methods produce an error record, not a tool error,
// so the model can report the problem conversationally.
func NewFeeTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"get_fee_for_payment_method",
		"Looks up the transaction fee percentage for a payment method.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"method": map[string]any{
					"type":        "string",
					"description": "Payment method name, e.g. \"platinum credit card\"",
				},
			},
			"required": []string{"method"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			method, _ := args["method"].(string)

			if fee, ok := paymentFees[strings.ToLower(method)]; ok {
				return map[string]any{"status": "success", "fee_percentage": fee}, nil
			}
			return map[string]any{
				"status":        "error",
				"error_message": fmt.Sprintf("Payment method '%s' not found", method),
			}, nil
		},
	)
}

// NewExchangeRateTool returns the get_exchange_rate tool covering the built-in
// USD rate table.
func NewExchangeRateTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"get_exchange_rate",
		"Gets the exchange rate between two currencies.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"base_currency": map[string]any{
					"type":        "string",
					"description": "ISO 4217 code of the source currency, e.g. \"USD\"",
				},
				"target_currency": map[string]any{
					"type":        "string",
					"description": "ISO 4217 code of the target currency, e.g. \"EUR\"",
				},
			},
			"required": []string{"base_currency", "target_currency"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			base, _ := args["base_currency"].(string)
			target, _ := args["target_currency"].(string)

			if rate, ok := exchangeRates[strings.ToLower(base)][strings.ToLower(target)]; ok {
				return map[string]any{"status": "success", "rate": rate}, nil
			}
			return map[string]any{
				"status":        "error",
				"error_message": fmt.Sprintf("Unsupported pair: %s/%s", base, target),
			}, nil
		},
	)
}

// NewCurrencyAgent builds the currency conversion assistant with the fee and
// exchange rate tools registered.
func NewCurrencyAgent(llm model.Model) *agent.ModelAgent {
	a := agent.NewModelAgent("currency_agent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`You are a currency conversion assistant.

For conversion requests:
1. Use get_fee_for_payment_method() for transaction fees
2. Use get_exchange_rate() for conversion rates
3. Check the "status" field in responses
4. Calculate the final amount and provide a breakdown`)
		o.AllowTransfer = false
	})
	a.RegisterTools(NewFeeTool(), NewExchangeRateTool())
	return a
}
