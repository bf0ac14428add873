package workflows

import (
	"fmt"

	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// LargeOrderThreshold is the container count above which place_shipping_order
// suspends for human approval.
const LargeOrderThreshold = 5

// ShippingOptions tunes the shipping coordinator workflow.
type ShippingOptions struct {
	// LargeOrderThreshold overrides the approval threshold. Zero or negative
	// keeps the default.
	LargeOrderThreshold int
}

// NewShippingOrderTool returns the place_shipping_order tool. Three scenarios:
//
//  1. At or below the threshold the order is approved immediately with an
//     ORD-<n>-AUTO id.
//  2. Above the threshold on the first call, the tool records a confirmation
//     request and returns a pending record; the invocation suspends until an
//     external decision arrives.
//  3. On the resumed call the attached decision maps to an approved record
//     (ORD-<n>-HUMAN id) or a rejected one.
func NewShippingOrderTool(threshold int) *tool.FunctionTool {
	if threshold <= 0 {
		threshold = LargeOrderThreshold
	}

	return tool.NewFunctionTool(
		"place_shipping_order",
		"Places a shipping order. Large orders require human approval before completion.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"num_containers": map[string]any{
					"type":        "integer",
					"description": "Number of containers to ship",
				},
				"destination": map[string]any{
					"type":        "string",
					"description": "Destination port or city",
				},
			},
			"required": []string{"num_containers", "destination"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			count := int(args["num_containers"].(float64))
			destination, _ := args["destination"].(string)

			if count <= threshold {
				return map[string]any{
					"status":   "approved",
					"order_id": fmt.Sprintf("ORD-%d-AUTO", count),
					"message":  fmt.Sprintf("Auto-approved: %d containers to %s", count, destination),
				}, nil
			}

			conf := tc.Confirmation()
			if conf == nil {
				tc.RequestConfirmation(
					fmt.Sprintf("Large order: %d containers to %s. Approve?", count, destination),
					map[string]any{"num_containers": count, "destination": destination},
				)
				return map[string]any{"status": "pending", "message": "Requires approval"}, nil
			}

			if conf.Confirmed {
				return map[string]any{
					"status":   "approved",
					"order_id": fmt.Sprintf("ORD-%d-HUMAN", count),
					"message":  fmt.Sprintf("Order approved: %d containers to %s", count, destination),
				}, nil
			}
			return map[string]any{"status": "rejected", "message": "Order rejected"}, nil
		},
	)
}

// NewShippingAgent builds the shipping coordinator with the approval-gated
// order tool registered.
func NewShippingAgent(llm model.Model, optFns ...func(o *ShippingOptions)) *agent.ModelAgent {
	opts := ShippingOptions{LargeOrderThreshold: LargeOrderThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := agent.NewModelAgent("shipping_agent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Shipping coordinator assistant.

Use the place_shipping_order tool for requests.
If status is 'pending', inform the user approval is required.
Provide a clear summary after completion.`)
		o.AllowTransfer = false
	})
	a.RegisterTool(NewShippingOrderTool(opts.LargeOrderThreshold))
	return a
}
