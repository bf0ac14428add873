package code

import (
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/tool"
)

// NewExecuteTool wraps an Executor as the execute_code function tool. Runtime
// failures come back as error records so the model can relay them instead of
// aborting the turn.
func NewExecuteTool(exec Executor) *tool.FunctionTool {
	return tool.NewFunctionTool(
		"execute_code",
		"Executes a code snippet and returns what it printed to stdout.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Code to run; print the final result to stdout",
				},
			},
			"required": []string{"code"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			snippet, _ := args["code"].(string)

			output, err := exec.Execute(tc.Context(), snippet)
			if err != nil {
				return map[string]any{"status": "error", "error_message": err.Error()}, nil
			}
			return map[string]any{"status": "success", "output": output}, nil
		},
	)
}
