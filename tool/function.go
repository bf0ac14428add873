package tool

import (
	"fmt"
	"time"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/internal/util"
)

// Func is the signature FunctionTool wraps. Arguments arrive after schema
// validation; the ToolContext carries session state, artifact access and
// flow-control actions for the running invocation.
type Func func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool adapts a plain Go function into a Tool. Model-supplied
// arguments are validated against the declared JSON schema before the
// function runs, and failures come back as *ToolError with stable codes:
//
//	VALIDATION_ERROR -> arguments did not match the schema
//	EXECUTION_ERROR  -> the function returned an ordinary error
//
// A *ToolError returned by the function itself passes through unchanged,
// custom code included. FunctionTool is immutable after construction and
// safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

// NewFunctionTool builds a tool from an explicit parameter schema:
//
//	rate := NewFunctionTool(
//		"get_exchange_rate",
//		"Look up the conversion rate between two currencies",
//		map[string]any{
//			"type": "object",
//			"properties": map[string]any{
//				"base_currency":   map[string]any{"type": "string"},
//				"target_currency": map[string]any{"type": "string"},
//			},
//			"required": []string{"base_currency", "target_currency"},
//		},
//		func(tc *core.ToolContext, args map[string]any) (any, error) {
//			return rates.Lookup(args["base_currency"].(string), args["target_currency"].(string))
//		},
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// util.CreateSchema, so simple argument containers need no hand-written
// schema. Field names follow json tags and `description` tags become
// property descriptions.
func NewFunctionToolFromStruct(name, description string, structType any, fn Func) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name used in function declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing accepted arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema, then runs the wrapped function.
// The fc_id log field ties the execution back to the model's function call.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())
	started := time.Now()

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	switch e := err.(type) {
	case nil:
		logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(started).Milliseconds())
		return result, nil
	case *ToolError:
		logger.Error("tool.call.error", "tool", t.name, "code", e.Code, "error", e.Message)
		return nil, e
	default:
		logger.Error("tool.call.error", "tool", t.name, "code", "EXECUTION_ERROR", "error", err.Error())
		return nil, &ToolError{Tool: t.name, Code: "EXECUTION_ERROR", Message: err.Error()}
	}
}
