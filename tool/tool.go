// Package tool implements the function calling subsystem: structured
// capabilities an agent can invoke with schema-validated arguments, uniform
// error reporting and the metadata models need to decide when to call them.
package tool

import (
	"fmt"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/internal/util"
)

// Tool is a callable capability exposed to agents. The name and description
// are surfaced to the model verbatim, so they should read like API
// documentation; names follow snake_case by convention. Parameters returns a
// JSON schema the flow uses both to advertise the tool and to validate
// decoded arguments before Call runs. Implementations must be safe for
// concurrent calls, since parallel tool execution is the default.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any

	// Call executes the tool. The ToolContext gives access to session
	// state, artifacts, memory and the orchestration signals (transfer,
	// escalate, confirmation). Arguments arrive decoded from JSON and
	// already validated against the schema.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError reports a schema violation in tool arguments.
type ValidationError = util.ValidationError

// ToolError describes a failure inside a tool. Code categorizes the failure
// (VALIDATION_ERROR, EXECUTION_ERROR, MCP_ERROR, ...) so flows and clients
// can branch on it without parsing the message.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
}

// NewToolError builds a ToolError without extra details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
