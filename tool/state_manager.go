package tool

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/agentflow/agentflow/core"
)

// opHandler executes one state_manager operation.
type opHandler func(tc *core.ToolContext, args map[string]any) (any, error)

// StateManagerTool exposes the run's session plumbing to the model as a
// single dispatching tool: session state, flow control, artifacts, memory
// and history. Every operation reports back as a status-tagged record, the
// same shape AgentFlow function tools use.
type StateManagerTool struct {
	ops map[string]opHandler
}

// NewStateManagerTool builds the tool with all operations registered.
func NewStateManagerTool() *StateManagerTool {
	return &StateManagerTool{ops: map[string]opHandler{
		"get_state":           stateGet,
		"set_state":           stateSet,
		"transfer_agent":      flowTransfer,
		"escalate":            flowEscalate,
		"save_artifact":       artifactSave,
		"load_artifact":       artifactLoad,
		"list_artifacts":      artifactList,
		"search_memory":       memorySearch,
		"store_memory":        memoryStore,
		"get_session_history": sessionHistory,
		"skip_summarization":  skipSummarize,
	}}
}

// Name returns the tool identifier.
func (t *StateManagerTool) Name() string { return "state_manager" }

// Description returns the tool description shown to the model. The
// operation list is derived from the registry so it never drifts.
func (t *StateManagerTool) Description() string {
	return "Reads and writes session state, controls agent flow, and works with artifacts, " +
		"memory and conversation history. Operations: " + strings.Join(t.operations(), ", ") + "."
}

func (t *StateManagerTool) operations() []string {
	return slices.Sorted(maps.Keys(t.ops))
}

// field builds one property entry of the parameter schema.
func field(typ, desc string) map[string]any {
	f := map[string]any{"description": desc}
	if typ != "" {
		f["type"] = typ
	}
	return f
}

// Parameters describes the operation argument plus the per-operation
// fields, as one flat schema the model picks from.
func (t *StateManagerTool) Parameters() map[string]any {
	limit := field("integer", "Maximum results for search_memory (default: 10)")
	limit["default"] = 10

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        t.operations(),
				"description": "Which operation to perform",
			},
			"key":         field("string", "State key, for get_state and set_state"),
			"value":       field("", "Value to store with set_state, any type"),
			"agent_name":  field("string", "Target agent, for transfer_agent"),
			"artifact_id": field("string", "Artifact identifier, for artifact operations"),
			"data":        field("string", "Artifact payload, for save_artifact"),
			"query":       field("string", "Search text, for search_memory"),
			"content":     field("string", "Text to remember, for store_memory"),
			"metadata":    field("object", "Optional metadata stored alongside the memory"),
			"limit":       limit,
		},
		"required": []string{"operation"},
	}
}

// Call dispatches to the handler registered for args["operation"].
func (t *StateManagerTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}
	handler, ok := t.ops[operation]
	if !ok {
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
	return handler(toolCtx, args)
}

// stringArg pulls a required string argument, naming the operation in the
// error so the model can correct itself.
func stringArg(args map[string]any, key, op string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("%s parameter is required for %s operation", key, op)
	}
	return v, nil
}

// record tags a result map with the success status all handlers share.
func record(kv map[string]any) map[string]any {
	kv["status"] = "success"
	return kv
}

func stateGet(tc *core.ToolContext, args map[string]any) (any, error) {
	key, err := stringArg(args, "key", "get_state")
	if err != nil {
		return nil, err
	}
	value, exists := tc.GetState(key)
	return record(map[string]any{"key": key, "exists": exists, "value": value}), nil
}

func stateSet(tc *core.ToolContext, args map[string]any) (any, error) {
	key, err := stringArg(args, "key", "set_state")
	if err != nil {
		return nil, err
	}
	tc.SetState(key, args["value"])
	return record(map[string]any{"key": key, "value": args["value"]}), nil
}

func flowTransfer(tc *core.ToolContext, args map[string]any) (any, error) {
	target, err := stringArg(args, "agent_name", "transfer_agent")
	if err != nil {
		return nil, err
	}
	tc.TransferToAgent(target)
	return record(map[string]any{
		"agent_name": target,
		"message":    fmt.Sprintf("Transfer to agent '%s' initiated", target),
	}), nil
}

func flowEscalate(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.Escalate()
	return record(map[string]any{"message": "Escalation initiated"}), nil
}

func skipSummarize(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.SkipSummarization()
	return record(map[string]any{"message": "Summarization will be skipped for this interaction"}), nil
}

func artifactSave(tc *core.ToolContext, args map[string]any) (any, error) {
	id, err := stringArg(args, "artifact_id", "save_artifact")
	if err != nil {
		return nil, err
	}
	payload, err := stringArg(args, "data", "save_artifact")
	if err != nil {
		return nil, err
	}
	if err := tc.SaveArtifact(id, []byte(payload)); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	return record(map[string]any{"artifact_id": id, "size": len(payload)}), nil
}

func artifactLoad(tc *core.ToolContext, args map[string]any) (any, error) {
	id, err := stringArg(args, "artifact_id", "load_artifact")
	if err != nil {
		return nil, err
	}
	data, err := tc.LoadArtifact(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return record(map[string]any{"artifact_id": id, "data": string(data), "size": len(data)}), nil
}

func artifactList(tc *core.ToolContext, _ map[string]any) (any, error) {
	ids, err := tc.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return record(map[string]any{"artifacts": ids, "count": len(ids)}), nil
}

func memorySearch(tc *core.ToolContext, args map[string]any) (any, error) {
	query, err := stringArg(args, "query", "search_memory")
	if err != nil {
		return nil, err
	}
	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}
	results, err := tc.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}
	return record(map[string]any{"query": query, "count": len(results), "results": results}), nil
}

func memoryStore(tc *core.ToolContext, args map[string]any) (any, error) {
	content, err := stringArg(args, "content", "store_memory")
	if err != nil {
		return nil, err
	}
	metadata, _ := args["metadata"].(map[string]any)
	if err := tc.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	return record(map[string]any{"content": content}), nil
}

// sessionHistory condenses the transcript into one line per event so the
// model can reason about the conversation without raw part structures.
func sessionHistory(tc *core.ToolContext, _ map[string]any) (any, error) {
	history := tc.GetSessionHistory()
	entries := make([]map[string]any, len(history))
	for i, ev := range history {
		entry := map[string]any{
			"id":      ev.ID,
			"author":  ev.Author,
			"partial": ev.IsPartial(),
		}
		if ev.Content != nil {
			entry["summary"] = summarizeParts(ev.Content.Parts)
		}
		entries[i] = entry
	}
	return record(map[string]any{"events": entries, "count": len(entries)}), nil
}

func summarizeParts(parts []core.Part) string {
	labels := make([]string, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case core.TextPart:
			preview := p.Text
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			labels = append(labels, "text: "+preview)
		case core.FunctionCallPart:
			labels = append(labels, "function_call: "+p.FunctionCall.Name)
		case core.FunctionResponsePart:
			labels = append(labels, "function_response: "+p.FunctionResponse.Name)
		default:
			labels = append(labels, "other")
		}
	}
	return strings.Join(labels, ", ")
}
