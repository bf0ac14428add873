package core

import "encoding/json"

// ConfirmationToolName is the reserved function name used to surface a
// pending approval to the caller. Events carrying a function call with this
// name are orchestration-level: the runner treats them as suspension points
// and model request builders must not forward them to the provider.
const ConfirmationToolName = "request_confirmation"

// ToolConfirmation is the approval record attached to a suspended tool call.
// Hint is the human-readable question for the approver, Payload an opaque
// structured value describing what is being approved. Confirmed carries the
// decision once the run has been resumed; before that it is meaningless.
type ToolConfirmation struct {
	Hint      string         `json:"hint,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Confirmed bool           `json:"confirmed"`
}

// ConfirmationRequest is the argument payload of a ConfirmationToolName
// function call event. ApprovalID doubles as the id of the emitted call so a
// resume can be correlated; OriginalCall preserves the suspended tool call so
// it can be re-executed once a decision arrives.
type ConfirmationRequest struct {
	ApprovalID   string            `json:"approval_id"`
	InvocationID string            `json:"invocation_id"`
	Hint         string            `json:"hint,omitempty"`
	Payload      map[string]any    `json:"payload,omitempty"`
	OriginalCall FunctionCall      `json:"original_call"`
	Confirmation *ToolConfirmation `json:"confirmation,omitempty"`
}

// ConfirmationResponse is the function response payload an external approver
// supplies when resuming a suspended run.
type ConfirmationResponse struct {
	Confirmed bool `json:"confirmed"`
}

// FindApprovalRequest scans events newest first for a confirmation call that
// has not been answered yet and returns its decoded request. Consumers use it
// on the events collected from a run to learn whether the run suspended and,
// if so, which {approval_id, invocation_id} pair a resume must supply. Returns
// nil when no approval is pending.
func FindApprovalRequest(events []Event) *ConfirmationRequest {
	answered := make(map[string]struct{})

	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Content == nil {
			continue
		}
		for _, p := range ev.Content.Parts {
			switch part := p.(type) {
			case FunctionResponsePart:
				fr := part.FunctionResponse
				if fr.Name == ConfirmationToolName {
					answered[fr.ID] = struct{}{}
				}
			case FunctionCallPart:
				fc := part.FunctionCall
				if fc.Name != ConfirmationToolName {
					continue
				}
				if _, done := answered[fc.ID]; done {
					continue
				}

				var req ConfirmationRequest
				if err := json.Unmarshal([]byte(fc.Arguments), &req); err != nil {
					continue
				}
				if req.ApprovalID == "" {
					req.ApprovalID = fc.ID
				}
				if req.InvocationID == "" {
					req.InvocationID = ev.InvocationID
				}
				return &req
			}
		}
	}

	return nil
}

// NewApprovalContent builds the user content that answers a pending
// confirmation. Feeding it back into the run under the suspended invocation id
// delivers the decision to the gated tool.
func NewApprovalContent(approvalID string, confirmed bool) Content {
	return Content{
		Role: "user",
		Parts: []Part{FunctionResponsePart{FunctionResponse: FunctionResponse{
			ID:       approvalID,
			Name:     ConfirmationToolName,
			Response: ConfirmationResponse{Confirmed: confirmed},
		}}},
	}
}
