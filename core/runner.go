package core

import "context"

// Runner is the orchestration contract for executing a root agent inside a
// conversational session.
//
// Channel contract: the events channel delivers events in emission order and
// closes when the invocation finishes, whether it succeeded, failed or was
// cancelled. The error channel holds at most one terminal error and closes
// after it, so a consumer can range over both without leaking goroutines.
//
// A run that raises an approval request finishes its channels like any other
// run; the suspension is recorded in the session, and Resume continues the
// same invocation once the approver decides. Cancellation is cooperative:
// cancelling the supplied context or calling Cancel stops event emission and
// releases the invocation slot.
type Runner interface {
	// Run starts an asynchronous invocation of the root agent against
	// sessionID, seeded with userContent. The returned invocation id is
	// stable for the whole run and is what Cancel and Resume key on. The
	// immediate error covers startup failures such as a session load.
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Resume answers the pending approval identified by the exact
	// {invocationID, approvalID} pair and continues the suspended run.
	// A mismatched or already-resolved pair is an error.
	Resume(ctx context.Context, sessionID, invocationID, approvalID string, confirmed bool) (<-chan Event, <-chan error, error)

	// Cancel requests termination of an in-flight invocation. Cancelling an
	// unknown or finished invocation returns an error naming the condition.
	Cancel(invocationID string) error
}
