package runner

import (
	"context"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/logging"
)

// CallbackType identifies the lifecycle point a callback is bound to.
//
// Callbacks hook into the runner's execution pipeline without modifying core
// logic:
//   - BeforeAgent/AfterAgent: around the root agent's execution
//   - BeforeTool/AfterTool: around tool batches surfaced through events
//   - OnError: when the agent run fails
//   - OnStateChange: when an event stages session state modifications
//
// Callbacks execute synchronously and can veto the associated operation by
// returning an error.
type CallbackType string

const (
	// CallbackBeforeAgent is triggered before the root agent starts.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent is triggered after the root agent completed
	// successfully.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackBeforeTool is triggered when a model turn requests tool calls,
	// before the producing flow is released to execute them.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered when tool responses arrive.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError is triggered when the agent run returns an error.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnStateChange is triggered before an event's state delta is
	// applied to the session. Returning an error rejects the change and
	// aborts the invocation.
	CallbackOnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the execution context handed to each callback.
// Event is nil for hooks that do not relate to a specific event.
type CallbackContext struct {
	// RunContext is the invocation scope: session, stores, identifiers.
	RunContext *core.RunContext

	// Event is the event being processed, when the hook is event driven.
	Event *core.Event

	// AgentName identifies the agent associated with this hook point. For
	// event driven hooks this is the event author, otherwise the root agent.
	AgentName string

	// CallbackType indicates which hook triggered this execution, letting a
	// shared implementation branch on the phase.
	CallbackType CallbackType

	// Metadata carries hook specific extras, e.g. the error message for
	// CallbackOnError.
	Metadata map[string]any
}

// Callback is a synchronous lifecycle hook. Implementations should be fast
// and must not panic; returning an error terminates the associated
// operation.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback, for simple stateless
// hooks:
//
//	cb := runner.NewFunctionCallback(runner.CallbackBeforeAgent,
//		func(ctx context.Context, cc *runner.CallbackContext) error {
//			audit.Record(cc.AgentName)
//			return nil
//		})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback for the given type.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes hook executions to the callbacks registered for the
// matching type, in registration order. The first error stops the chain.
//
// Registration is not synchronized; register everything before the first
// invocation. Execution afterwards is safe for concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback under its declared type. Multiple
// callbacks per type run in registration order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType. The first
// callback error is returned and the remaining callbacks are skipped.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback emits a structured log line for every execution of its
// hook point. Useful for debugging and audit trails.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for the given hook point.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the hook execution with its context information.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	args := []any{"callback", string(c.callbackType), "agent", callbackCtx.AgentName}
	if callbackCtx.Event != nil {
		args = append(args, "event_id", callbackCtx.Event.ID)
	}
	c.logger.Info("runner.callback", args...)

	return nil
}

// StateValidationCallback validates session state changes before they are
// applied. The validator receives only the delta; returning an error rejects
// the modification and aborts the invocation. Use it to enforce schema or
// business invariants on shared session state.
type StateValidationCallback struct {
	validator func(stateDelta map[string]any) error
}

// NewStateValidationCallback creates a state validation callback.
func NewStateValidationCallback(validator func(stateDelta map[string]any) error) *StateValidationCallback {
	return &StateValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackOnStateChange).
func (c *StateValidationCallback) Type() CallbackType {
	return CallbackOnStateChange
}

// Execute validates the state delta carried by the event.
func (c *StateValidationCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Event != nil {
		if callbackCtx.Event.Actions.StateDelta != nil {
			return c.validator(callbackCtx.Event.Actions.StateDelta)
		}
	}
	return nil
}
