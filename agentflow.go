// Package agentflow provides a high-level façade over the runner and the
// service abstractions (sessions, artifacts, memory & logging) for building
// agent orchestration systems. Most applications interact with this package
// by:
//  1. Composing a root agent (model, sequential, parallel, loop, or a
//     ready-made topology from the workflows package)
//  2. Creating an AgentFlow via New() (optionally overriding the default
//     in-memory services)
//  3. Invoking the root asynchronously (Invoke) or synchronously (InvokeSync),
//     and answering suspended approval gates with Resume
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations and a structured logger.
package agentflow

import (
	"context"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/logging"
	"github.com/agentflow/agentflow/runner"
)

// Options configures the AgentFlow instance.
type Options struct {
	// MaxConcurrentInvocations limits the number of agent invocations that
	// can execute simultaneously.
	MaxConcurrentInvocations int

	// EnableStreaming forwards partial (streaming) events to consumers.
	// When false only completed events are delivered.
	EnableStreaming bool

	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int

	// MaxModelCalls caps model calls per invocation, the guard against
	// runaway tool loops.
	MaxModelCalls int

	// Stores (default to in-memory implementations if not provided).
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AgentFlow is the high-level façade aggregating the runner and its services.
type AgentFlow struct {
	opts   Options
	runner *runner.Runner
}

// New creates an AgentFlow driving the given root agent. Any unset service is
// initialized with an in-memory implementation by the underlying runner.
func New(root core.Agent, optFns ...func(o *Options)) *AgentFlow {
	opts := Options{EnableStreaming: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(root, func(o *runner.Options) {
		if opts.MaxConcurrentInvocations > 0 {
			o.MaxConcurrentInvocations = opts.MaxConcurrentInvocations
		}
		if opts.EventBufferSize > 0 {
			o.EventBufferSize = opts.EventBufferSize
		}
		if opts.MaxModelCalls > 0 {
			o.MaxModelCalls = opts.MaxModelCalls
		}
		o.EnableStreaming = opts.EnableStreaming
		if opts.SessionStore != nil {
			o.SessionStore = opts.SessionStore
		}
		if opts.ArtifactStore != nil {
			o.ArtifactStore = opts.ArtifactStore
		}
		if opts.MemoryStore != nil {
			o.MemoryStore = opts.MemoryStore
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	})

	return &AgentFlow{opts: opts, runner: r}
}

// Runner exposes the underlying runner for callers needing callbacks or
// cancellation control.
func (f *AgentFlow) Runner() *runner.Runner { return f.runner }

// Invoke starts an asynchronous invocation returning event & error channels.
func (f *AgentFlow) Invoke(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return f.runner.Run(ctx, sessionID, userContent)
}

// InvokeSync is a synchronous helper that drains the async channels,
// accumulates events and returns the invocation id. When the run suspends on
// an approval gate the returned events contain the pending confirmation;
// core.FindApprovalRequest extracts the correlation record for Resume.
func (f *AgentFlow) InvokeSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := f.runner.Run(ctx, sessionID, userContent)
	if err != nil {
		return "", nil, err
	}

	events, err := collect(ctx, eventsCh, errorsCh)
	return invocationID, events, err
}

// Resume answers a pending approval and continues the suspended invocation
// asynchronously.
func (f *AgentFlow) Resume(
	ctx context.Context,
	sessionID, invocationID, approvalID string,
	confirmed bool,
) (<-chan core.Event, <-chan error, error) {
	return f.runner.Resume(ctx, sessionID, invocationID, approvalID, confirmed)
}

// ResumeSync answers a pending approval and drains the continued invocation
// to completion.
func (f *AgentFlow) ResumeSync(
	ctx context.Context,
	sessionID, invocationID, approvalID string,
	confirmed bool,
) ([]core.Event, error) {
	eventsCh, errorsCh, err := f.runner.Resume(ctx, sessionID, invocationID, approvalID, confirmed)
	if err != nil {
		return nil, err
	}

	return collect(ctx, eventsCh, errorsCh)
}

// Cancel requests cooperative termination of an in-flight invocation.
func (f *AgentFlow) Cancel(invocationID string) error { return f.runner.Cancel(invocationID) }

// collect drains one invocation's channels, returning all events and the
// terminal error, if any.
func collect(ctx context.Context, eventsCh <-chan core.Event, errorsCh <-chan error) ([]core.Event, error) {
	var (
		events []core.Event
		runErr error
	)
	for eventsCh != nil || errorsCh != nil {
		select {
		case <-ctx.Done():
			return events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)

		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil && runErr == nil {
				runErr = err
			}
		}
	}
	return events, runErr
}
