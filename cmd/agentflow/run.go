package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflow/agentflow"
	"github.com/agentflow/agentflow/core"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow> <message>",
		Short: "Run a workflow with a user message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sessionID, _ := cmd.Flags().GetString("session")
			return runWorkflow(cmd.Context(), a, args[0], args[1], sessionID)
		},
	}

	cmd.Flags().StringP("session", "s", "", "Session id to run in (default: generated)")
	return cmd
}

func runWorkflow(ctx context.Context, a *app, workflowName, message, sessionID string) error {
	entry, ok := findWorkflow(workflowName)
	if !ok {
		return fmt.Errorf("unknown workflow %q, run \"agentflow workflows\" for the list", workflowName)
	}

	llm, err := a.model()
	if err != nil {
		return err
	}

	root, cleanup, err := entry.build(ctx, a, llm)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer func() { _ = cleanup() }()
	}

	if sessionID == "" {
		sessionID = core.NewID()
	}

	flow := newFlow(a, root)
	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: message}}}

	invocationID, eventsCh, errorsCh, err := flow.Invoke(ctx, sessionID, userContent)
	if err != nil {
		return err
	}
	fmt.Printf("session=%s invocation=%s\n", sessionID, invocationID)

	events, err := streamEvents(eventsCh, errorsCh)
	if err != nil {
		return err
	}

	printPendingApproval(events, workflowName, sessionID, invocationID)
	return nil
}

// newFlow wires the façade with the app's stores, logger and runner limits.
func newFlow(a *app, root core.Agent) *agentflow.AgentFlow {
	return agentflow.New(root, func(o *agentflow.Options) {
		o.MaxConcurrentInvocations = a.cfg.Runner.MaxConcurrentInvocations
		o.EventBufferSize = a.cfg.Runner.EventBufferSize
		o.MaxModelCalls = a.cfg.Runner.MaxModelCalls
		o.EnableStreaming = a.cfg.Runner.EnableStreaming
		o.SessionStore = a.sessions
		o.ArtifactStore = a.artifacts
		o.Logger = a.logger
	})
}

// streamEvents drains one invocation's channels, rendering events as they
// arrive, and returns the collected events plus the terminal error, if any.
func streamEvents(eventsCh <-chan core.Event, errorsCh <-chan error) ([]core.Event, error) {
	var events []core.Event
	var runErr error
	midLine := false

	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
			midLine = printEvent(ev, midLine)
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
	if midLine {
		fmt.Println()
	}
	return events, runErr
}

// printEvent renders a single event. midLine tracks whether partial text is
// still open on the current line so the aggregated final event is not printed
// a second time.
func printEvent(ev core.Event, midLine bool) bool {
	for _, call := range ev.GetFunctionCalls() {
		if midLine {
			fmt.Println()
			midLine = false
		}
		fmt.Printf("[%s] -> %s(%s)\n", ev.Author, call.Name, call.Arguments)
	}
	for _, resp := range ev.GetFunctionResponses() {
		fmt.Printf("[%s] <- %s: %s\n", ev.Author, resp.Name, formatToolResponse(resp.Response))
	}

	if ev.Content == nil || ev.Content.Role == "user" {
		return midLine
	}
	text := joinTextParts(ev.Content.Parts)
	if text == "" {
		return midLine
	}

	if ev.IsPartial() {
		fmt.Print(text)
		return true
	}
	if midLine {
		// The chunks are already on screen, just close the line.
		fmt.Println()
		return false
	}
	fmt.Printf("[%s] %s\n", ev.Author, text)
	return false
}

// printPendingApproval tells the user how to answer a suspended approval
// gate, if the run left one behind. The request's own invocation id wins over
// the caller's since a resumed run suspends under a fresh invocation.
func printPendingApproval(events []core.Event, workflowName, sessionID, invocationID string) {
	req := core.FindApprovalRequest(events)
	if req == nil {
		return
	}
	if req.InvocationID != "" {
		invocationID = req.InvocationID
	}
	fmt.Println()
	fmt.Printf("Approval required: %s\n", req.Hint)
	fmt.Printf("  agentflow resume %s %s %s %s --approve\n", workflowName, sessionID, invocationID, req.ApprovalID)
	fmt.Printf("  agentflow resume %s %s %s %s --deny\n", workflowName, sessionID, invocationID, req.ApprovalID)
}

func joinTextParts(parts []core.Part) string {
	var out string
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

func formatToolResponse(response any) string {
	if s, ok := response.(string); ok {
		return s
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Sprintf("%v", response)
	}
	return string(payload)
}
