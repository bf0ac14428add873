package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <workflow> <session> <invocation> <approval>",
		Short: "Answer a pending approval and continue the run",
		Long: `Resume answers the approval gate printed at the end of a suspended run.
The workflow name rebuilds the same agent tree; the session must live in a
durable store (store.backend=sqlite) for resumption across processes.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			approve, _ := cmd.Flags().GetBool("approve")
			deny, _ := cmd.Flags().GetBool("deny")
			if approve == deny {
				return fmt.Errorf("exactly one of --approve or --deny is required")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			workflowName, sessionID, invocationID, approvalID := args[0], args[1], args[2], args[3]

			entry, ok := findWorkflow(workflowName)
			if !ok {
				return fmt.Errorf("unknown workflow %q, run \"agentflow workflows\" for the list", workflowName)
			}

			llm, err := a.model()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			root, cleanup, err := entry.build(ctx, a, llm)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer func() { _ = cleanup() }()
			}

			flow := newFlow(a, root)
			eventsCh, errorsCh, err := flow.Resume(ctx, sessionID, invocationID, approvalID, approve)
			if err != nil {
				return err
			}

			events, err := streamEvents(eventsCh, errorsCh)
			if err != nil {
				return err
			}

			// A continued run can suspend again on the next gate.
			printPendingApproval(events, workflowName, sessionID, invocationID)
			return nil
		},
	}

	cmd.Flags().Bool("approve", false, "Approve the pending request")
	cmd.Flags().Bool("deny", false, "Reject the pending request")
	return cmd
}
