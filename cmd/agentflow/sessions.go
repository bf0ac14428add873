package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/session"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}
	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsEventsCommand())
	return cmd
}

func newSessionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			store, ok := a.sessions.(*session.SQLiteStore)
			if !ok {
				return fmt.Errorf("session listing requires store.backend=sqlite")
			}

			summaries, err := store.List()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}
			for _, s := range summaries {
				fmt.Printf("%s  events=%d  updated=%s\n",
					s.ID, s.EventCount, s.Updated.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newSessionsEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events <session>",
		Short: "Show a session's event history and state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.sessions.Get(args[0])
			if err != nil {
				return err
			}

			if len(sess.Events) == 0 {
				fmt.Printf("Session %s has no events.\n", sess.ID)
			}
			for i, ev := range sess.Events {
				fmt.Printf("%3d  %s  %-24s %s\n",
					i+1, ev.Timestamp.Format("15:04:05"), ev.Author, summarizeEvent(ev))
			}

			state := sess.StateSnapshot()
			if len(state) == 0 {
				return nil
			}
			keys := make([]string, 0, len(state))
			for k := range state {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Println("\nState:")
			for _, k := range keys {
				fmt.Printf("  %s: %s\n", k, truncate(fmt.Sprintf("%v", state[k]), 120))
			}
			return nil
		},
	}
}

// summarizeEvent renders one stored event as a single line.
func summarizeEvent(ev core.Event) string {
	var parts []string
	for _, call := range ev.GetFunctionCalls() {
		parts = append(parts, fmt.Sprintf("-> %s(%s)", call.Name, truncate(call.Arguments, 60)))
	}
	for _, resp := range ev.GetFunctionResponses() {
		parts = append(parts, fmt.Sprintf("<- %s: %s", resp.Name, truncate(formatToolResponse(resp.Response), 60)))
	}
	if ev.Content != nil {
		if text := joinTextParts(ev.Content.Parts); text != "" {
			parts = append(parts, truncate(text, 80))
		}
	}
	if len(parts) == 0 {
		return "(control event)"
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
