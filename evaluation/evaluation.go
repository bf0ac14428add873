// Package evaluation scores recorded agent runs against expectations. An
// Invocation captures what the user asked, which tools the agent called and
// what it finally answered; evaluators grade one aspect of that record and
// report a pass flag, a score in [0, 1] and the individual failures.
package evaluation

import (
	"strings"

	"github.com/agentflow/agentflow/core"
)

// Invocation is the distilled record of one agent run.
type Invocation struct {
	// UserContent is the first user message of the run.
	UserContent core.Content
	// ToolCalls lists every function call the run issued, in emission order.
	ToolCalls []core.FunctionCall
	// FinalResponse is the last non-partial assistant text of the run.
	FinalResponse core.Content
}

// Result is an evaluator's verdict on an invocation.
type Result struct {
	Passed   bool
	Score    float64
	Failures []string
}

// Evaluator grades one aspect of an invocation.
type Evaluator interface {
	Evaluate(invocation Invocation) (*Result, error)
}

// InvocationFromEvents distills a run's event stream into an Invocation.
// Partial chunks and content-free control events are skipped; when several
// assistant texts appear, the last one is the final response.
func InvocationFromEvents(events []core.Event) Invocation {
	var inv Invocation
	for _, ev := range events {
		if ev.IsPartial() || ev.Content == nil {
			continue
		}
		if ev.Author == "user" || ev.Content.Role == "user" {
			if len(inv.UserContent.Parts) == 0 {
				inv.UserContent = *ev.Content
			}
			continue
		}
		if calls := ev.GetFunctionCalls(); len(calls) > 0 {
			inv.ToolCalls = append(inv.ToolCalls, calls...)
			continue
		}
		if len(ev.GetFunctionResponses()) > 0 {
			continue
		}
		inv.FinalResponse = *ev.Content
	}
	return inv
}

// InvocationFromSession distills a session's recorded history.
func InvocationFromSession(s *core.Session) Invocation {
	return InvocationFromEvents(s.GetEvents())
}

// ContentText joins the text parts of a content value.
func ContentText(c core.Content) string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}
