package evaluation

import (
	"errors"
	"fmt"
	"strings"
)

// ResponseEvaluator checks that the final response mentions every required
// phrase, ignoring case. The score is the fraction of phrases found.
type ResponseEvaluator struct {
	mustContain []string
}

// NewResponseEvaluator builds an evaluator requiring each phrase to appear in
// the final response.
func NewResponseEvaluator(mustContain ...string) *ResponseEvaluator {
	return &ResponseEvaluator{mustContain: mustContain}
}

// Evaluate implements Evaluator.
func (e *ResponseEvaluator) Evaluate(inv Invocation) (*Result, error) {
	if len(e.mustContain) == 0 {
		return nil, errors.New("response evaluator has no required phrases")
	}

	text := strings.ToLower(ContentText(inv.FinalResponse))
	matched := 0
	var failures []string
	for _, want := range e.mustContain {
		if strings.Contains(text, strings.ToLower(want)) {
			matched++
			continue
		}
		failures = append(failures, fmt.Sprintf("final response missing %q", want))
	}

	return &Result{
		Passed:   matched == len(e.mustContain),
		Score:    float64(matched) / float64(len(e.mustContain)),
		Failures: failures,
	}, nil
}

// TrajectoryEvaluator compares the sequence of tool names the run called
// against the expected sequence, position by position. The score is the
// fraction of positions that line up.
type TrajectoryEvaluator struct {
	expected []string
}

// NewTrajectoryEvaluator builds an evaluator expecting exactly the given tool
// calls in order. An empty expectation passes only runs that called no tools.
func NewTrajectoryEvaluator(toolNames ...string) *TrajectoryEvaluator {
	return &TrajectoryEvaluator{expected: toolNames}
}

// Evaluate implements Evaluator.
func (e *TrajectoryEvaluator) Evaluate(inv Invocation) (*Result, error) {
	actual := make([]string, len(inv.ToolCalls))
	for i, call := range inv.ToolCalls {
		actual[i] = call.Name
	}

	n := max(len(e.expected), len(actual))
	if n == 0 {
		return &Result{Passed: true, Score: 1}, nil
	}

	matched := 0
	var failures []string
	for i := range n {
		switch {
		case i >= len(actual):
			failures = append(failures, fmt.Sprintf("call %d missing, want %s", i, e.expected[i]))
		case i >= len(e.expected):
			failures = append(failures, fmt.Sprintf("unexpected call %d: %s", i, actual[i]))
		case actual[i] != e.expected[i]:
			failures = append(failures, fmt.Sprintf("call %d: got %s, want %s", i, actual[i], e.expected[i]))
		default:
			matched++
		}
	}

	return &Result{
		Passed:   len(failures) == 0,
		Score:    float64(matched) / float64(n),
		Failures: failures,
	}, nil
}
