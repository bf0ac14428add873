package workflows

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/agentflow/code"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/runner"
)

// snippetRecorder is a code.Executor stub that records every snippet it is
// asked to run and returns a fixed output.
type snippetRecorder struct {
	mu       sync.Mutex
	snippets []string
	output   string
}

func (r *snippetRecorder) Execute(_ context.Context, snippet string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snippets = append(r.snippets, snippet)
	return r.output, nil
}

func (r *snippetRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.snippets))
	copy(out, r.snippets)
	return out
}

func TestCalculationAgent_RunsCodeThroughExecutor(t *testing.T) {
	exec := &snippetRecorder{output: "42\n"}

	llm := model.NewMockModel("mock", "test")
	llm.QueueFunctionCall("execute_code", `{"code":"print(6 * 7)"}`)
	llm.QueueTextResponse("42")

	r := runner.New(NewCalculationAgent(llm, exec))

	_, events, errs, err := r.Run(context.Background(), "sess-calc", userText("What is 6 * 7?"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	record, ok := findToolRecord(collected, "execute_code")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"status": "success", "output": "42\n"}, record)

	assert.Equal(t, []string{"print(6 * 7)"}, exec.recorded())

	texts := finalTextEvents(collected)
	require.NotEmpty(t, texts)
	last := texts[len(texts)-1]
	assert.Equal(t, "CalculationAgent", last.Author)
	tp, ok := last.Content.Parts[0].(core.TextPart)
	require.True(t, ok)
	assert.Equal(t, "42", tp.Text)
}

// The root agent gathers fee and rate records, then hands the arithmetic to
// the CalculationAgent tool, which runs the model-written snippet through the
// executor. Only root-authored events surface on the run stream.
func TestEnhancedCurrencyAgent_DelegatesArithmetic(t *testing.T) {
	exec := &snippetRecorder{output: "448.73\n"}

	llm := model.NewMockModel("mock", "test")
	llm.QueueFunctionCall("get_fee_for_payment_method", `{"method":"Gold Debit Card"}`)
	llm.QueueFunctionCall("get_exchange_rate", `{"base_currency":"USD","target_currency":"EUR"}`)
	llm.QueueFunctionCall("CalculationAgent", `{"request":"Compute 500 * (1 - 0.035) * 0.93 rounded to 2 decimals"}`)
	llm.QueueFunctionCall("execute_code", `{"code":"print(round(500 * (1 - 0.035) * 0.93, 2))"}`)
	llm.QueueTextResponse("448.73")
	llm.QueueTextResponse("500 USD converts to 448.73 EUR after the 3.5% fee.")

	r := runner.New(NewEnhancedCurrencyAgent(llm, exec))

	_, events, errs, err := r.Run(context.Background(), "sess-enhanced",
		userText("Convert 500 USD to EUR using my Gold Debit Card"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	for _, ev := range collected {
		assert.Equal(t, "enhanced_currency_agent", ev.Author)
	}

	fee, ok := findToolRecord(collected, "get_fee_for_payment_method")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"status": "success", "fee_percentage": 0.035}, fee)

	rate, ok := findToolRecord(collected, "get_exchange_rate")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"status": "success", "rate": 0.93}, rate)

	// The delegate ran the scripted snippet through the executor.
	snippets := exec.recorded()
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0], "0.035")

	reply, ok := findDelegateReply(collected, "CalculationAgent")
	require.True(t, ok)
	assert.Equal(t, "448.73", reply)

	texts := finalTextEvents(collected)
	require.NotEmpty(t, texts)
	last := texts[len(texts)-1]
	assert.Equal(t, "enhanced_currency_agent", last.Author)
	tp, ok := last.Content.Parts[0].(core.TextPart)
	require.True(t, ok)
	assert.Contains(t, tp.Text, "448.73")
}

func TestNewEnhancedCurrencyAgent_ToolRegistration(t *testing.T) {
	exec := code.ExecutorFunc(func(context.Context, string) (string, error) { return "", nil })
	a := NewEnhancedCurrencyAgent(model.NewMockModel("mock", "test"), exec)

	assert.Equal(t, "enhanced_currency_agent", a.Name())
	tools := a.GetTools()
	require.Len(t, tools, 3)
	_, hasFee := tools["get_fee_for_payment_method"]
	_, hasRate := tools["get_exchange_rate"]
	_, hasCalc := tools["CalculationAgent"]
	assert.True(t, hasFee)
	assert.True(t, hasRate)
	assert.True(t, hasCalc)
}
