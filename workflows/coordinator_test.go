package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/runner"
	"github.com/agentflow/agentflow/session"
)

// findDelegateReply returns the text a delegated agent handed back through
// its function response.
func findDelegateReply(events []core.Event, name string) (string, bool) {
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			if fr.Name != name {
				continue
			}
			if s, ok := fr.Response.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func TestResearchCoordinator_DelegatesThroughAgentTools(t *testing.T) {
	llm := newRecordingModel()
	llm.QueueFunctionCall("ResearchAgent", `{"request":"quantum computing"}`)
	llm.QueueTextResponse("Quantum error correction reached a new milestone this year.")
	llm.QueueFunctionCall("SummarizerAgent", `{"request":"summarize the findings"}`)
	llm.QueueTextResponse("Error correction is maturing fast.")
	llm.QueueTextResponse("Research done: error correction is maturing fast.")

	store := session.NewInMemoryStore()
	r := runner.New(NewResearchCoordinator(llm), func(o *runner.Options) { o.SessionStore = store })

	_, events, errs, err := r.Run(context.Background(), "sess-coord", userText("Research quantum computing and summarize it"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	// Both delegates answer through function responses authored by the
	// coordinator; their own events never surface on the run stream.
	for _, ev := range collected {
		assert.Equal(t, "ResearchCoordinator", ev.Author)
	}

	reply, ok := findDelegateReply(collected, "ResearchAgent")
	require.True(t, ok)
	assert.Equal(t, "Quantum error correction reached a new milestone this year.", reply)

	reply, ok = findDelegateReply(collected, "SummarizerAgent")
	require.True(t, ok)
	assert.Equal(t, "Error correction is maturing fast.", reply)

	sess, err := store.Get("sess-coord")
	require.NoError(t, err)

	findings, ok := sess.GetState("research_findings")
	require.True(t, ok)
	assert.Equal(t, "Quantum error correction reached a new milestone this year.", findings)

	summary, ok := sess.GetState("final_summary")
	require.True(t, ok)
	assert.Equal(t, "Error correction is maturing fast.", summary)

	// Delegation handed the persisted findings to the summarizer: its rendered
	// instructions contain the researcher's output.
	reqs := llm.recorded()
	require.Len(t, reqs, 5)
	assert.Contains(t, reqs[3].Instructions, "Quantum error correction reached a new milestone this year.")

	texts := finalTextEvents(collected)
	require.NotEmpty(t, texts)
	last := texts[len(texts)-1]
	assert.Equal(t, "ResearchCoordinator", last.Author)
}

func TestResearchCoordinator_ToolNamesMatchDelegates(t *testing.T) {
	c := NewResearchCoordinator(newRecordingModel())

	assert.Equal(t, "ResearchCoordinator", c.Name())
	tools := c.GetTools()
	require.Len(t, tools, 2)
	_, hasResearch := tools["ResearchAgent"]
	_, hasSummarizer := tools["SummarizerAgent"]
	assert.True(t, hasResearch)
	assert.True(t, hasSummarizer)
}
