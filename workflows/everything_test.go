package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/runner"
	"github.com/agentflow/agentflow/tool"
)

type fakeToolSource struct {
	tools []tool.Tool
	err   error
}

func (f *fakeToolSource) Tools(context.Context) ([]tool.Tool, error) { return f.tools, f.err }

func newTinyImageTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"getTinyImage",
		"Returns a tiny placeholder image.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(*core.ToolContext, map[string]any) (any, error) {
			return map[string]any{"mime_type": "image/png", "data": "iVBOR"}, nil
		},
	)
}

func TestNewEverythingAgent_RegistersRemoteTools(t *testing.T) {
	source := &fakeToolSource{tools: []tool.Tool{newTinyImageTool()}}

	a, err := NewEverythingAgent(context.Background(), model.NewMockModel("mock", "test"), source)
	require.NoError(t, err)

	assert.Equal(t, "image_agent", a.Name())
	assert.True(t, a.HasTool("getTinyImage"))
}

func TestNewEverythingAgent_NilSource(t *testing.T) {
	_, err := NewEverythingAgent(context.Background(), model.NewMockModel("mock", "test"), nil)
	require.Error(t, err)
}

func TestNewEverythingAgent_SourceError(t *testing.T) {
	boom := errors.New("server unreachable")
	source := &fakeToolSource{err: boom}

	_, err := NewEverythingAgent(context.Background(), model.NewMockModel("mock", "test"), source)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNewEverythingAgent_EmptySource(t *testing.T) {
	source := &fakeToolSource{}

	_, err := NewEverythingAgent(context.Background(), model.NewMockModel("mock", "test"), source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tools")
}

func TestEverythingAgent_CallsRemoteTool(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.QueueFunctionCall("getTinyImage", `{}`)
	llm.QueueTextResponse("Here is the image.")

	source := &fakeToolSource{tools: []tool.Tool{newTinyImageTool()}}
	a, err := NewEverythingAgent(context.Background(), llm, source)
	require.NoError(t, err)

	r := runner.New(a)

	_, events, errs, err := r.Run(context.Background(), "sess-mcp", userText("Generate an image"))
	require.NoError(t, err)

	collected, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	record, ok := findToolRecord(collected, "getTinyImage")
	require.True(t, ok)
	assert.Equal(t, "image/png", record["mime_type"])
}
