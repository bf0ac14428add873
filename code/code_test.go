package code

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/tool"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandExecutor_CapturesStdout(t *testing.T) {
	requireShell(t)

	e := NewCommandExecutor("sh")
	out, err := e.Execute(context.Background(), `echo "6 * 7 = 42"`)
	require.NoError(t, err)
	assert.Equal(t, "6 * 7 = 42\n", out)
}

func TestCommandExecutor_NonZeroExitSurfacesStderr(t *testing.T) {
	requireShell(t)

	e := NewCommandExecutor("sh")
	_, err := e.Execute(context.Background(), "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCommandExecutor_EmptySnippet(t *testing.T) {
	e := NewCommandExecutor("sh")
	_, err := e.Execute(context.Background(), "   \n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty code snippet")
}

func TestCommandExecutor_Timeout(t *testing.T) {
	requireShell(t)

	e := NewCommandExecutor("sh", func(o *CommandOptions) {
		o.Timeout = 50 * time.Millisecond
	})
	_, err := e.Execute(context.Background(), "sleep 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestCommandExecutor_TruncatesOutput(t *testing.T) {
	requireShell(t)

	e := NewCommandExecutor("sh", func(o *CommandOptions) {
		o.MaxOutputBytes = 10
	})
	out, err := e.Execute(context.Background(), `printf '%s' aaaaaaaaaaaaaaaaaaaa`)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), out)
}

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()

	rc := core.NewRunContext(core.RunContextParams{
		SessionID:    "sess",
		InvocationID: "inv-1",
		Agent:        core.AgentInfo{Name: "agent", Type: "model"},
		UserContent:  core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}},
		Emit:         make(chan core.Event, 10),
		Session:      core.NewSession("sess"),
	})
	return core.NewToolContext(rc, core.NewID())
}

func TestExecuteTool_SuccessRecord(t *testing.T) {
	stub := ExecutorFunc(func(_ context.Context, snippet string) (string, error) {
		assert.Equal(t, "print(6 * 7)", snippet)
		return "42\n", nil
	})

	result, err := NewExecuteTool(stub).Call(newToolContext(t), map[string]any{"code": "print(6 * 7)"})
	require.NoError(t, err)

	record, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"status": "success", "output": "42\n"}, record)
}

func TestExecuteTool_ErrorRecord(t *testing.T) {
	stub := ExecutorFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("code execution failed: NameError")
	})

	result, err := NewExecuteTool(stub).Call(newToolContext(t), map[string]any{"code": "print(x)"})
	require.NoError(t, err)

	record, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", record["status"])
	assert.Contains(t, record["error_message"], "NameError")
}

func TestExecuteTool_MissingArgument(t *testing.T) {
	stub := ExecutorFunc(func(_ context.Context, _ string) (string, error) {
		t.Fatal("executor must not run without the code argument")
		return "", nil
	})

	_, err := NewExecuteTool(stub).Call(newToolContext(t), map[string]any{})
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}
