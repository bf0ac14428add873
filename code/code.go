// Package code runs model-produced code snippets through a configurable
// executor, so agents can delegate arithmetic and data handling to a real
// interpreter instead of approximating it in-model.
package code

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a code snippet and returns whatever it printed to stdout.
type Executor interface {
	Execute(ctx context.Context, snippet string) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, snippet string) (string, error)

// Execute invokes the function.
func (f ExecutorFunc) Execute(ctx context.Context, snippet string) (string, error) {
	return f(ctx, snippet)
}

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxOutput = 64 * 1024
)

// CommandOptions configure the subprocess executor.
type CommandOptions struct {
	// Args are passed to the interpreter ahead of the snippet, which always
	// arrives on stdin.
	Args []string

	// Timeout bounds a single execution. Zero uses the default.
	Timeout time.Duration

	// MaxOutputBytes truncates captured stdout beyond this size. Zero uses
	// the default.
	MaxOutputBytes int
}

// CommandExecutor pipes snippets into an interpreter subprocess ("python3",
// "sh", ...) and captures stdout. Stderr is folded into the error on a
// non-zero exit.
type CommandExecutor struct {
	command string
	opts    CommandOptions
}

// NewCommandExecutor builds an executor around the named interpreter binary.
func NewCommandExecutor(command string, optFns ...func(o *CommandOptions)) *CommandExecutor {
	opts := CommandOptions{
		Timeout:        defaultTimeout,
		MaxOutputBytes: defaultMaxOutput,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CommandExecutor{command: command, opts: opts}
}

// Execute runs the snippet and returns its stdout.
func (e *CommandExecutor) Execute(ctx context.Context, snippet string) (string, error) {
	if strings.TrimSpace(snippet) == "" {
		return "", errors.New("empty code snippet")
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.command, e.opts.Args...)
	cmd.Stdin = strings.NewReader(snippet)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("code execution timed out after %s", e.opts.Timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("code execution failed: %s", detail)
	}

	out := stdout.Bytes()
	if len(out) > e.opts.MaxOutputBytes {
		out = out[:e.opts.MaxOutputBytes]
	}
	return string(out), nil
}
