package agent

import "github.com/agentflow/agentflow/core"

// Provider computes instruction text at resolution time, typically from
// session state or the environment.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts an ordinary function into a Provider.
type Func func(*core.RunContext) (string, error)

func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is a system prompt source: either a fixed string or a Provider
// consulted on every model request. The zero value resolves to empty text.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText returns a fixed instruction.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider returns an instruction recomputed by p on each
// resolution.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc wraps f as a dynamic instruction.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether resolution can never fail or change between calls.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve produces the instruction text for this run.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider == nil {
		return i.text, nil
	}
	return i.provider.Instruction(rc)
}
