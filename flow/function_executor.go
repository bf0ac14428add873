package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/tool"
)

// FunctionExecutor runs a batch of model-requested function calls and hands
// one FunctionResponse event per call to emit. Implementations must honor
// runCtx.Context cancellation, convert tool panics into error responses
// instead of crashing the flow, and apply the ToolContext's accumulated
// actions to the events they emit. BaseFlow folds the emitted events into a
// single batch event before persistence.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, tools map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // worker cap; <1 means one worker per call
	PreserveOrder  bool // emit responses in request order instead of completion order
	LogStartEvents bool // log a line when each function starts
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor returns the standard executor.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	var emitMu sync.Mutex
	send := func(ev core.Event, fnName string) {
		emitMu.Lock()
		err := emit(ev)
		emitMu.Unlock()
		if err != nil {
			runCtx.LogError("agent.function.emit.error", "function", fnName, "error", err.Error())
		}
	}

	switch len(fnCalls) {
	case 0:
		return
	case 1:
		send(e.runCall(runCtx, agent, tools, fnCalls[0]), fnCalls[0].Name)
		return
	}

	workers := e.cfg.MaxParallel
	if workers < 1 || workers > len(fnCalls) {
		workers = len(fnCalls)
	}

	started := time.Now()
	ordered := make([]core.Event, len(fnCalls))
	idxCh := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxCh {
				if runCtx.Context.Err() != nil {
					continue
				}

				fc := fnCalls[idx]
				ev := e.runCall(runCtx, agent, tools, fc)
				if e.cfg.PreserveOrder {
					// each worker owns a disjoint slot
					ordered[idx] = ev
				} else {
					send(ev, fc.Name)
				}
			}
		}()
	}

	for i := range fnCalls {
		if runCtx.Context.Err() != nil {
			break
		}
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range ordered {
			// zero ID marks a call skipped by cancellation
			if ev.ID != "" {
				send(ev, fnCalls[i].Name)
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", len(fnCalls),
		"parallelism", workers,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// runCall executes one function call through its tool and returns the
// response event with the ToolContext's actions already applied.
func (e *parallelFunctionExecutor) runCall(
	runCtx *core.RunContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	fc core.FunctionCall,
) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	started := time.Now()
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &panicErr{val: r}
				runCtx.LogError("agent.function.panic",
					"agent", agent.GetName(),
					"function", fc.Name,
					"recover", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		result, err = dispatchTool(tools, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(started).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&ev)
	return ev
}

type panicErr struct {
	val any
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// dispatchTool resolves the named tool in the registry and invokes it with
// the decoded argument map. Empty argument strings mean no arguments.
func dispatchTool(tools map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := tools[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}
	return impl.Call(toolCtx, argMap)
}
