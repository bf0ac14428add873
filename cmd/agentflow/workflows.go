package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentflow/agentflow/code"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/mcp"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/workflows"
)

// workflowEntry is one runnable workflow. cleanup is non-nil when the built
// agent holds external resources, such as an MCP server subprocess.
type workflowEntry struct {
	name        string
	description string
	build       func(ctx context.Context, a *app, llm model.Model) (root core.Agent, cleanup func() error, err error)
}

func workflowRegistry() []workflowEntry {
	return []workflowEntry{
		{
			name:        "currency",
			description: "Currency assistant with fee and exchange rate tools",
			build: func(_ context.Context, _ *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewCurrencyAgent(llm), nil, nil
			},
		},
		{
			name:        "calc",
			description: "Currency assistant delegating arithmetic to a code-running agent",
			build: func(_ context.Context, a *app, llm model.Model) (core.Agent, func() error, error) {
				exec := code.NewCommandExecutor(a.cfg.Workflows.CodeCommand)
				return workflows.NewEnhancedCurrencyAgent(llm, exec), nil, nil
			},
		},
		{
			name:        "blog",
			description: "Sequential outline, writer and editor pipeline",
			build: func(_ context.Context, _ *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewBlogPipeline(llm), nil, nil
			},
		},
		{
			name:        "research",
			description: "Parallel researchers fanned into an aggregator",
			build: func(_ context.Context, _ *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewResearchSystem(llm), nil, nil
			},
		},
		{
			name:        "story",
			description: "Critic and refiner loop that exits on approval",
			build: func(_ context.Context, a *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewStoryPipeline(llm, func(o *workflows.StoryPipelineOptions) {
					if a.cfg.Workflows.LoopMaxIterations > 0 {
						o.MaxIterations = a.cfg.Workflows.LoopMaxIterations
					}
				}), nil, nil
			},
		},
		{
			name:        "coordinator",
			description: "Coordinator delegating to research and summary agents as tools",
			build: func(_ context.Context, _ *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewResearchCoordinator(llm), nil, nil
			},
		},
		{
			name:        "shipping",
			description: "Shipping orders gated on human approval above a threshold",
			build: func(_ context.Context, a *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewShippingAgent(llm, func(o *workflows.ShippingOptions) {
					if a.cfg.Workflows.LargeOrderThreshold > 0 {
						o.LargeOrderThreshold = a.cfg.Workflows.LargeOrderThreshold
					}
				}), nil, nil
			},
		},
		{
			name:        "image",
			description: "Image generation with bulk approval gating",
			build: func(_ context.Context, a *app, llm model.Model) (core.Agent, func() error, error) {
				return workflows.NewImageAgent(llm, func(o *workflows.ImageOptions) {
					if a.cfg.Workflows.BulkImageThreshold > 0 {
						o.BulkImageThreshold = a.cfg.Workflows.BulkImageThreshold
					}
				}), nil, nil
			},
		},
		{
			name:        "everything",
			description: "Agent backed by tools proxied from a remote MCP server",
			build:       buildEverything,
		},
	}
}

func findWorkflow(name string) (workflowEntry, bool) {
	for _, entry := range workflowRegistry() {
		if entry.name == name {
			return entry, true
		}
	}
	return workflowEntry{}, false
}

// buildEverything launches the configured MCP server subprocess and exposes
// its filtered tool listing to a model agent. The returned cleanup terminates
// the subprocess.
func buildEverything(ctx context.Context, a *app, llm model.Model) (core.Agent, func() error, error) {
	client, err := mcp.NewStdioClient(a.cfg.MCP.Command, a.cfg.MCP.Args, func(o *mcp.Options) {
		if a.cfg.MCP.TimeoutSeconds > 0 {
			o.Timeout = time.Duration(a.cfg.MCP.TimeoutSeconds) * time.Second
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start mcp server %q: %w", a.cfg.MCP.Command, err)
	}

	toolset, err := mcp.NewToolset(client, func(o *mcp.ToolsetOptions) {
		o.ToolFilter = a.cfg.MCP.ToolFilter
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	agent, err := workflows.NewEverythingAgent(ctx, llm, toolset)
	if err != nil {
		toolset.Close()
		return nil, nil, err
	}
	return agent, toolset.Close, nil
}

func newWorkflowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List the packaged workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, entry := range workflowRegistry() {
				fmt.Printf("%-12s %s\n", entry.name, entry.description)
			}
			return nil
		},
	}
}
