package mcp

import (
	"context"
	"errors"

	"github.com/agentflow/agentflow/tool"
)

// ToolsetOptions configures which server tools a toolset admits.
type ToolsetOptions struct {
	// ToolFilter allow-lists server tool names. Empty admits every tool.
	ToolFilter []string
}

// Toolset materializes a filtered view of a server's tools as local tools.
// Filtering happens at listing time, so an agent built from a toolset only
// ever advertises the admitted subset to the model.
type Toolset struct {
	client *Client
	filter map[string]struct{}
}

// NewToolset wraps a connected client.
func NewToolset(client *Client, optFns ...func(o *ToolsetOptions)) (*Toolset, error) {
	if client == nil {
		return nil, errors.New("mcp client is required")
	}

	opts := ToolsetOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var filter map[string]struct{}
	if len(opts.ToolFilter) > 0 {
		filter = make(map[string]struct{}, len(opts.ToolFilter))
		for _, name := range opts.ToolFilter {
			filter[name] = struct{}{}
		}
	}

	return &Toolset{client: client, filter: filter}, nil
}

// Tools lists the server's tools and wraps each one admitted by the
// allow-list in a ToolAdapter.
func (ts *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	serverTools, err := ts.client.Tools(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]tool.Tool, 0, len(serverTools))
	for _, st := range serverTools {
		if !ts.admits(st.Name) {
			continue
		}
		adapter, err := NewToolAdapter(st, ts.client)
		if err != nil {
			return nil, err
		}
		out = append(out, adapter)
	}
	return out, nil
}

// Close shuts down the underlying client.
func (ts *Toolset) Close() error {
	return ts.client.Close()
}

func (ts *Toolset) admits(name string) bool {
	if ts.filter == nil {
		return true
	}
	_, ok := ts.filter[name]
	return ok
}
