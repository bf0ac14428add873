// Package mcp proxies tools hosted on Model Context Protocol servers into the
// local tool interface, so agents can call remote capabilities the same way
// they call in-process functions.
package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second

	clientName    = "agentflow"
	clientVersion = "0.1.0"
)

// Options configures the client wrapper.
type Options struct {
	// Timeout bounds each remote request. Zero disables the per-call deadline.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a failed call.
	MaxRetries int

	// Backoff is the base wait between attempts, doubled on each retry.
	Backoff time.Duration

	// CacheTTL bounds how long a tool listing is reused. Zero disables caching.
	CacheTTL time.Duration

	// Env is the environment handed to a stdio server subprocess.
	Env []string
}

// Client wraps an mcp-go client with per-call timeouts, bounded retry, and a
// cached tool listing.
type Client struct {
	mcpClient  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	cacheTTL   time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an already connected MCP client implementation.
func NewClient(c client.MCPClient, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout:    defaultTimeout,
		MaxRetries: defaultRetries,
		Backoff:    defaultBackoff,
		CacheTTL:   defaultCacheTTL,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		mcpClient:  c,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		cacheTTL:   opts.CacheTTL,
	}
}

// NewStdioClient launches command as an MCP stdio server, performs the
// initialize handshake, and returns a ready client.
func NewStdioClient(command string, args []string, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		Timeout:    defaultTimeout,
		MaxRetries: defaultRetries,
		Backoff:    defaultBackoff,
		CacheTTL:   defaultCacheTTL,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	stdioClient, err := client.NewStdioMCPClient(command, opts.Env, args...)
	if err != nil {
		return nil, err
	}

	if err := stdioClient.Start(context.Background()); err != nil {
		return nil, err
	}

	handshakeTimeout := opts.Timeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := stdioClient.Initialize(ctx, initReq); err != nil {
		return nil, err
	}

	return NewClient(stdioClient, optFns...), nil
}

// Tools lists the tools declared by the server, serving from cache while the
// TTL holds.
func (c *Client) Tools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}

	var listed *mcp.ListToolsResult
	err := c.withRetry(ctx, func(reqCtx context.Context) error {
		res, err := c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		listed = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.storeTools(listed.Tools)
	return listed.Tools, nil
}

// CallTool executes the named tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	err := c.withRetry(ctx, func(reqCtx context.Context) error {
		res, err := c.mcpClient.CallTool(reqCtx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close shuts down the underlying transport.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

// withRetry runs do up to maxRetries+1 times with exponential backoff.
// Cancellation and deadline errors are returned immediately, never retried.
func (c *Client) withRetry(ctx context.Context, do func(context.Context) error) error {
	var lastErr error
	attempts := c.maxRetries + 1
	for i := range attempts {
		reqCtx, cancel := c.requestContext(ctx)
		err := do(reqCtx)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := c.sleepBackoff(ctx, i); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	wait := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
