package mcpplugin

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second

	clientName    = "maiar-runtime"
	clientVersion = "0.1.0"
)

// Server describes how to reach an MCP server: a command started over stdio,
// or the URL of a streamable HTTP endpoint.
type Server struct {
	Name    string
	Command string
	Args    []string
	URL     string
}

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and initial backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.retry = c.retry.WithMaxAttempts(retries + 1)
		}
		if backoff > 0 {
			c.retry.InitialDelay = backoff
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client wraps an mcp-go client with request timeouts, retries and a tool
// list cache.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	retry := resilience.DefaultRetryConfig().WithMaxAttempts(defaultRetries + 1)
	retry.InitialDelay = defaultBackoff
	retry.Jitter = 0
	out := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		retry:     retry,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Connect starts and initializes a client for srv.
func Connect(ctx context.Context, srv Server, opts ...ClientOption) (*Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch {
	case srv.URL != "":
		c, err = client.NewStreamableHttpClient(srv.URL)
	case srv.Command != "":
		c, err = client.NewStdioMCPClient(srv.Command, nil, srv.Args...)
	default:
		return nil, fmt.Errorf("mcp server %q needs a command or a url", srv.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: %w", srv.Name, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start mcp server %q: %w", srv.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(initCtx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize mcp server %q: %w", srv.Name, err)
	}
	return NewClient(c, opts...), nil
}

// ListTools retrieves the tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	var resp *mcp.ListToolsResult
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
		return err
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var resp *mcp.CallToolResult
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.mcpClient.CallTool(ctx, req)
		return err
	})
	return resp, err
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

// do runs fn under the request timeout. Cancellation and deadline errors are
// not retried.
func (c *Client) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.retry.Do(ctx, func() error {
		reqCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		err := fn(reqCtx)
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return errors.New(errors.CodeContextLost, "mcp request interrupted", err)
		}
		return err
	})
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
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
