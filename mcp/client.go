package mcp

import (
	"context"
	"log/slog"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Client is the facade the rest of the bot talks to. It hides process
// management, tool aggregation and invocation behind three calls.
type Client struct {
	manager    *ProcessManager
	aggregator *Aggregator
	invoker    *Invoker
}

func NewClient() *Client {
	manager := NewProcessManager()
	return &Client{
		manager:    manager,
		aggregator: NewAggregator(manager),
		invoker:    NewInvoker(manager),
	}
}

// StartServers launches the configured servers. A server that fails to start
// is logged and skipped so one broken entrypoint does not take down the bot.
func (c *Client) StartServers(ctx context.Context, configs []ServerConfig) {
	for _, cfg := range configs {
		if err := c.manager.StartServer(ctx, cfg); err != nil {
			slog.Warn("mcp server unavailable", "id", cfg.ID, "error", err)
		}
	}
}

// ListTools returns the namespaced tools of all running servers. No servers
// means an empty catalog, not an error.
func (c *Client) ListTools() []mcptypes.Tool {
	return c.aggregator.ListAllTools()
}

// Execute runs a namespaced tool call. The result always carries a JSON
// envelope, success or not.
func (c *Client) Execute(ctx context.Context, name string, args map[string]any) ToolResult {
	return c.invoker.Execute(ctx, name, args)
}

func (c *Client) Shutdown() {
	c.manager.Shutdown()
}
