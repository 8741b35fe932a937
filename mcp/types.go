package mcp

import (
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ServerConfig describes one MCP server to spawn over stdio.
type ServerConfig struct {
	ID      string
	Command string
	Args    []string
	Env     map[string]string
}

// ServerProcess is a running MCP server with its connected client and the
// tool catalog fetched at startup.
type ServerProcess struct {
	ID      string
	Command string
	Process *exec.Cmd
	Client  *client.Client
	Tools   []mcptypes.Tool
	Running bool
}
