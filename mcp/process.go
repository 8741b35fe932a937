package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const protocolVersion = "2025-06-18"

// ProcessManager spawns MCP servers as child processes (Node or Python
// entrypoints, typically) and speaks the protocol over stdio.
type ProcessManager struct {
	mu        sync.RWMutex
	processes map[string]*ServerProcess
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[string]*ServerProcess),
	}
}

// StartServer launches the server, runs the MCP initialize handshake, and
// caches its tool catalog.
func (pm *ProcessManager) StartServer(ctx context.Context, cfg ServerConfig) error {
	pm.mu.Lock()
	if _, exists := pm.processes[cfg.ID]; exists {
		pm.mu.Unlock()
		return fmt.Errorf("server %s already running", cfg.ID)
	}
	pm.mu.Unlock()

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		mergeEnv(cfg.Env),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return fmt.Errorf("failed to start server %s: %w", cfg.ID, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "sova",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize server %s: %w", cfg.ID, err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}

	pm.mu.Lock()
	pm.processes[cfg.ID] = &ServerProcess{
		ID:      cfg.ID,
		Command: cfg.Command,
		Process: capturedCmd,
		Client:  mcpClient,
		Tools:   toolsResult.Tools,
		Running: true,
	}
	pm.mu.Unlock()

	slog.Info("mcp server started", "id", cfg.ID, "tools", len(toolsResult.Tools))
	return nil
}

// StopServer closes the client connection; the child process exits with its
// stdio pipes.
func (pm *ProcessManager) StopServer(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	proc, exists := pm.processes[id]
	if !exists {
		return fmt.Errorf("server %s not running", id)
	}
	delete(pm.processes, id)

	if proc.Client != nil {
		if err := proc.Client.Close(); err != nil {
			return fmt.Errorf("failed to stop server %s: %w", id, err)
		}
	}
	return nil
}

// GetClient returns the connected client for a server id.
func (pm *ProcessManager) GetClient(id string) (*client.Client, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[id]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("server %s not running", id)
	}
	return proc.Client, nil
}

// GetTools returns the cached tool catalog for a server id.
func (pm *ProcessManager) GetTools(id string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[id]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("server %s not running", id)
	}
	return proc.Tools, nil
}

// RunningServers returns the ids of all running servers.
func (pm *ProcessManager) RunningServers() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ids := make([]string, 0, len(pm.processes))
	for id := range pm.processes {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops every running server.
func (pm *ProcessManager) Shutdown() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for id, proc := range pm.processes {
		if proc.Client != nil {
			if err := proc.Client.Close(); err != nil {
				slog.Warn("failed to stop mcp server", "id", id, "error", err)
			}
		}
		delete(pm.processes, id)
	}
}

// mergeEnv overlays the server-specific variables on the process
// environment so PATH and friends survive.
func mergeEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
