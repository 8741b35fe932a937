package mcp

import (
	"fmt"
	"log/slog"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Aggregator presents the tools of every running server as a single flat
// catalog. Tool names are namespaced "serverID.toolName" so the invoker can
// route a call back to the owning server.
type Aggregator struct {
	manager *ProcessManager
}

func NewAggregator(manager *ProcessManager) *Aggregator {
	return &Aggregator{manager: manager}
}

// ListAllTools gathers the namespaced tools of all running servers. A server
// that fails to report is skipped with a warning; an empty catalog is a valid
// result, never an error.
func (a *Aggregator) ListAllTools() []mcptypes.Tool {
	var all []mcptypes.Tool
	for _, id := range a.manager.RunningServers() {
		tools, err := a.manager.GetTools(id)
		if err != nil {
			slog.Warn("skipping unavailable mcp server", "id", id, "error", err)
			continue
		}
		for _, tool := range tools {
			namespaced := tool
			namespaced.Name = id + "." + tool.Name
			all = append(all, namespaced)
		}
	}
	return all
}

// parseToolName splits a namespaced name at the first dot. Tool names may
// themselves contain dots, server ids may not.
func parseToolName(name string) (serverID, toolName string, err error) {
	idx := strings.Index(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", fmt.Errorf("invalid tool name %q, expected serverID.toolName", name)
	}
	return name[:idx], name[idx+1:], nil
}
