package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolResult is what the model sees after a tool call. Output is always a
// JSON object, either {"result": ...} or {"error": "..."}, so arbitrary tool
// text can never break the conversation payload.
type ToolResult struct {
	Success bool
	Output  string
	Err     string
}

// Invoker executes namespaced tool calls against the owning server. Execute
// never returns a Go error; every failure is folded into the result envelope
// so the tool loop keeps running and the model can react to the failure.
type Invoker struct {
	manager *ProcessManager
}

func NewInvoker(manager *ProcessManager) *Invoker {
	return &Invoker{manager: manager}
}

func (inv *Invoker) Execute(ctx context.Context, name string, args map[string]any) ToolResult {
	serverID, toolName, err := parseToolName(name)
	if err != nil {
		return errorResult(err.Error())
	}

	mcpClient, err := inv.manager.GetClient(serverID)
	if err != nil {
		return errorResult(fmt.Sprintf("server %s unavailable: %v", serverID, err))
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := mcpClient.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	})
	if err != nil {
		slog.Warn("tool call failed", "tool", name, "error", err)
		return errorResult(fmt.Sprintf("tool %s failed: %v", name, err))
	}

	text := extractText(result)
	if result.IsError {
		return errorResult(text)
	}
	return successResult(text)
}

// successResult wraps tool output in the {"result": ...} envelope. Going
// through json.Marshal guarantees quotes, backslashes and newlines in the
// tool output are escaped.
func successResult(text string) ToolResult {
	envelope, err := json.Marshal(map[string]any{"result": text})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode tool output: %v", err))
	}
	return ToolResult{Success: true, Output: string(envelope)}
}

// errorResult wraps a failure message in the {"error": ...} envelope.
// json.Marshal cannot fail for a map of strings.
func errorResult(msg string) ToolResult {
	envelope, _ := json.Marshal(map[string]any{"error": msg})
	return ToolResult{Success: false, Output: string(envelope), Err: msg}
}

// extractText flattens the content blocks of a tool result into plain text.
// Non-text blocks are rendered as their JSON form.
func extractText(result *mcptypes.CallToolResult) string {
	var out string
	for _, content := range result.Content {
		if tc, ok := mcptypes.AsTextContent(content); ok {
			out += tc.Text
			continue
		}
		raw, err := json.Marshal(content)
		if err != nil {
			continue
		}
		out += string(raw)
	}
	return out
}
