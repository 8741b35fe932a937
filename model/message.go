package model

import "time"

// Message roles. The first message of a persisted conversation, when
// present, always has RoleSystem.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in a conversation. Messages are immutable once
// appended, except the leading system message which is rewritten when the
// persona changes.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// ToolCalls is set on assistant messages that request tool invocation.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName are set on RoleTool messages and identify the
	// call the result belongs to. Providers that key results by id use
	// ToolCallID; GigaChat keys them by function name.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// ToolCall is a provider-agnostic tool invocation request emitted by a model.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
