// Package model holds sova's provider-agnostic core types.
//
// The Provider interface lives here (not in the provider package) so that
// provider implementations can import model without creating an import
// cycle, and so that the dialog orchestrator can be tested against mocks
// without touching any real SDK.
package model

import (
	"context"
	"errors"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Finish reasons reported by a completion. Every provider maps its native
// finish signal onto one of these two values.
const (
	FinishStop      = "stop"
	FinishToolCalls = "function_call"
)

// ErrEmptyResponse is returned by providers when the completion API answers
// with zero choices. The orchestrator wraps it into a CompletionError.
var ErrEmptyResponse = errors.New("model returned an empty response")

// CompletionRequest is a single non-streaming completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64

	// Tools, when non-empty, is converted to the provider's function schema
	// and sent with ToolChoice (normally "auto").
	Tools      []mcptypes.Tool
	ToolChoice string
}

// Usage counts tokens spent on one or more completion calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another call's usage into u. The orchestrator sums usage
// across every iteration of the tool loop.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is the first choice of a completion response.
type Completion struct {
	Message      Message
	FinishReason string
	Usage        Usage
}

// ModelInfo describes a model available on a provider.
type ModelInfo struct {
	Name         string // display name
	InternalName string // full API name
	Size         int64
	Provider     string // provider id: "gigachat", "ollama", "openai", "anthropic"
}

// Provider abstracts an LLM backend (GigaChat, Ollama, OpenAI-compatible,
// Anthropic). Implementations convert between model types and their wire
// formats; callers never see provider-specific types.
type Provider interface {
	// Complete sends the message history and returns the first choice.
	// Returns ErrEmptyResponse (possibly wrapped) when the API yields no
	// choices.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Embed returns the embedding vector for a single text. Providers
	// without an embedding endpoint return an error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// ListModels returns the models available on this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the active model name used for API calls.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error
}
