// Package testutil provides a scriptable mock provider for testing the
// dialog orchestrator and delivery shells without real SDK calls.
package testutil

import (
	"context"
	"sync"

	"sova/model"
)

// MockProvider implements model.Provider. Completions are served from a
// queue: each Complete call pops the next scripted response. When the queue
// runs dry the last response repeats, so a single scripted answer also works
// for loops.
type MockProvider struct {
	mu           sync.Mutex
	queue        []*model.Completion
	served       int
	currentModel string

	// Requests records every CompletionRequest received, in order.
	Requests []model.CompletionRequest

	// Overridable hooks.
	CompleteFunc   func(ctx context.Context, req model.CompletionRequest) (*model.Completion, error)
	EmbedFunc      func(ctx context.Context, text string) ([]float64, error)
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	// Err, when set, is returned by Complete instead of a queued response.
	Err error
}

// NewMockProvider creates a mock with the given model name and no scripted
// responses.
func NewMockProvider(modelName string) *MockProvider {
	return &MockProvider{currentModel: modelName}
}

// Enqueue appends a scripted completion to the response queue.
func (m *MockProvider) Enqueue(c *model.Completion) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, c)
	return m
}

// EnqueueText is a shorthand for scripting a plain assistant reply.
func (m *MockProvider) EnqueueText(text string) *MockProvider {
	return m.Enqueue(&model.Completion{
		Message:      model.Message{Role: model.RoleAssistant, Content: text},
		FinishReason: model.FinishStop,
		Usage:        model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

// EnqueueToolCall scripts an assistant turn that requests a tool.
func (m *MockProvider) EnqueueToolCall(id, name string, args map[string]any) *MockProvider {
	return m.Enqueue(&model.Completion{
		Message: model.Message{
			Role:      model.RoleAssistant,
			ToolCalls: []model.ToolCall{{ID: id, Name: name, Arguments: args}},
		},
		FinishReason: model.FinishToolCalls,
		Usage:        model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

// Calls reports how many Complete calls were served.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.served
}

func (m *MockProvider) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	m.served++

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.queue) == 0 {
		return nil, model.ErrEmptyResponse
	}

	idx := m.served - 1
	if idx >= len(m.queue) {
		idx = len(m.queue) - 1
	}
	return m.queue[idx], nil
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float64{1, 0, 0}, nil
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []model.ModelInfo{
		{Name: "mock-model-1", InternalName: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", InternalName: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(modelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = modelName
}

func (m *MockProvider) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
