package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"sova/mcp"
	"sova/model"
)

// OllamaProvider implements model.Provider against a local or remote Ollama
// server using the official API client.
type OllamaProvider struct {
	client         *api.Client
	embeddingModel string

	// mu guards model: SetModel races with in-flight completions otherwise.
	mu    sync.RWMutex
	model string
}

// NewOllamaProvider creates an Ollama provider. Empty arguments select the
// usual local defaults.
func NewOllamaProvider(baseURL, modelName, embeddingModel string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3.1:latest"
	}
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client:         api.NewClient(parsedURL, http.DefaultClient),
		model:          modelName,
		embeddingModel: embeddingModel,
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	chatReq := &api.ChatRequest{
		Model:    p.GetModel(),
		Messages: ConvertToOllamaMessages(req.Messages),
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = mcp.ConvertToolsToOllama(req.Tools)
	}

	var last *api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		last = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama chat failed: %w", err)
	}
	if last == nil {
		return nil, model.ErrEmptyResponse
	}

	msg := model.Message{
		Role:      model.RoleAssistant,
		Content:   last.Message.Content,
		ToolCalls: ConvertFromOllamaToolCalls(last.Message.ToolCalls),
	}

	finish := model.FinishStop
	if len(msg.ToolCalls) > 0 {
		finish = model.FinishToolCalls
	}

	return &model.Completion{
		Message:      msg,
		FinishReason: finish,
		Usage: model.Usage{
			PromptTokens:     last.Metrics.PromptEvalCount,
			CompletionTokens: last.Metrics.EvalCount,
			TotalTokens:      last.Metrics.PromptEvalCount + last.Metrics.EvalCount,
		},
	}, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  p.embeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama embeddings failed: %w", err)
	}
	return resp.Embedding, nil
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:         m.Name,
			InternalName: m.Name,
			Size:         m.Size,
			Provider:     "ollama",
		}
	}
	return models, nil
}

func (p *OllamaProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *OllamaProvider) SetModel(m string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = m
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.List(ctx)
	return err
}

// Tool support varies by model family in Ollama. The table is curated from
// the Ollama docs and community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false,
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// Most specific prefixes first so llama3.2 does not match the generic llama3
// entry.
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether an Ollama model family is known
// to handle the tool calling API. Unknown families default to false.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}
	return false
}
