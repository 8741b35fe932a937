package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"sova/mcp"
	"sova/model"
)

// AnthropicProvider implements model.Provider using the official Anthropic
// SDK. Anthropic has no embedding endpoint, so Embed always errors and the
// retrieval layer must use another provider.
type AnthropicProvider struct {
	client *anthropic.Client

	// mu guards model: SetModel races with in-flight completions otherwise.
	mu    sync.RWMutex
	model anthropic.Model
}

// NewAnthropicProvider creates an Anthropic provider. The API key is
// required.
func NewAnthropicProvider(baseURL, apiKey, modelName string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if modelName != "" {
		anthropicModel = anthropic.Model(modelName)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client: &client,
		model:  anthropicModel,
	}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	anthropicMessages, systemBlocks := ConvertToAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:       p.currentModel(),
		Messages:    anthropicMessages,
		MaxTokens:   4096,
		Temperature: anthropic.Float(req.Temperature),
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(req.Tools) > 0 {
		params.Tools = mcp.ConvertToolsToAnthropic(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Anthropic completion failed: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, model.ErrEmptyResponse
	}

	msg := model.Message{Role: model.RoleAssistant}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			msg.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(variant.Input, &args); err != nil {
				args = map[string]any{}
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}

	finish := model.FinishStop
	if len(msg.ToolCalls) > 0 {
		finish = model.FinishToolCalls
	}

	return &model.Completion{
		Message:      msg,
		FinishReason: finish,
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("Anthropic does not provide an embeddings API")
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	// No models list API; return the curated set the SDK knows about.
	known := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	models := make([]model.ModelInfo, 0, len(known))
	for _, m := range known {
		models = append(models, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     "anthropic",
		})
	}
	return models, nil
}

func (p *AnthropicProvider) currentModel() anthropic.Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *AnthropicProvider) GetModel() string { return string(p.currentModel()) }

func (p *AnthropicProvider) SetModel(m string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = anthropic.Model(m)
}

func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.currentModel(),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
