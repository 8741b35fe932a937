package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"sova/gigachat"
	"sova/mcp"
	"sova/model"
)

// GigaChatProvider implements model.Provider on top of the gigachat HTTP
// client. GigaChat speaks the "functions" dialect: tool calls arrive as a
// function_call on the assistant message and results go back as role=function
// messages keyed by function name.
type GigaChatProvider struct {
	client *gigachat.Client
}

// NewGigaChatProvider creates a GigaChat provider. The auth key is required;
// everything else has a sensible default.
func NewGigaChatProvider(cfg Config) (*GigaChatProvider, error) {
	if cfg.AuthKey == "" {
		return nil, fmt.Errorf("GigaChat auth key is required")
	}

	tokens := gigachat.NewTokenProvider(cfg.AuthKey, cfg.Scope, cfg.AuthURL, http.DefaultClient)
	client := gigachat.NewClient(cfg.BaseURL, cfg.Model, tokens)
	client.SetEmbeddingModel(cfg.EmbeddingModel)

	return &GigaChatProvider{client: client}, nil
}

func (p *GigaChatProvider) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	chatReq := gigachat.ChatRequest{
		Messages:    ConvertToGigaChatMessages(req.Messages),
		Temperature: &req.Temperature,
	}
	if len(req.Tools) > 0 {
		chatReq.Functions = mcp.ConvertToolsToGigaChat(req.Tools)
		chatReq.FunctionCall = req.ToolChoice
		if chatReq.FunctionCall == "" {
			chatReq.FunctionCall = "auto"
		}
	}

	resp, err := p.client.Chat(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, model.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	msg := model.Message{
		Role:    model.RoleAssistant,
		Content: choice.Message.Content,
	}

	finish := model.FinishStop
	if fc := choice.Message.FunctionCall; fc != nil {
		// GigaChat does not assign call ids, so we mint one to keep the
		// conversation record uniform across providers.
		msg.ToolCalls = []model.ToolCall{{
			ID:        uuid.NewString(),
			Name:      fc.Name,
			Arguments: fc.Arguments,
		}}
		finish = model.FinishToolCalls
	}

	return &model.Completion{
		Message:      msg,
		FinishReason: finish,
		Usage: model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *GigaChatProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return p.client.Embeddings(ctx, text)
}

func (p *GigaChatProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	ids, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]model.ModelInfo, 0, len(ids))
	for _, id := range ids {
		models = append(models, model.ModelInfo{
			Name:         id,
			InternalName: id,
			Provider:     "gigachat",
		})
	}
	return models, nil
}

func (p *GigaChatProvider) GetModel() string      { return p.client.GetModel() }
func (p *GigaChatProvider) SetModel(model string) { p.client.SetModel(model) }

func (p *GigaChatProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
