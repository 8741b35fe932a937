package provider

import (
	"fmt"

	"sova/model"
)

// NewProvider creates a provider from configuration. It dispatches on
// Config.Type; the constructors validate their own required fields.
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeGigaChat:
		return NewGigaChatProvider(cfg)
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.EmbeddingModel)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a config provider id to the factory
// ProviderType. Unknown ids pass through as-is and the factory rejects them.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "gigachat":
		return ProviderTypeGigaChat
	case "ollama":
		return ProviderTypeOllama
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}
