// Package provider implements model.Provider for each supported LLM backend.
//
// The bot core stays provider-agnostic: all conversions between model types
// and SDK wire types live here. GigaChat is the primary backend, Ollama
// covers local models, and the OpenAI and Anthropic implementations exist
// for OpenAI-compatible gateways and Claude.
package provider

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeGigaChat  ProviderType = "gigachat"
	ProviderTypeOllama    ProviderType = "ollama"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string

	// APIKey authenticates OpenAI and Anthropic requests. Unused for
	// GigaChat and Ollama.
	APIKey string

	// AuthKey and Scope drive GigaChat's OAuth token exchange. AuthKey is
	// the base64 client credentials pair, Scope is the API scope
	// (GIGACHAT_API_PERS for personal accounts).
	AuthKey string
	Scope   string

	// AuthURL overrides the OAuth endpoint, used in tests.
	AuthURL string

	// EmbeddingModel overrides the default embedding model where the
	// provider supports embeddings.
	EmbeddingModel string
}
