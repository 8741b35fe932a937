// Package config loads the bot configuration from TOML with environment
// overrides, and manages credential storage (plaintext or SSH-key
// encrypted).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TelegramConfig configures the Telegram delivery shell.
type TelegramConfig struct {
	Token          string  `toml:"token,omitempty"`
	AllowedChatIDs []int64 `toml:"allowed_chat_ids,omitempty"`
}

// ProviderConfig selects and configures the LLM backend.
type ProviderConfig struct {
	ID             string `toml:"id"`
	BaseURL        string `toml:"base_url,omitempty"`
	Model          string `toml:"model,omitempty"`
	EmbeddingModel string `toml:"embedding_model,omitempty"`

	// Scope is GigaChat's OAuth scope. The auth key itself never lives in
	// the config file; it comes from the credential store or environment.
	Scope string `toml:"scope,omitempty"`
}

// RetrievalConfig configures the RAG pipeline.
type RetrievalConfig struct {
	StoreDir     string `toml:"store_dir,omitempty"`
	DocsDir      string `toml:"docs_dir,omitempty"`
	ChunkSize    int    `toml:"chunk_size,omitempty"`
	ChunkOverlap int    `toml:"chunk_overlap,omitempty"`
}

// MCPServerConfig declares one MCP server to launch at startup.
type MCPServerConfig struct {
	ID      string            `toml:"id"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
}

// SecurityConfig selects the credential storage method.
type SecurityConfig struct {
	Method     string `toml:"method,omitempty"` // "plaintext" or "ssh_key"
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// Config is the full bot configuration.
type Config struct {
	DataDirectory       string            `toml:"data_directory"`
	DefaultSystemPrompt string            `toml:"default_system_prompt,omitempty"`
	HealthAddr          string            `toml:"health_addr,omitempty"`
	Telegram            TelegramConfig    `toml:"telegram"`
	Provider            ProviderConfig    `toml:"provider"`
	Retrieval           RetrievalConfig   `toml:"retrieval"`
	Security            SecurityConfig    `toml:"security"`
	MCPServers          []MCPServerConfig `toml:"mcp_servers"`
}

// Load reads the config file (or starts from defaults when path is empty or
// missing), applies environment overrides, and creates the data directory.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath()
	}
	if FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SOVA_DATA_DIR"); v != "" {
		c.DataDirectory = v
	}
	if v := os.Getenv("SOVA_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("SOVA_PROVIDER"); v != "" {
		c.Provider.ID = v
	}
	if v := os.Getenv("SOVA_PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("SOVA_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("SOVA_GIGACHAT_SCOPE"); v != "" {
		c.Provider.Scope = v
	}
	if v := os.Getenv("SOVA_SYSTEM_PROMPT"); v != "" {
		c.DefaultSystemPrompt = v
	}
}

// fillDefaults backfills fields an explicit config file may have zeroed.
func (c *Config) fillDefaults() {
	if c.DataDirectory == "" {
		c.DataDirectory = defaultDataDirectory
	}
	if c.Provider.ID == "" {
		c.Provider.ID = "gigachat"
	}
	if c.Provider.Scope == "" {
		c.Provider.Scope = "GIGACHAT_API_PERS"
	}
	if c.Retrieval.StoreDir == "" {
		c.Retrieval.StoreDir = "embeddings"
	}
	if c.Security.Method == "" {
		c.Security.Method = string(SecurityPlainText)
	}
}
