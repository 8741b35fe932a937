package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sova/model"
)

// Default generation and retrieval parameters applied to new chats.
const (
	DefaultTemperature        = 0.7
	DefaultRelevanceThreshold = 0.5
	DefaultTopK               = 3
)

// Settings holds the per-chat knobs adjustable at runtime plus accumulated
// token usage.
type Settings struct {
	Temperature        float64 `json:"temperature"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
	TopK               int     `json:"top_k"`
	Model              string  `json:"model,omitempty"`
	ToolsEnabled       bool    `json:"tools_enabled"`
	RetrievalEnabled   bool    `json:"retrieval_enabled"`

	// TotalUsage accumulates tokens across every turn of the chat,
	// including tool loop iterations and summarization calls.
	TotalUsage model.Usage `json:"total_usage"`
}

// DefaultSettings returns the settings applied to a chat that has never
// changed anything.
func DefaultSettings() *Settings {
	return &Settings{
		Temperature:        DefaultTemperature,
		RelevanceThreshold: DefaultRelevanceThreshold,
		TopK:               DefaultTopK,
		ToolsEnabled:       true,
		RetrievalEnabled:   true,
	}
}

// SettingsStorage persists per-chat settings as one JSON file per chat id.
type SettingsStorage struct {
	dir string
}

func NewSettingsStorage(dataDir string) (*SettingsStorage, error) {
	dir := filepath.Join(dataDir, "settings")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	return &SettingsStorage{dir: dir}, nil
}

// Load returns the chat's settings, or defaults when none were saved yet.
func (s *SettingsStorage) Load(id string) (*Settings, error) {
	path := filepath.Join(s.dir, sanitizeID(id)+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Save writes the chat's settings.
func (s *SettingsStorage) Save(id string, settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	path := filepath.Join(s.dir, sanitizeID(id)+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
