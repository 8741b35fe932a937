// Package storage persists conversations, per-chat settings, and the MCP
// server registry under the bot's data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sova/model"
)

// Conversation is the full message history of one chat. The first message,
// when present, is the system prompt (persona, optionally followed by a
// summary of earlier history).
type Conversation struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// NewConversation creates a conversation seeded with a system prompt. An
// empty prompt starts the history without a system message.
func NewConversation(id, systemPrompt string) *Conversation {
	now := time.Now()
	conv := &Conversation{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if systemPrompt != "" {
		conv.Messages = append(conv.Messages, model.Message{
			Role:      model.RoleSystem,
			Content:   systemPrompt,
			Timestamp: now,
		})
	}
	return conv
}

// Append adds messages to the history.
func (c *Conversation) Append(msgs ...model.Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now()
}

// Len returns the number of messages including the system message.
func (c *Conversation) Len() int { return len(c.Messages) }

// MessagesCopy returns a copy of the history safe to mutate (retrieval
// context is injected into a copy, never into the stored messages).
func (c *Conversation) MessagesCopy() []model.Message {
	out := make([]model.Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// SetSystemPrompt rewrites the leading system message, inserting one if the
// history has none.
func (c *Conversation) SetSystemPrompt(prompt string) {
	msg := model.Message{
		Role:      model.RoleSystem,
		Content:   prompt,
		Timestamp: time.Now(),
	}
	if len(c.Messages) > 0 && c.Messages[0].Role == model.RoleSystem {
		c.Messages[0] = msg
		return
	}
	c.Messages = append([]model.Message{msg}, c.Messages...)
}

// Summarized replaces the entire history with a single system message. Used
// by the summarization pass after long conversations.
func (c *Conversation) Summarized(systemPrompt string) {
	c.Messages = []model.Message{{
		Role:      model.RoleSystem,
		Content:   systemPrompt,
		Timestamp: time.Now(),
	}}
	c.UpdatedAt = time.Now()
}

// ConversationMetadata is a lightweight view for listing.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ConversationStorage persists conversations as one JSON file per chat id.
type ConversationStorage struct {
	dir string
}

// NewConversationStorage creates the conversations directory if needed
// (0700, histories are private).
func NewConversationStorage(dataDir string) (*ConversationStorage, error) {
	dir := filepath.Join(dataDir, "conversations")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}
	return &ConversationStorage{dir: dir}, nil
}

// Save writes the conversation to disk.
func (s *ConversationStorage) Save(conv *Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation has no id")
	}
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	path := filepath.Join(s.dir, sanitizeID(conv.ID)+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}

// Load reads a conversation. A missing file is not an error: the caller gets
// (nil, nil) and starts a fresh conversation.
func (s *ConversationStorage) Load(id string) (*Conversation, error) {
	path := filepath.Join(s.dir, sanitizeID(id)+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// Clear deletes a conversation. Clearing a conversation that does not exist
// is a no-op.
func (s *ConversationStorage) Clear(id string) error {
	path := filepath.Join(s.dir, sanitizeID(id)+".json")
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns metadata for all conversations, newest first. Corrupt files
// are skipped.
func (s *ConversationStorage) List() ([]ConversationMetadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	var out []ConversationMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}

		out = append(out, ConversationMetadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// sanitizeID makes a chat id safe to use as a filename.
func sanitizeID(id string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
		"\"", "-", "<", "-", ">", "-", "|", "-", " ", "-",
	)
	id = replacer.Replace(id)
	id = strings.Trim(id, "-.")
	if id == "" {
		id = "conversation"
	}
	return id
}
