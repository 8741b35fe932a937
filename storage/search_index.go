package storage

import (
	"strings"
	"time"

	"sova/model"
)

// MessageMatch is one search hit inside a conversation.
type MessageMatch struct {
	ConversationID string
	MessageIndex   int
	Role           string
	Content        string
	Preview        string
	Timestamp      time.Time
}

// SearchMessages scans one conversation's messages for a case-insensitive
// substring match. System messages are skipped.
func SearchMessages(conversationID string, messages []model.Message, query string) []MessageMatch {
	if query == "" {
		return nil
	}

	queryLower := strings.ToLower(query)
	var matches []MessageMatch

	for i, msg := range messages {
		if msg.Role == model.RoleSystem {
			continue
		}
		if !strings.Contains(strings.ToLower(msg.Content), queryLower) {
			continue
		}

		preview := msg.Content
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		matches = append(matches, MessageMatch{
			ConversationID: conversationID,
			MessageIndex:   i,
			Role:           msg.Role,
			Content:        msg.Content,
			Preview:        preview,
			Timestamp:      msg.Timestamp,
		})
	}
	return matches
}

// SearchIndex searches across every persisted conversation.
type SearchIndex struct {
	storage *ConversationStorage
}

func NewSearchIndex(storage *ConversationStorage) *SearchIndex {
	return &SearchIndex{storage: storage}
}

// SearchAll scans all conversations. Unreadable conversations are skipped.
func (si *SearchIndex) SearchAll(query string) ([]MessageMatch, error) {
	if query == "" {
		return nil, nil
	}

	list, err := si.storage.List()
	if err != nil {
		return nil, err
	}

	var matches []MessageMatch
	for _, meta := range list {
		conv, err := si.storage.Load(meta.ID)
		if err != nil || conv == nil {
			continue
		}
		matches = append(matches, SearchMessages(conv.ID, conv.Messages, query)...)
	}
	return matches, nil
}
