package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"sova/rag"
	"sova/storage"
)

const helpText = `Send me a message and I'll answer. Commands:

/clear - forget the conversation
/stats - usage and current settings
/temp <0..2> - set generation temperature
/threshold <0..1> - set retrieval relevance threshold
/topk <n> - set number of retrieved chunks
/tools [on|off] - toggle tool calling
/rag [on|off] - toggle document retrieval
/search <query> - search past conversations
/model [name] - show or switch the model`

// handleCommand dispatches one slash command. Commands run inline on the
// poll loop; they are all fast local operations plus at most one API call.
func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	cmd, args := splitCommand(text)

	switch cmd {
	case "/start", "/help":
		_ = b.api.SendPlain(ctx, chatID, helpText)

	case "/clear":
		if err := b.conversations.Clear(conversationID(chatID)); err != nil {
			slogErrorReply(ctx, b, chatID, "failed to clear conversation", err)
			return
		}
		_ = b.api.SendPlain(ctx, chatID, "Conversation cleared.")

	case "/stats":
		b.handleStats(ctx, chatID)

	case "/temp":
		b.handleFloatSetting(ctx, chatID, args, 0, 2, "temperature", func(s *storage.Settings, v float64) {
			s.Temperature = v
		})

	case "/threshold":
		b.handleFloatSetting(ctx, chatID, args, 0, 1, "relevance threshold", func(s *storage.Settings, v float64) {
			s.RelevanceThreshold = v
		})

	case "/topk":
		b.handleTopK(ctx, chatID, args)

	case "/tools":
		b.handleToggle(ctx, chatID, args, "Tool calling", func(s *storage.Settings) *bool {
			return &s.ToolsEnabled
		})

	case "/rag":
		b.handleToggle(ctx, chatID, args, "Document retrieval", func(s *storage.Settings) *bool {
			return &s.RetrievalEnabled
		})

	case "/search":
		b.handleSearch(ctx, chatID, args)

	case "/model":
		b.handleModel(ctx, chatID, args)

	default:
		_ = b.api.SendPlain(ctx, chatID, "Unknown command. Send /help for the list.")
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	settings, err := b.settings.Load(conversationID(chatID))
	if err != nil {
		slogErrorReply(ctx, b, chatID, "failed to load settings", err)
		return
	}

	messageCount := 0
	if conv, err := b.conversations.Load(conversationID(chatID)); err == nil && conv != nil {
		messageCount = conv.Len()
	}

	modelName := settings.Model
	if modelName == "" {
		modelName = b.provider.GetModel()
	}

	reply := fmt.Sprintf(
		"Model: %s\nTemperature: %.2f\nRelevance threshold: %.2f\nTop-K: %d\nTools: %s\nRetrieval: %s\nMessages in history: %d\nTotal tokens: %d (prompt %d, completion %d)",
		modelName,
		settings.Temperature,
		settings.RelevanceThreshold,
		settings.TopK,
		onOff(settings.ToolsEnabled),
		onOff(settings.RetrievalEnabled),
		messageCount,
		settings.TotalUsage.TotalTokens,
		settings.TotalUsage.PromptTokens,
		settings.TotalUsage.CompletionTokens,
	)
	_ = b.api.SendPlain(ctx, chatID, reply)
}

func (b *Bot) handleFloatSetting(ctx context.Context, chatID int64, args string, min, max float64, name string, set func(*storage.Settings, float64)) {
	value, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil || value < min || value > max {
		_ = b.api.SendPlain(ctx, chatID, fmt.Sprintf("Usage: send a number between %g and %g.", min, max))
		return
	}

	if err := b.updateSettings(chatID, func(s *storage.Settings) { set(s, value) }); err != nil {
		slogErrorReply(ctx, b, chatID, "failed to save settings", err)
		return
	}
	_ = b.api.SendPlain(ctx, chatID, fmt.Sprintf("Set %s to %g.", name, value))
}

func (b *Bot) handleTopK(ctx context.Context, chatID int64, args string) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n < 1 {
		_ = b.api.SendPlain(ctx, chatID, "Usage: /topk <positive integer>")
		return
	}

	if err := b.updateSettings(chatID, func(s *storage.Settings) { s.TopK = n }); err != nil {
		slogErrorReply(ctx, b, chatID, "failed to save settings", err)
		return
	}
	_ = b.api.SendPlain(ctx, chatID, fmt.Sprintf("Set top-K to %d.", n))
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, args, name string, field func(*storage.Settings) *bool) {
	var enabled bool
	err := b.updateSettings(chatID, func(s *storage.Settings) {
		target := field(s)
		switch strings.ToLower(strings.TrimSpace(args)) {
		case "on":
			*target = true
		case "off":
			*target = false
		default:
			*target = !*target
		}
		enabled = *target
	})
	if err != nil {
		slogErrorReply(ctx, b, chatID, "failed to save settings", err)
		return
	}
	_ = b.api.SendPlain(ctx, chatID, fmt.Sprintf("%s is now %s.", name, onOff(enabled)))
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		_ = b.api.SendPlain(ctx, chatID, "Usage: /search <query>")
		return
	}

	matches, err := b.search.SearchAll(query)
	if err != nil {
		slogErrorReply(ctx, b, chatID, "search failed", err)
		return
	}
	if len(matches) == 0 {
		_ = b.api.SendPlain(ctx, chatID, "No matches found.")
		return
	}
	if len(matches) > 10 {
		matches = matches[:10]
	}

	var reply strings.Builder
	fmt.Fprintf(&reply, "Found %d match(es):", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&reply, "\n• [%s] %s: %s", m.ConversationID, m.Role, m.Preview)
	}
	_ = b.api.SendPlain(ctx, chatID, reply.String())
}

func (b *Bot) handleModel(ctx context.Context, chatID int64, args string) {
	models, err := b.provider.ListModels(ctx)
	if err != nil {
		slogErrorReply(ctx, b, chatID, "failed to list models", err)
		return
	}

	args = strings.TrimSpace(args)
	if args == "" {
		var reply strings.Builder
		fmt.Fprintf(&reply, "Current model: %s\nAvailable:", b.provider.GetModel())
		for _, m := range models {
			fmt.Fprintf(&reply, "\n• %s", m.Name)
		}
		_ = b.api.SendPlain(ctx, chatID, reply.String())
		return
	}

	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	results := fuzzy.Find(args, names)
	if len(results) == 0 {
		_ = b.api.SendPlain(ctx, chatID, fmt.Sprintf("No model matches %q.", args))
		return
	}

	chosen := models[results[0].Index].InternalName
	if chosen == "" {
		chosen = models[results[0].Index].Name
	}
	b.provider.SetModel(chosen)
	if err := b.updateSettings(chatID, func(s *storage.Settings) { s.Model = chosen }); err != nil {
		slogErrorReply(ctx, b, chatID, "failed to save settings", err)
		return
	}
	_ = b.api.SendPlain(ctx, chatID, fmt.Sprintf("Switched to %s.", chosen))
}

// updateSettings loads, mutates, and saves the chat's settings.
func (b *Bot) updateSettings(chatID int64, mutate func(*storage.Settings)) error {
	id := conversationID(chatID)
	settings, err := b.settings.Load(id)
	if err != nil {
		return err
	}
	mutate(settings)
	return b.settings.Save(id, settings)
}

// splitCommand separates "/cmd@bot args" into the normalized command and the
// argument remainder.
func splitCommand(text string) (string, string) {
	cmd := text
	args := ""
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		cmd, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), args
}

func formatSources(chunks []rag.Chunk) string {
	var b strings.Builder
	b.WriteString("<b>Sources:</b>")
	for _, c := range chunks {
		fmt.Fprintf(&b, "\n• %s (lines %d-%d, %.0f%%)",
			html.EscapeString(c.SourceFile), c.StartLine, c.EndLine, c.Score*100)
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func slogErrorReply(ctx context.Context, b *Bot, chatID int64, msg string, err error) {
	slog.Error(msg, "chat_id", chatID, "error", err)
	_ = b.api.SendPlain(ctx, chatID, "Something went wrong, please try again.")
}
