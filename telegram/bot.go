package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sova/dialog"
	"sova/model"
	"sova/storage"
)

// Bot is the long-polling Telegram front end. Each chat gets its own worker
// goroutine so turns within a chat are serialized while chats run in
// parallel.
type Bot struct {
	api           *API
	orch          *dialog.Orchestrator
	provider      model.Provider
	conversations *storage.ConversationStorage
	settings      *storage.SettingsStorage
	search        *storage.SearchIndex
	systemPrompt  string
	allowed       map[int64]bool

	mu      sync.Mutex
	workers map[int64]chan string
	wg      sync.WaitGroup
}

// NewBot wires the delivery shell. allowedChatIDs empty means every chat is
// allowed.
func NewBot(api *API, orch *dialog.Orchestrator, provider model.Provider, conversations *storage.ConversationStorage, settings *storage.SettingsStorage, systemPrompt string, allowedChatIDs []int64) *Bot {
	allowed := make(map[int64]bool, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = true
	}
	return &Bot{
		api:           api,
		orch:          orch,
		provider:      provider,
		conversations: conversations,
		settings:      settings,
		search:        storage.NewSearchIndex(conversations),
		systemPrompt:  systemPrompt,
		allowed:       allowed,
		workers:       make(map[int64]chan string),
	}
}

// Run polls for updates until the context is cancelled. Poll errors are
// logged and retried; they never stop the bot.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	slog.Info("telegram bot started", "username", me.Username)

	var offset int64
	for {
		updates, next, err := b.api.GetUpdates(ctx, offset, 30*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				b.shutdown()
				return nil
			}
			slog.Warn("getUpdates failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		offset = next

		for _, u := range updates {
			b.dispatch(ctx, u)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, u Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if len(b.allowed) > 0 && !b.allowed[chatID] {
		slog.Warn("unauthorized chat", "chat_id", chatID)
		return
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, chatID, text)
		return
	}

	select {
	case b.worker(ctx, chatID) <- text:
	default:
		_ = b.api.SendPlain(ctx, chatID, "I'm still working on your previous messages, please wait.")
	}
}

// worker returns the chat's job channel, starting the goroutine on first use.
func (b *Bot) worker(ctx context.Context, chatID int64) chan string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.workers[chatID]; ok {
		return ch
	}

	ch := make(chan string, 16)
	b.workers[chatID] = ch
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for text := range ch {
			b.handleTurn(ctx, chatID, text)
		}
	}()
	return ch
}

func (b *Bot) shutdown() {
	b.mu.Lock()
	for _, ch := range b.workers {
		close(ch)
	}
	b.workers = make(map[int64]chan string)
	b.mu.Unlock()
	b.wg.Wait()
}

// conversationID maps a Telegram chat to its persisted conversation.
func conversationID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

func (b *Bot) handleTurn(ctx context.Context, chatID int64, text string) {
	stopTyping := startTypingTicker(ctx, b.api, chatID)
	defer stopTyping()

	settings, err := b.settings.Load(conversationID(chatID))
	if err != nil {
		slog.Warn("failed to load settings, using defaults", "chat_id", chatID, "error", err)
		settings = storage.DefaultSettings()
	}
	if settings.Model != "" && settings.Model != b.provider.GetModel() {
		b.provider.SetModel(settings.Model)
	}

	result, err := b.orch.ProcessTurn(ctx, dialog.TurnRequest{
		ConversationID:     conversationID(chatID),
		UserText:           text,
		SystemPrompt:       b.systemPrompt,
		Temperature:        settings.Temperature,
		ToolsEnabled:       settings.ToolsEnabled,
		RetrievalEnabled:   settings.RetrievalEnabled,
		TopK:               settings.TopK,
		RelevanceThreshold: settings.RelevanceThreshold,
	})
	if err != nil {
		var completionErr *dialog.CompletionError
		if errors.As(err, &completionErr) {
			slog.Error("completion failed", "chat_id", chatID, "error", err)
			_ = b.api.SendPlain(ctx, chatID, "The model is unavailable right now, please try again later.")
			return
		}
		slog.Error("turn failed", "chat_id", chatID, "error", err)
		_ = b.api.SendPlain(ctx, chatID, "Something went wrong processing your message.")
		return
	}

	if result.SummaryErr != nil {
		slog.Warn("summarization failed", "chat_id", chatID, "error", result.SummaryErr)
	}

	settings.TotalUsage.Add(result.Usage)
	if err := b.settings.Save(conversationID(chatID), settings); err != nil {
		slog.Warn("failed to save settings", "chat_id", chatID, "error", err)
	}

	answer := result.Text
	if answer == "" && result.IterationLimitHit {
		answer = "I ran out of tool-call attempts before reaching an answer. Try rephrasing the question."
	}

	out := RenderHTML(answer)
	if len(result.Sources) > 0 {
		out += "\n\n" + formatSources(result.Sources)
	}

	for _, part := range SplitMessage(out, MessageLimit) {
		if err := b.api.SendMessage(ctx, chatID, part); err != nil {
			slog.Warn("send failed", "chat_id", chatID, "error", err)
			return
		}
	}
}
