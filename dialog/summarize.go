package dialog

import (
	"context"
	"time"

	"sova/model"
	"sova/storage"
)

// summaryInstruction asks for a factual compaction. Code is forbidden so the
// summary stays within the character bound even for programming chats.
const summaryInstruction = "Summarize the conversation below factually and concisely. " +
	"Keep every decision, fact, and open question that later turns may depend on. " +
	"Do not include code examples. The summary must not exceed 3000 characters."

// summarize sends the whole history to the model with the summary
// instruction at temperature 0.0 for reproducible output. The returned usage
// counts toward the triggering turn.
func (o *Orchestrator) summarize(ctx context.Context, conv *storage.Conversation) (string, model.Usage, error) {
	messages := append(conv.MessagesCopy(), model.Message{
		Role:      model.RoleUser,
		Content:   summaryInstruction,
		Timestamp: time.Now(),
	})

	completion, err := o.provider.Complete(ctx, model.CompletionRequest{
		Messages:    messages,
		Temperature: 0.0,
	})
	if err != nil {
		return "", model.Usage{}, err
	}
	return completion.Message.Content, completion.Usage, nil
}

// summarizedSystemPrompt builds the single system message that replaces the
// history: the original persona followed by the summary.
func summarizedSystemPrompt(systemPrompt, summary string) string {
	if systemPrompt == "" {
		return "Summary of the earlier conversation:\n" + summary
	}
	return systemPrompt + "\n\nSummary of the earlier conversation:\n" + summary
}
