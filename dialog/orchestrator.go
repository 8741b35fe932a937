// Package dialog contains the turn-processing core: the bounded tool-calling
// loop, retrieval context injection, and history summarization.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"sova/mcp"
	"sova/model"
	"sova/rag"
	"sova/storage"
)

const (
	// maxToolIterations bounds the tool-calling loop. Reaching the bound is
	// fail-open: the last produced text is treated as the final answer.
	maxToolIterations = 5

	// summarizeAfter is the message count past which the history is
	// replaced by a summary.
	summarizeAfter = 20
)

// ToolRunner is the orchestrator's view of the MCP layer.
type ToolRunner interface {
	ListTools() []mcptypes.Tool
	Execute(ctx context.Context, name string, args map[string]any) mcp.ToolResult
}

// Retriever is the orchestrator's view of the RAG engine.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]rag.Chunk, error)
}

// TurnRequest carries one user turn into the orchestrator.
type TurnRequest struct {
	ConversationID string
	UserText       string
	SystemPrompt   string
	Temperature    float64
	ToolsEnabled   bool

	// Retrieval settings. RetrievalEnabled has no effect when the
	// orchestrator was built without a retriever.
	RetrievalEnabled   bool
	TopK               int
	RelevanceThreshold float64
}

// TurnResult is the outcome of a processed turn.
type TurnResult struct {
	// Text is the final answer. When the iteration bound was hit it carries
	// the last text produced alongside a tool call and may be empty.
	Text  string
	Usage model.Usage

	// Sources lists the retrieval chunks injected into the prompt.
	Sources []rag.Chunk

	// ToolCalls lists the tools executed during the loop, in order.
	ToolCalls []string

	// IterationLimitHit is set when the loop stopped at the bound rather
	// than on a textual answer.
	IterationLimitHit bool

	// Summary is set when this turn triggered history summarization.
	// SummaryErr is set instead when summarization was triggered but
	// failed; the main answer is still valid in that case.
	Summary    string
	SummaryErr error
}

// Orchestrator coordinates one turn: retrieval, the bounded tool loop,
// persistence, and summarization. Turns for the same conversation id are
// serialized with a per-id lock; different ids proceed independently.
type Orchestrator struct {
	provider      model.Provider
	tools         ToolRunner
	retriever     Retriever
	conversations *storage.ConversationStorage

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator creates an orchestrator. tools and retriever may be nil;
// the corresponding features are then skipped.
func NewOrchestrator(provider model.Provider, tools ToolRunner, retriever Retriever, conversations *storage.ConversationStorage) *Orchestrator {
	return &Orchestrator{
		provider:      provider,
		tools:         tools,
		retriever:     retriever,
		conversations: conversations,
		locks:         make(map[string]*sync.Mutex),
	}
}

// ProcessTurn runs one full user turn. A completion failure abandons the
// turn without persisting anything; tool and retrieval failures are folded
// into the turn as data.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.UserText == "" {
		return nil, fmt.Errorf("empty user text")
	}

	lock := o.conversationLock(req.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := o.conversations.Load(req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		conv = storage.NewConversation(req.ConversationID, req.SystemPrompt)
	}

	result := &TurnResult{}

	// Retrieval context goes into the wire copy of the user message only;
	// the persisted history keeps the user's original text.
	contextBlock := o.retrieve(ctx, req, result)

	conv.Append(model.Message{
		Role:      model.RoleUser,
		Content:   req.UserText,
		Timestamp: time.Now(),
	})

	wire := conv.MessagesCopy()
	if contextBlock != "" {
		last := &wire[len(wire)-1]
		last.Content = contextBlock + "\n\n" + last.Content
	}

	var tools []mcptypes.Tool
	if req.ToolsEnabled && o.tools != nil {
		tools = o.tools.ListTools()
	}

	if err := o.runToolLoop(ctx, req, conv, wire, tools, result); err != nil {
		return nil, err
	}

	if err := o.conversations.Save(conv); err != nil {
		return nil, fmt.Errorf("failed to persist conversation: %w", err)
	}

	// Summarization is measured after this turn's messages are appended.
	if conv.Len() > summarizeAfter {
		summary, usage, err := o.summarize(ctx, conv)
		if err != nil {
			result.SummaryErr = &SummarizationError{Cause: err}
		} else {
			result.Usage.Add(usage)
			conv.Summarized(summarizedSystemPrompt(req.SystemPrompt, summary))
			if err := o.conversations.Save(conv); err != nil {
				result.SummaryErr = &SummarizationError{Cause: err}
			} else {
				result.Summary = summary
			}
		}
	}

	return result, nil
}

// runToolLoop drives the completion/tool cycle. Both conv and wire receive
// every appended message; wire additionally carries the retrieval context.
func (o *Orchestrator) runToolLoop(ctx context.Context, req TurnRequest, conv *storage.Conversation, wire []model.Message, tools []mcptypes.Tool, result *TurnResult) error {
	var lastText string
	for iteration := 0; iteration < maxToolIterations; iteration++ {
		completion, err := o.provider.Complete(ctx, model.CompletionRequest{
			Messages:    wire,
			Temperature: req.Temperature,
			Tools:       tools,
			ToolChoice:  "auto",
		})
		if err != nil {
			return &CompletionError{Cause: err}
		}

		result.Usage.Add(completion.Usage)

		msg := completion.Message
		msg.Timestamp = time.Now()

		if completion.FinishReason == model.FinishToolCalls && len(msg.ToolCalls) > 0 && o.tools != nil {
			conv.Append(msg)
			wire = append(wire, msg)
			if msg.Content != "" {
				lastText = msg.Content
			}

			// One tool call per iteration, matching the sequential loop.
			call := msg.ToolCalls[0]
			result.ToolCalls = append(result.ToolCalls, call.Name)

			toolResult := o.tools.Execute(ctx, call.Name, call.Arguments)
			toolMsg := model.Message{
				Role:       model.RoleTool,
				Content:    toolResult.Output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Timestamp:  time.Now(),
			}
			conv.Append(toolMsg)
			wire = append(wire, toolMsg)
			continue
		}

		conv.Append(msg)
		result.Text = msg.Content
		return nil
	}

	slog.Warn("tool loop hit iteration limit",
		"conversation", req.ConversationID,
		"iterations", maxToolIterations)
	// Fail open: text produced alongside the tool calls stands as the answer.
	result.Text = lastText
	result.IterationLimitHit = true
	return nil
}

// retrieve runs the RAG search and formats the context block. Failures are
// logged and the turn proceeds without context.
func (o *Orchestrator) retrieve(ctx context.Context, req TurnRequest, result *TurnResult) string {
	if !req.RetrievalEnabled || o.retriever == nil {
		return ""
	}

	chunks, err := o.retriever.Search(ctx, req.UserText, req.TopK, req.RelevanceThreshold)
	if err != nil {
		slog.Warn("retrieval failed, continuing without context",
			"conversation", req.ConversationID, "error", err)
		return ""
	}
	if len(chunks) == 0 {
		return ""
	}

	result.Sources = chunks
	return rag.FormatContext(chunks)
}

func (o *Orchestrator) conversationLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id] = lock
	}
	return lock
}
