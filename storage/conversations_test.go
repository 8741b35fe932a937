package storage

import (
	"testing"

	"sova/model"
)

func TestConversationRoundTrip(t *testing.T) {
	store, err := NewConversationStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStorage failed: %v", err)
	}

	conv := NewConversation("12345", "You are a helpful assistant.")
	conv.Append(
		model.Message{Role: model.RoleUser, Content: "hello"},
		model.Message{Role: model.RoleAssistant, Content: "hi there"},
	)

	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("12345")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected conversation, got nil")
	}
	if loaded.Len() != 3 {
		t.Errorf("expected 3 messages, got %d", loaded.Len())
	}
	if loaded.Messages[0].Role != model.RoleSystem {
		t.Error("system message not first")
	}
	if loaded.Messages[2].Content != "hi there" {
		t.Error("assistant message not preserved")
	}
}

func TestLoadMissingConversation(t *testing.T) {
	store, err := NewConversationStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStorage failed: %v", err)
	}

	conv, err := store.Load("nope")
	if err != nil {
		t.Fatalf("missing conversation should not error: %v", err)
	}
	if conv != nil {
		t.Error("expected nil for missing conversation")
	}
}

func TestClearConversation(t *testing.T) {
	store, err := NewConversationStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStorage failed: %v", err)
	}

	conv := NewConversation("77", "persona")
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Clear("77"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	loaded, err := store.Load("77")
	if err != nil || loaded != nil {
		t.Error("conversation should be gone after Clear")
	}

	// clearing twice is a no-op
	if err := store.Clear("77"); err != nil {
		t.Errorf("second Clear should not error: %v", err)
	}
}

func TestSetSystemPrompt(t *testing.T) {
	conv := NewConversation("1", "old persona")
	conv.Append(model.Message{Role: model.RoleUser, Content: "hi"})

	conv.SetSystemPrompt("new persona")
	if conv.Messages[0].Content != "new persona" {
		t.Error("system prompt not rewritten")
	}
	if conv.Len() != 2 {
		t.Errorf("rewrite should not grow history, got %d messages", conv.Len())
	}

	// inserting into a history without a system message
	bare := NewConversation("2", "")
	bare.Append(model.Message{Role: model.RoleUser, Content: "hi"})
	bare.SetSystemPrompt("persona")
	if bare.Messages[0].Role != model.RoleSystem {
		t.Error("system message not inserted first")
	}
	if bare.Len() != 2 {
		t.Errorf("expected 2 messages, got %d", bare.Len())
	}
}

func TestSummarizedReplacesHistory(t *testing.T) {
	conv := NewConversation("1", "persona")
	for i := 0; i < 10; i++ {
		conv.Append(model.Message{Role: model.RoleUser, Content: "msg"})
	}

	conv.Summarized("persona\n\nSummary of earlier conversation: ...")
	if conv.Len() != 1 {
		t.Fatalf("expected single message after summarization, got %d", conv.Len())
	}
	if conv.Messages[0].Role != model.RoleSystem {
		t.Error("remaining message should be the system message")
	}
}

func TestMessagesCopyIsIndependent(t *testing.T) {
	conv := NewConversation("1", "persona")
	conv.Append(model.Message{Role: model.RoleUser, Content: "original"})

	cp := conv.MessagesCopy()
	cp[1].Content = "mutated"

	if conv.Messages[1].Content != "original" {
		t.Error("mutating the copy changed the stored history")
	}
}

func TestSettingsDefaults(t *testing.T) {
	store, err := NewSettingsStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewSettingsStorage failed: %v", err)
	}

	settings, err := store.Load("unknown-chat")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Temperature != DefaultTemperature {
		t.Errorf("unexpected default temperature %v", settings.Temperature)
	}
	if settings.RelevanceThreshold != DefaultRelevanceThreshold {
		t.Errorf("unexpected default threshold %v", settings.RelevanceThreshold)
	}
	if settings.TopK != DefaultTopK {
		t.Errorf("unexpected default topK %v", settings.TopK)
	}
	if !settings.ToolsEnabled || !settings.RetrievalEnabled {
		t.Error("tools and retrieval should default to enabled")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store, err := NewSettingsStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewSettingsStorage failed: %v", err)
	}

	settings := DefaultSettings()
	settings.Temperature = 0.2
	settings.TotalUsage.Add(model.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150})

	if err := store.Save("42", settings); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("42")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Temperature != 0.2 {
		t.Error("temperature not persisted")
	}
	if loaded.TotalUsage.TotalTokens != 150 {
		t.Error("usage totals not persisted")
	}
}

func TestSearchAll(t *testing.T) {
	store, err := NewConversationStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStorage failed: %v", err)
	}

	first := NewConversation("1", "persona mentions kubernetes too")
	first.Append(model.Message{Role: model.RoleUser, Content: "tell me about Kubernetes"})
	second := NewConversation("2", "")
	second.Append(model.Message{Role: model.RoleUser, Content: "unrelated"})

	for _, conv := range []*Conversation{first, second} {
		if err := store.Save(conv); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	matches, err := NewSearchIndex(store).SearchAll("kubernetes")
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	// the system message hit must be excluded
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].ConversationID != "1" {
		t.Errorf("unexpected conversation id %q", matches[0].ConversationID)
	}
}

func TestServerRegistryRoundTrip(t *testing.T) {
	registry, err := NewServerRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewServerRegistry failed: %v", err)
	}
	defer registry.Close()

	server := RegisteredServer{
		ID:      "weather",
		Command: "npx",
		Args:    []string{"-y", "@example/weather-mcp"},
		Env:     map[string]string{"WEATHER_API_KEY": "secret"},
		Enabled: true,
	}
	if err := registry.Save(server); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := registry.Load("weather")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected server, got nil")
	}
	if loaded.Command != "npx" || len(loaded.Args) != 2 {
		t.Error("command or args not preserved")
	}
	if loaded.Env["WEATHER_API_KEY"] != "secret" {
		t.Error("env not preserved")
	}

	if err := registry.SetEnabled("weather", false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	loaded, _ = registry.Load("weather")
	if loaded.Enabled {
		t.Error("server should be disabled")
	}

	if err := registry.SetEnabled("ghost", true); err == nil {
		t.Error("expected error for unknown server")
	}

	servers, err := registry.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(servers) != 1 {
		t.Errorf("expected 1 server, got %d", len(servers))
	}

	if err := registry.Delete("weather"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	loaded, _ = registry.Load("weather")
	if loaded != nil {
		t.Error("server should be gone after Delete")
	}
}
