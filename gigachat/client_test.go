package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestToken(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		if r.Header.Get("RqUID") == "" {
			t.Error("expected RqUID header on token request")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + time.Now().Format("150405.000000000"),
			"expires_at":   time.Now().Add(30 * time.Minute).UnixMilli(),
		})
	}))
}

func TestTokenProviderCachesToken(t *testing.T) {
	var hits int
	auth := newTestToken(t, &hits)
	defer auth.Close()

	tp := NewTokenProvider("key", "GIGACHAT_API_PERS", auth.URL, auth.Client())

	first, err := tp.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	second, err := tp.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	if first != second {
		t.Errorf("expected cached token, got %q then %q", first, second)
	}
	if hits != 1 {
		t.Errorf("expected 1 token fetch, got %d", hits)
	}
}

func TestChatRefreshesTokenOnceOn401(t *testing.T) {
	var tokenHits int
	auth := newTestToken(t, &tokenHits)
	defer auth.Close()

	var chatHits int
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatHits++
		if chatHits == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message:      Message{Role: "assistant", Content: "hello"},
				FinishReason: "stop",
			}},
			Usage: Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		})
	}))
	defer api.Close()

	tp := NewTokenProvider("key", "GIGACHAT_API_PERS", auth.URL, auth.Client())
	client := NewClient(api.URL, "GigaChat", tp)

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Choices[0].Message.Content != "hello" {
		t.Errorf("unexpected content %q", resp.Choices[0].Message.Content)
	}
	if chatHits != 2 {
		t.Errorf("expected 2 chat calls (401 then 200), got %d", chatHits)
	}
	// One lazy fetch plus exactly one forced refresh.
	if tokenHits != 2 {
		t.Errorf("expected 2 token fetches, got %d", tokenHits)
	}
}

func TestModelSwitchDuringConcurrentChats(t *testing.T) {
	// Chats for different conversations run in parallel while /model
	// switches the client's model. Exercised under the race detector.
	var tokenHits int
	auth := newTestToken(t, &tokenHits)
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message:      Message{Role: "assistant", Content: "ok"},
				FinishReason: "stop",
			}},
		})
	}))
	defer api.Close()

	tp := NewTokenProvider("key", "GIGACHAT_API_PERS", auth.URL, auth.Client())
	client := NewClient(api.URL, "GigaChat", tp)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			client.SetModel(fmt.Sprintf("GigaChat-Pro-%d", n))
			if _, err := client.Chat(context.Background(), ChatRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			}); err != nil {
				t.Errorf("Chat failed: %v", err)
			}
			_ = client.GetModel()
		}(i)
	}
	wg.Wait()
}

func TestChatSurfacesAPIError(t *testing.T) {
	var tokenHits int
	auth := newTestToken(t, &tokenHits)
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer api.Close()

	tp := NewTokenProvider("key", "", auth.URL, auth.Client())
	client := NewClient(api.URL, "", tp)

	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}
