package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := NewAPI("test-token", server.Client())
	api.baseURL = server.URL
	return api
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottest-token/getUpdates") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(getUpdatesResponse{
			OK: true,
			Result: []Update{
				{UpdateID: 10, Message: &Message{MessageID: 1, Chat: &Chat{ID: 42}, Text: "hi"}},
				{UpdateID: 11, Message: &Message{MessageID: 2, Chat: &Chat{ID: 42}, Text: "again"}},
			},
		})
	})

	updates, next, err := api.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if next != 12 {
		t.Errorf("expected next offset 12, got %d", next)
	}
}

func TestSendMessageFallsBackToPlain(t *testing.T) {
	var parseModes []string
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parseModes = append(parseModes, req.ParseMode)

		// reject the HTML attempt, accept plain
		if req.ParseMode == "HTML" {
			_ = json.NewEncoder(w).Encode(okResponse{OK: false, Description: "can't parse entities"})
			return
		}
		_ = json.NewEncoder(w).Encode(okResponse{OK: true})
	})

	if err := api.SendMessage(context.Background(), 42, "<b>broken"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(parseModes) != 2 || parseModes[0] != "HTML" || parseModes[1] != "" {
		t.Errorf("expected HTML then plain attempts, got %v", parseModes)
	}
}

func TestSendMessageSkipsEmptyText(t *testing.T) {
	called := false
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(okResponse{OK: true})
	})

	if err := api.SendMessage(context.Background(), 42, "   "); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if called {
		t.Error("empty message should not hit the API")
	}
}

func TestGetMe(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(getMeResponse{OK: true, Result: User{ID: 7, Username: "sova_bot"}})
	})

	me, err := api.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe failed: %v", err)
	}
	if me.Username != "sova_bot" {
		t.Errorf("unexpected username %q", me.Username)
	}
}
