// Package gigachat is a minimal HTTP client for Sber's GigaChat API.
//
// The client covers the three endpoints sova needs: chat completions
// (including function calling), embeddings, and the model list. Token
// handling is delegated to TokenProvider; every request is retried exactly
// once with a force-refreshed token when the API answers 401.
package gigachat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the public GigaChat API host.
	DefaultBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "GigaChat"

	// DefaultEmbeddingModel is GigaChat's embedding model name.
	DefaultEmbeddingModel = "Embeddings"

	requestTimeout = 3 * time.Minute
	connectTimeout = 10 * time.Second
)

type Client struct {
	baseURL string
	tokens  *TokenProvider
	client  *http.Client

	// mu guards the model names: chats for different conversations run
	// concurrently with /model switches.
	mu             sync.RWMutex
	model          string
	embeddingModel string
}

// NewClient creates a GigaChat client. Empty baseURL and model select the
// defaults. The HTTP client uses a 3-minute request timeout and a 10-second
// connect timeout: completions are slow, connections should not be.
func NewClient(baseURL, model string, tokens *TokenProvider) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:        baseURL,
		model:          model,
		embeddingModel: DefaultEmbeddingModel,
		tokens:         tokens,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// Chat sends a completion request. The request's Model field is filled in
// from the client when empty.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.GetModel()
	}

	var resp ChatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Embeddings returns the embedding vector for a single text.
func (c *Client) Embeddings(ctx context.Context, text string) ([]float64, error) {
	c.mu.RLock()
	embeddingModel := c.embeddingModel
	c.mu.RUnlock()

	req := EmbeddingRequest{
		Model: embeddingModel,
		Input: []string{text},
	}

	var resp EmbeddingResponse
	if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings endpoint returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// ListModels returns the model ids available to the account.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var resp modelsResponse
	if err := c.get(ctx, "/models", &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Ping checks reachability by listing models.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *Client) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) SetModel(m string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = m
}

// SetEmbeddingModel overrides the default embedding model.
func (c *Client) SetEmbeddingModel(m string) {
	if m == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingModel = m
}

// post marshals body, performs the request with auth, and decodes the
// response into out. A 401 triggers one forced token refresh and a single
// retry.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	status, body, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	// Authorization failure: refresh once and retry. Any further 401 is
	// surfaced to the caller.
	if status == http.StatusUnauthorized {
		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh access token: %w", err)
		}
		status, body, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("GigaChat %s returned %d: %s", path, status, truncateBody(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode GigaChat response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("GigaChat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read GigaChat response: %w", err)
	}
	return resp.StatusCode, body, nil
}
