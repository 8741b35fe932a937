package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuthURL is Sber's OAuth endpoint for GigaChat access tokens.
const DefaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"

// expirySlack is subtracted from the reported expiry so a token is refreshed
// before it actually lapses mid-request.
const expirySlack = 30 * time.Second

// TokenProvider obtains and caches GigaChat access tokens. Access is guarded
// by a mutex; the token is fetched lazily on first use and refreshed on
// demand when the API reports an authorization failure. Callers perform a
// single forced refresh, not a retry loop.
type TokenProvider struct {
	authKey string // base64 client id:secret pair from the Sber portal
	scope   string // GIGACHAT_API_PERS or GIGACHAT_API_B2B
	authURL string
	client  *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenProvider creates a token provider. An empty authURL selects
// DefaultAuthURL; a nil client selects http.DefaultClient.
func NewTokenProvider(authKey, scope, authURL string, client *http.Client) *TokenProvider {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if scope == "" {
		scope = "GIGACHAT_API_PERS"
	}
	return &TokenProvider{
		authKey: authKey,
		scope:   scope,
		authURL: authURL,
		client:  client,
	}
}

// Token returns a valid access token, fetching one if none is cached or the
// cached one is about to expire.
func (t *TokenProvider) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expiresAt.Add(-expirySlack)) {
		return t.token, nil
	}
	if err := t.fetch(ctx); err != nil {
		return "", err
	}
	return t.token, nil
}

// ForceRefresh discards the cached token and fetches a new one. Used after
// the chat API answers 401 with a token that was believed valid.
func (t *TokenProvider) ForceRefresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = ""
	if err := t.fetch(ctx); err != nil {
		return "", err
	}
	return t.token, nil
}

// fetch performs the OAuth exchange. Caller must hold t.mu.
func (t *TokenProvider) fetch(ctx context.Context) error {
	form := url.Values{"scope": {t.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+t.authKey)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("token endpoint returned an empty access_token")
	}

	t.token = payload.AccessToken
	t.expiresAt = time.UnixMilli(payload.ExpiresAt)
	return nil
}

func truncateBody(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
