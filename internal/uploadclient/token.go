package uploadclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// TokenSource fetches a fresh anti-forgery token from the server.
type TokenSource interface {
	Fetch(ctx context.Context) (string, error)
}

// TokenHolder caches the current anti-forgery token for one upload
// session. A 403 response means the cached token went stale: callers
// Invalidate and the next Get fetches a fresh one.
type TokenHolder struct {
	mu     sync.Mutex
	token  string
	source TokenSource
}

func NewTokenHolder(source TokenSource) *TokenHolder {
	return &TokenHolder{source: source}
}

func (h *TokenHolder) Get(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.token != "" {
		return h.token, nil
	}

	token, err := h.source.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch anti-forgery token: %w", err)
	}
	h.token = token
	return token, nil
}

func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *TokenHolder) Invalidate() {
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
}

// HTTPTokenSource fetches tokens from the server's /auth/token endpoint.
type HTTPTokenSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (s *HTTPTokenSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/auth/token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return parsed.Token, nil
}
