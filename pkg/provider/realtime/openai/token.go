package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/presidence-ga/iasted/pkg/provider/realtime"
)

const defaultSessionsEndpoint = "https://api.openai.com/v1/realtime/sessions"

// TokenSource mints ephemeral client secrets for Realtime connections by
// calling POST /v1/realtime/sessions with the long-lived API key. It is the
// trusted-intermediary half of the credential contract: the key stays here,
// sessions only ever see the short-lived secret.
type TokenSource struct {
	apiKey   string
	model    string
	voice    string
	endpoint string
	client   *http.Client
}

// Compile-time assertion that TokenSource satisfies realtime.TokenSource.
var _ realtime.TokenSource = (*TokenSource)(nil)

// TokenOption is a functional option for configuring a TokenSource.
type TokenOption func(*TokenSource)

// WithTokenModel sets the model requested for minted sessions.
func WithTokenModel(model string) TokenOption {
	return func(t *TokenSource) { t.model = model }
}

// WithTokenVoice sets the voice requested for minted sessions.
func WithTokenVoice(voice string) TokenOption {
	return func(t *TokenSource) { t.voice = voice }
}

// WithTokenEndpoint overrides the sessions endpoint. Used in tests.
func WithTokenEndpoint(url string) TokenOption {
	return func(t *TokenSource) { t.endpoint = url }
}

// NewTokenSource creates a TokenSource backed by the given API key.
func NewTokenSource(apiKey string, opts ...TokenOption) (*TokenSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai realtime: apiKey must not be empty")
	}
	t := &TokenSource{
		apiKey:   apiKey,
		model:    DefaultModel,
		voice:    "alloy",
		endpoint: defaultSessionsEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// sessionRequest is the body of POST /v1/realtime/sessions.
type sessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

// sessionResponse is the subset of the response we consume.
type sessionResponse struct {
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// Token implements realtime.TokenSource. Each call mints a brand-new
// ephemeral secret; results are never cached.
func (t *TokenSource) Token(ctx context.Context) (realtime.Credential, error) {
	body, err := json.Marshal(sessionRequest{Model: t.model, Voice: t.voice})
	if err != nil {
		return realtime.Credential{}, fmt.Errorf("openai realtime: marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return realtime.Credential{}, fmt.Errorf("openai realtime: build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return realtime.Credential{}, fmt.Errorf("openai realtime: mint session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return realtime.Credential{}, fmt.Errorf("openai realtime: mint session: unexpected status %d", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return realtime.Credential{}, fmt.Errorf("openai realtime: decode session response: %w", err)
	}
	if sr.ClientSecret.Value == "" {
		return realtime.Credential{}, fmt.Errorf("openai realtime: session response carries no client secret")
	}

	cred := realtime.Credential{Secret: sr.ClientSecret.Value}
	if sr.ClientSecret.ExpiresAt > 0 {
		cred.ExpiresAt = time.Unix(sr.ClientSecret.ExpiresAt, 0)
	}
	return cred, nil
}
