// Package elevenlabs provides the ephemeral-credential half of the
// ElevenLabs Conversational AI integration: a [realtime.TokenSource] that
// fetches a pre-signed WebSocket URL for a configured agent. The signed URL
// embeds a short-lived grant, so the long-lived API key never reaches the
// session path.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/presidence-ga/iasted/pkg/provider/realtime"
)

const defaultSignedURLEndpoint = "https://api.elevenlabs.io/v1/convai/conversation/get_signed_url"

// Compile-time assertion that TokenSource satisfies realtime.TokenSource.
var _ realtime.TokenSource = (*TokenSource)(nil)

// TokenSource fetches signed conversation URLs for an ElevenLabs
// Conversational AI agent.
type TokenSource struct {
	apiKey   string
	agentID  string
	endpoint string
	client   *http.Client
}

// Option is a functional option for configuring a TokenSource.
type Option func(*TokenSource)

// WithEndpoint overrides the signed-URL endpoint. Used in tests.
func WithEndpoint(url string) Option {
	return func(t *TokenSource) { t.endpoint = url }
}

// NewTokenSource creates a TokenSource for the given agent.
func NewTokenSource(apiKey, agentID string, opts ...Option) (*TokenSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs realtime: apiKey must not be empty")
	}
	if agentID == "" {
		return nil, fmt.Errorf("elevenlabs realtime: agentID must not be empty")
	}
	t := &TokenSource{
		apiKey:   apiKey,
		agentID:  agentID,
		endpoint: defaultSignedURLEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// signedURLResponse is the response of GET /v1/convai/conversation/get_signed_url.
type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// Token implements realtime.TokenSource. Each call fetches a brand-new
// signed URL; results are never cached.
func (t *TokenSource) Token(ctx context.Context) (realtime.Credential, error) {
	u := fmt.Sprintf("%s?agent_id=%s", t.endpoint, url.QueryEscape(t.agentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return realtime.Credential{}, fmt.Errorf("elevenlabs realtime: build request: %w", err)
	}
	req.Header.Set("xi-api-key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return realtime.Credential{}, fmt.Errorf("elevenlabs realtime: fetch signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return realtime.Credential{}, fmt.Errorf("elevenlabs realtime: fetch signed url: unexpected status %d", resp.StatusCode)
	}

	var sr signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return realtime.Credential{}, fmt.Errorf("elevenlabs realtime: decode response: %w", err)
	}
	if sr.SignedURL == "" {
		return realtime.Credential{}, fmt.Errorf("elevenlabs realtime: response carries no signed url")
	}

	return realtime.Credential{URL: sr.SignedURL}, nil
}
