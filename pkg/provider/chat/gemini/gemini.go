// Package gemini provides a chat provider backed by the Google Gemini API
// via google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/presidence-ga/iasted/pkg/provider/chat"
	"github.com/presidence-ga/iasted/pkg/types"
)

// DefaultModel is the default Gemini model.
const DefaultModel = "gemini-2.0-flash"

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// New constructs a Gemini chat Provider. If model is empty, DefaultModel is
// used. An empty apiKey lets the SDK fall back to the GEMINI_API_KEY or
// GOOGLE_API_KEY environment variable.
func New(ctx context.Context, apiKey string, model string) (*Provider, error) {
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Provider{client: client, model: model}, nil
}

// Complete implements chat.Provider.
func (p *Provider) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	contents, cfg := p.buildRequest(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", chat.Classify(err))
	}

	result := &chat.Response{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.Usage = chat.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// StreamCompletion implements chat.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req chat.Request) (<-chan chat.Chunk, error) {
	contents, cfg := p.buildRequest(req)

	ch := make(chan chat.Chunk, 32)
	go func() {
		defer close(ch)

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				select {
				case ch <- chat.Chunk{FinishReason: "error", Text: chat.Classify(err).Error()}:
				case <-ctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case ch <- chat.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case ch <- chat.Chunk{FinishReason: "stop"}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// buildRequest converts a chat.Request into genai contents plus config.
func (p *Provider) buildRequest(req chat.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	return contents, cfg
}
