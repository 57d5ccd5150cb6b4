// Package openai embeds text through the OpenAI embeddings API. It backs the
// transcript store's semantic search over past conversation turns.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/presidence-ga/iasted/pkg/provider/embeddings"
)

// DefaultModel is used when no model is configured.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// knownDimensions maps the OpenAI embedding models to their vector length.
// The transcript store sizes its pgvector column from this, so the values
// must match what the API actually returns.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// fallbackDimensions covers models that are not in the table. Deployments
// using such a model should set WithDimensions explicitly; a mismatch with
// the pgvector column makes every insert fail.
const fallbackDimensions = 1536

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements [embeddings.Provider] over the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	dims   int
}

type options struct {
	baseURL string
	timeout time.Duration
	dims    int
}

// Option configures the provider.
type Option func(*options)

// WithBaseURL points the client at a different endpoint, for proxied or
// self-hosted OpenAI-compatible deployments.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDimensions overrides the vector length reported by Dimensions, for
// models the provider does not know about.
func WithDimensions(n int) Option {
	return func(o *options) { o.dims = n }
}

// New constructs the provider. An empty model selects [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: o.timeout}))
	}

	dims := o.dims
	if dims == 0 {
		if known, ok := knownDimensions[model]; ok {
			dims = known
		} else {
			dims = fallbackDimensions
		}
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model, dims: dims}, nil
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	return p.dims
}
