// Package mock provides an in-memory test double for
// [embeddings.Provider].
//
// The mock is safe for concurrent use. It records every embedded text so
// tests can assert which transcript turns were submitted, and returns a
// scripted vector.
package mock

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock implementation of [embeddings.Provider]. Set the
// exported fields before use; inspect Texts after.
type Provider struct {
	mu sync.Mutex

	// Vector is returned by every Embed call.
	Vector []float32

	// Err, when non-nil, is returned by Embed instead of Vector.
	Err error

	// Dims is returned by Dimensions. When zero, Dimensions reports
	// len(Vector).
	Dims int

	// Texts records every embedded text in order.
	Texts []string
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Vector, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Dims != 0 {
		return p.Dims
	}
	return len(p.Vector)
}

// EmbedCount returns the number of Embed invocations so far.
func (p *Provider) EmbedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}
