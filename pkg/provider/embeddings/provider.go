// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// The transcript store embeds each conversation turn as it is persisted and
// uses the vectors for semantic search over past sessions. Embedding is a
// best-effort enrichment: a session never blocks on it, and a store without
// an embedder simply cannot search.
package embeddings

import "context"

// Provider maps text to dense float32 vectors.
//
// Every vector a Provider instance returns has length Dimensions(). Vectors
// from different instances must not be compared unless both use the same
// model. Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the vector for one text. The text is passed to the
	// backend verbatim; any model-specific preprocessing is the caller's
	// responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed vector length this provider produces,
	// constant for the lifetime of the instance. The transcript store
	// sizes its pgvector column from it.
	Dimensions() int
}
