package realtime

import (
	"context"
	"time"
)

// Credential is a short-lived secret for one connection attempt. Depending
// on the vendor it is either a bearer secret for a fixed endpoint or a
// pre-signed URL.
type Credential struct {
	// Secret is the ephemeral bearer value. Empty when the vendor issues
	// a signed URL instead.
	Secret string

	// URL is a pre-signed connection URL. Empty when the vendor issues a
	// bearer secret instead.
	URL string

	// ExpiresAt is when the credential stops being accepted. Zero when
	// the vendor does not report it.
	ExpiresAt time.Time
}

// TokenSource mints ephemeral credentials for realtime connections. A fresh
// credential must be requested immediately before every connection attempt;
// implementations must never hand out a long-lived API secret, and callers
// must never cache or reuse a credential across sessions.
type TokenSource interface {
	Token(ctx context.Context) (Credential, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (Credential, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (Credential, error) {
	return f(ctx)
}
