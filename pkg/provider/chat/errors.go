package chat

import (
	"errors"
	"strings"
)

// Sentinel errors for the remote failure kinds the UI must distinguish.
// Adapters wrap backend failures with the matching sentinel so callers can
// use errors.Is regardless of vendor.
var (
	// ErrRateLimited marks a request rejected because the vendor's rate
	// limit was hit. The correct recovery is to let the user retry, never
	// an automatic backoff loop.
	ErrRateLimited = errors.New("chat: rate limited")

	// ErrQuotaExceeded marks a request rejected because the account's
	// usage quota is exhausted.
	ErrQuotaExceeded = errors.New("chat: quota exceeded")
)

// Classify inspects err and, when it recognizes a rate-limit or quota
// failure, returns an error that additionally matches the corresponding
// sentinel via errors.Is. Unrecognized errors are returned unchanged.
//
// Vendor SDKs do not share a structured error taxonomy, so this falls back
// to the status codes and phrases they reliably embed in error text:
// OpenAI returns 429 with "insufficient_quota" for exhausted accounts,
// Gemini returns RESOURCE_EXHAUSTED.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient_quota"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "billing"):
		return &classifiedError{kind: ErrQuotaExceeded, cause: err}
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "too many requests"):
		return &classifiedError{kind: ErrRateLimited, cause: err}
	}
	return err
}

// classifiedError attaches a sentinel kind to a backend error while keeping
// the original error in the chain.
type classifiedError struct {
	kind  error
	cause error
}

func (e *classifiedError) Error() string { return e.cause.Error() }

func (e *classifiedError) Unwrap() []error { return []error{e.kind, e.cause} }
