// Package mock provides an in-memory mock implementation of [stt.Provider]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so tests can
// assert on call counts and arguments, and exposes exported fields the test
// can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records the arguments of a single Transcribe invocation.
type TranscribeCall struct {
	// Clip is the clip passed to Transcribe.
	Clip stt.Clip
}

// Provider is a mock implementation of [stt.Provider]. Set the exported
// Result/Error fields (or TranscribeFunc for full control) before use;
// inspect TranscribeCalls after.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFunc is nil.
	Result stt.Result

	// Error is returned by Transcribe when TranscribeFunc is nil.
	Error error

	// TranscribeFunc, when non-nil, is invoked instead of returning
	// Result/Error. Use it to block on a channel or vary results per call.
	TranscribeFunc func(ctx context.Context, clip stt.Clip) (stt.Result, error)

	// TranscribeCalls records all Transcribe invocations in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Clip: clip})
	fn := p.TranscribeFunc
	result, err := p.Result, p.Error
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, clip)
	}
	return result, err
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
