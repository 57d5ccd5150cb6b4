// Package mock provides an in-memory mock implementation of [chat.Provider]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so tests can
// assert on call counts and arguments, and exposes exported fields the test
// can set to control return values.
//
// Typical usage:
//
//	p := &mock.Provider{
//	    CompleteResult: &chat.Response{Content: "Bonjour, comment puis-je vous aider ?"},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/pkg/provider/chat"
)

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// StreamCall records the arguments of a single StreamCompletion invocation.
type StreamCall struct {
	// Request is the request passed to StreamCompletion.
	Request chat.Request
}

// CompleteCall records the arguments of a single Complete invocation.
type CompleteCall struct {
	// Request is the request passed to Complete.
	Request chat.Request
}

// Provider is a mock implementation of [chat.Provider]. Set the exported
// Result fields (or the Func hooks for full control) before use; inspect the
// Calls fields after.
type Provider struct {
	mu sync.Mutex

	// StreamChunks are emitted in order by StreamCompletion before the
	// channel closes, when StreamFunc is nil.
	StreamChunks []chat.Chunk

	// StreamError is returned by StreamCompletion when StreamFunc is nil.
	StreamError error

	// CompleteResult is returned by Complete when CompleteFunc is nil.
	CompleteResult *chat.Response

	// CompleteError is returned by Complete when CompleteFunc is nil.
	CompleteError error

	// StreamFunc, when non-nil, replaces the default StreamCompletion
	// behavior.
	StreamFunc func(ctx context.Context, req chat.Request) (<-chan chat.Chunk, error)

	// CompleteFunc, when non-nil, replaces the default Complete behavior.
	// Use it to block on a channel or vary results per call.
	CompleteFunc func(ctx context.Context, req chat.Request) (*chat.Response, error)

	// StreamCalls records all StreamCompletion invocations in order.
	StreamCalls []StreamCall

	// CompleteCalls records all Complete invocations in order.
	CompleteCalls []CompleteCall
}

// StreamCompletion implements [chat.Provider].
func (p *Provider) StreamCompletion(ctx context.Context, req chat.Request) (<-chan chat.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Request: req})
	fn := p.StreamFunc
	chunks := make([]chat.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	streamErr := p.StreamError
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if streamErr != nil {
		return nil, streamErr
	}

	ch := make(chan chat.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// Complete implements [chat.Provider].
func (p *Provider) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Request: req})
	fn := p.CompleteFunc
	result, err := p.CompleteResult, p.CompleteError
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return result, err
}

// CompleteCallCount returns the number of Complete invocations so far.
func (p *Provider) CompleteCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamCalls = nil
	p.CompleteCalls = nil
}
