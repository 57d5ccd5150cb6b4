// Package mock provides an in-memory mock implementation of [tts.Provider]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so tests can
// assert on call counts and arguments, and exposes exported fields the test
// can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/pkg/provider/tts"
	"github.com/presidence-ga/iasted/pkg/types"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records the arguments of a single Synthesize invocation.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string

	// Voice is the voice profile passed to Synthesize.
	Voice types.VoiceProfile
}

// Provider is a mock implementation of [tts.Provider]. Set the exported
// fields before use; inspect SynthesizeCalls after.
type Provider struct {
	mu sync.Mutex

	// AudioChunks are emitted in order on the channel returned by
	// Synthesize, which then closes.
	AudioChunks [][]byte

	// SynthesizeError is returned by Synthesize.
	SynthesizeError error

	// Voices is returned by ListVoices.
	Voices []tts.Voice

	// ListVoicesError is returned by ListVoices.
	ListVoicesError error

	// SynthesizeCalls records all Synthesize invocations in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(_ context.Context, text string, voice types.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	chunks := make([][]byte, len(p.AudioChunks))
	copy(chunks, p.AudioChunks)
	err := p.SynthesizeError
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// ListVoices implements [tts.Provider].
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.ListVoicesError
}

// CallCount returns the number of Synthesize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
