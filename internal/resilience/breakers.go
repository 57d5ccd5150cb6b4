package resilience

import (
	"context"

	"github.com/presidence-ga/iasted/pkg/provider/chat"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	"github.com/presidence-ga/iasted/pkg/provider/stt"
	"github.com/presidence-ga/iasted/pkg/provider/tts"
	"github.com/presidence-ga/iasted/pkg/types"
)

// Compile-time interface checks.
var (
	_ chat.Provider     = (*ChatBreaker)(nil)
	_ stt.Provider      = (*STTBreaker)(nil)
	_ tts.Provider      = (*TTSBreaker)(nil)
	_ realtime.Provider = (*RealtimeBreaker)(nil)
)

// ChatBreaker wraps a [chat.Provider] with a circuit breaker. While the
// breaker is open, calls fail immediately with [ErrCircuitOpen].
type ChatBreaker struct {
	inner chat.Provider
	cb    *CircuitBreaker
}

// NewChatBreaker wraps inner. A zero-value cfg gets the breaker defaults and
// the name "chat".
func NewChatBreaker(inner chat.Provider, cfg CircuitBreakerConfig) *ChatBreaker {
	if cfg.Name == "" {
		cfg.Name = "chat"
	}
	return &ChatBreaker{inner: inner, cb: NewCircuitBreaker(cfg)}
}

// Complete implements [chat.Provider].
func (b *ChatBreaker) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	var resp *chat.Response
	err := b.cb.Execute(func() error {
		var err error
		resp, err = b.inner.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// StreamCompletion implements [chat.Provider]. The breaker guards stream
// establishment only; errors inside an open stream arrive as chunks and do
// not count against the breaker.
func (b *ChatBreaker) StreamCompletion(ctx context.Context, req chat.Request) (<-chan chat.Chunk, error) {
	var ch <-chan chat.Chunk
	err := b.cb.Execute(func() error {
		var err error
		ch, err = b.inner.StreamCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// STTBreaker wraps an [stt.Provider] with a circuit breaker.
type STTBreaker struct {
	inner stt.Provider
	cb    *CircuitBreaker
}

// NewSTTBreaker wraps inner. A zero-value cfg gets the breaker defaults and
// the name "stt".
func NewSTTBreaker(inner stt.Provider, cfg CircuitBreakerConfig) *STTBreaker {
	if cfg.Name == "" {
		cfg.Name = "stt"
	}
	return &STTBreaker{inner: inner, cb: NewCircuitBreaker(cfg)}
}

// Transcribe implements [stt.Provider].
func (b *STTBreaker) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	var res stt.Result
	err := b.cb.Execute(func() error {
		var err error
		res, err = b.inner.Transcribe(ctx, clip)
		return err
	})
	if err != nil {
		return stt.Result{}, err
	}
	return res, nil
}

// TTSBreaker wraps a [tts.Provider] with a circuit breaker on synthesis.
// ListVoices passes through: a catalogue fetch is an operator action, not
// part of the latency-sensitive turn chain.
type TTSBreaker struct {
	inner tts.Provider
	cb    *CircuitBreaker
}

// NewTTSBreaker wraps inner. A zero-value cfg gets the breaker defaults and
// the name "tts".
func NewTTSBreaker(inner tts.Provider, cfg CircuitBreakerConfig) *TTSBreaker {
	if cfg.Name == "" {
		cfg.Name = "tts"
	}
	return &TTSBreaker{inner: inner, cb: NewCircuitBreaker(cfg)}
}

// Synthesize implements [tts.Provider]. The breaker guards stream
// establishment only.
func (b *TTSBreaker) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan []byte, error) {
	var ch <-chan []byte
	err := b.cb.Execute(func() error {
		var err error
		ch, err = b.inner.Synthesize(ctx, text, voice)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListVoices implements [tts.Provider].
func (b *TTSBreaker) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return b.inner.ListVoices(ctx)
}

// RealtimeBreaker wraps a [realtime.Provider] with a circuit breaker on
// channel setup. A vendor rejecting session opens trips the breaker so
// repeated start attempts fail fast instead of burning fresh credentials.
type RealtimeBreaker struct {
	inner realtime.Provider
	cb    *CircuitBreaker
}

// NewRealtimeBreaker wraps inner. A zero-value cfg gets the breaker defaults
// and the name "realtime".
func NewRealtimeBreaker(inner realtime.Provider, cfg CircuitBreakerConfig) *RealtimeBreaker {
	if cfg.Name == "" {
		cfg.Name = "realtime"
	}
	return &RealtimeBreaker{inner: inner, cb: NewCircuitBreaker(cfg)}
}

// Open implements [realtime.Provider].
func (b *RealtimeBreaker) Open(ctx context.Context, cfg realtime.SessionConfig) (realtime.Session, error) {
	var sess realtime.Session
	err := b.cb.Execute(func() error {
		var err error
		sess, err = b.inner.Open(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}
