// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents a uniform streaming interface: hand over the reply text, receive
// raw PCM audio chunks as they are synthesised. Streaming lets the playback
// controller start speaking before the full utterance is rendered.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/presidence-ga/iasted/pkg/types"
)

// Voice is one entry of a provider's voice catalogue.
type Voice struct {
	// ID is the provider-assigned voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Category is the provider's voice category (e.g., "premade",
	// "cloned"). May be empty.
	Category string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice profile and returns a
	// channel emitting raw PCM audio chunks as they become available.
	//
	// The returned channel is closed by the implementation when synthesis
	// completes or ctx is cancelled. The caller must drain the channel to
	// avoid blocking the provider's internal goroutines. Errors after the
	// stream opens are signalled by closing the channel early; callers
	// check ctx.Err() to distinguish cancellation.
	//
	// Returns a non-nil error only if the stream cannot be started.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]Voice, error)
}
