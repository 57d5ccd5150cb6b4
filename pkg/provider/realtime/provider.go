// Package realtime defines the Provider interface for bidirectional
// speech-to-speech transports.
//
// A realtime provider wraps a voice AI service that accepts raw audio input
// and returns synthesised audio output over a single persistent channel
// (e.g., the OpenAI Realtime API), bypassing the separate STT → chat → TTS
// pipeline entirely. The service runs its own voice-activity detection, so
// barge-in is handled server-side: when the user speaks over the assistant,
// the vendor interrupts generation and signals it through the event stream.
//
// Forward compatibility is part of the contract: implementations must treat
// every vendor event type they do not recognize as a no-op, never as an
// error.
//
// All implementations must be safe for concurrent use.
package realtime

import (
	"context"

	"github.com/presidence-ga/iasted/pkg/types"
)

// EventType identifies a structured side-channel event from the vendor.
type EventType string

const (
	// EventSpeechStarted fires when the vendor's VAD detects the user
	// starting to speak. During assistant playback this is a barge-in.
	EventSpeechStarted EventType = "speech_started"

	// EventSpeechStopped fires when the vendor's VAD detects the user
	// finishing an utterance.
	EventSpeechStopped EventType = "speech_stopped"

	// EventResponseDone fires when the vendor has finished generating a
	// complete assistant response, audio included.
	EventResponseDone EventType = "response_done"
)

// Event is a structured notification from the vendor's side channel.
type Event struct {
	Type EventType
}

// SessionConfig is the initial configuration for a new realtime session.
type SessionConfig struct {
	// Voice selects the synthesized voice for assistant replies.
	Voice types.VoiceProfile

	// Instructions is the system-level prompt defining the assistant's
	// persona and behavioural constraints.
	Instructions string
}

// Session represents an open realtime channel. It is an interface so that
// test code can supply mock implementations without a live vendor
// connection.
//
// Callers must call Close when the session is no longer needed and must
// drain the Audio, Transcripts, and Events channels promptly; all three are
// closed when the session ends.
type Session interface {
	// SendAudio delivers a raw PCM16 audio chunk to the vendor. Returns an
	// error if the session is closed or the transport rejects the write.
	SendAudio(chunk []byte) error

	// Audio emits raw PCM audio as the model synthesises its reply. After
	// the channel closes, call Err to check whether the session ended
	// cleanly.
	Audio() <-chan []byte

	// Transcripts emits recognized text for both sides of the
	// conversation: user speech as the vendor transcribes it and
	// assistant replies as they are generated.
	Transcripts() <-chan types.Transcript

	// Events emits the vendor's structured side-channel notifications.
	// Unknown vendor events are dropped before reaching this channel.
	Events() <-chan Event

	// Interrupt asks the vendor to stop generating the current response
	// and discard buffered audio.
	Interrupt() error

	// Err returns the error that ended the session prematurely, or nil if
	// it ended cleanly. Check after the Audio channel closes.
	Err() error

	// Close terminates the session and releases all resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime speech-to-speech backend.
//
// Open mints a fresh ephemeral credential via the provider's TokenSource on
// every call; credentials are never cached across sessions.
type Provider interface {
	Open(ctx context.Context, cfg SessionConfig) (Session, error)
}
