// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., OpenAI Whisper or a
// local whisper.cpp model) behind a single clip-based call. The turn-based
// transport records one utterance at a time, so the contract is deliberately
// simple: hand over a finished clip, get back the recognized text.
//
// An empty Result.Text is NOT an error. It means the clip contained no
// recognizable speech, and the session treats it as "nothing to submit".
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Clip is one finished utterance recorded by the turn-taking controller.
type Clip struct {
	// PCM is raw 16-bit little-endian signed PCM audio.
	PCM []byte

	// SampleRate is the sample rate in Hz. The gateway delivers 16000.
	SampleRate int

	// Channels is the channel count; most backends require mono.
	Channels int

	// Language is a BCP-47 language hint (e.g., "fr"). Empty lets the
	// backend auto-detect, if supported.
	Language string
}

// Result is the outcome of transcribing a clip.
type Result struct {
	// Text is the recognized speech. Empty means no speech was detected;
	// callers must treat that as a non-event, not a failure.
	Text string
}

// Provider is the abstraction over any clip-based STT backend.
//
// Transcribe blocks until the backend has processed the whole clip or ctx is
// cancelled. Errors are reserved for transport and backend failures; silence
// and unintelligible audio yield an empty Result with a nil error.
type Provider interface {
	Transcribe(ctx context.Context, clip Clip) (Result, error)
}
