// Package types defines the shared types used across all iAsted packages.
//
// These types form the lingua franca between audio helpers, vendor providers,
// the voice session core, and the gateway. Each package defines its own
// domain types; only cross-cutting data structures live here, to avoid
// circular imports.
package types

import "time"

// AudioFrame represents a single frame of audio data flowing through the
// pipeline. Frames are the atomic unit of audio transport: decoded from the
// gateway's Opus stream, inspected by the turn-taking controller, and
// submitted to STT.
type AudioFrame struct {
	// PCM audio data, 16-bit little-endian signed samples.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for gateway Opus, 16000 for STT).
	SampleRate int

	// Channels: 1 for mono (STT input), 2 for stereo (client playback).
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playing time of the frame, or 0 when the frame
// carries no sample-rate information.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 || len(f.Data) == 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn spoken by the human user.
	RoleUser Role = "user"

	// RoleAssistant marks a turn produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Transcript represents a piece of recognized speech. Both interim
// hypotheses and authoritative results use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Role is who spoke the text. Realtime channels emit transcripts for
	// both sides of the conversation; turn-based transcription always
	// produces RoleUser.
	Role Role

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration
}

// HistoryEntry is one turn of the conversation history. History is
// append-only for the lifetime of a session and cleared when it ends.
type HistoryEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceProfile selects the synthesized voice for assistant replies.
type VoiceProfile struct {
	// VoiceID is the vendor-specific voice identifier.
	VoiceID string

	// Language is a BCP-47 language code (e.g., "fr").
	Language string

	// Stability and SimilarityBoost tune vendors that expose them
	// (ElevenLabs). Zero values select the vendor defaults.
	Stability       float64
	SimilarityBoost float64
}

// IntentAction is the category of action extracted from a user turn.
type IntentAction string

const (
	// IntentNavigate asks the dashboard to open a different view.
	IntentNavigate IntentAction = "navigate"

	// IntentGenerateDocument asks for an official document draft.
	IntentGenerateDocument IntentAction = "generate_document"

	// IntentConverse is plain conversation with no side effect.
	IntentConverse IntentAction = "converse"
)

// Intent is the structured result of analyzing a user turn.
type Intent struct {
	// Action is the extracted category.
	Action IntentAction `json:"action"`

	// Target is the action argument: a dashboard route for IntentNavigate,
	// a document type for IntentGenerateDocument, empty otherwise.
	Target string `json:"target,omitempty"`

	// Reply is the spoken confirmation or answer to synthesize.
	Reply string `json:"reply"`
}
