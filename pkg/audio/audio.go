// Package audio provides the audio primitives shared by the gateway and the
// voice session core: PCM level measurement for silence detection, format
// conversion between the gateway's 48 kHz Opus streams and the 16 kHz mono
// PCM the speech providers consume, and the capture Source abstraction.
package audio

import (
	"github.com/presidence-ga/iasted/pkg/types"
)

// Source is a live microphone capture stream. The gateway backs it with the
// client's decoded Opus frames; tests back it with scripted frames.
//
// Frames returns the stream of captured frames. The channel is closed when
// the source ends, either because the client stopped sending or because
// Close was called. Close releases the underlying capture resources and is
// idempotent.
type Source interface {
	Frames() <-chan types.AudioFrame
	Close() error
}

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when you don't need the data from a
// streaming channel (e.g., a synthesis audio channel after an interrupt).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
