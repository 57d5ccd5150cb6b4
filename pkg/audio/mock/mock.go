// Package mock provides an in-memory implementation of [audio.Source] for
// use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and exposes exported fields the test can
// set to control behavior.
//
// Typical usage:
//
//	src := mock.NewSource(16)
//	src.Push(types.AudioFrame{Data: loud, SampleRate: 16000, Channels: 1})
//	src.Push(types.AudioFrame{Data: quiet, SampleRate: 16000, Channels: 1})
package mock

import (
	"sync"

	"github.com/presidence-ga/iasted/pkg/audio"
	"github.com/presidence-ga/iasted/pkg/types"
)

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)

// Source is a scripted implementation of [audio.Source]. Tests push frames
// with [Source.Push] and the consumer reads them from Frames.
type Source struct {
	mu sync.Mutex

	frames chan types.AudioFrame
	closed bool

	// CloseError is returned by Close.
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSource creates a Source whose frame channel has the given buffer size.
func NewSource(buffer int) *Source {
	return &Source{frames: make(chan types.AudioFrame, buffer)}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan types.AudioFrame { return s.frames }

// Close implements [audio.Source]. The frame channel is closed on the first
// call; later calls only bump the call count.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return s.CloseError
}

// Push queues a frame for the consumer. Pushing after Close panics, exactly
// like sending on a closed channel, so tests catch misuse immediately.
func (s *Source) Push(frame types.AudioFrame) {
	s.frames <- frame
}

// Closed reports whether Close has been called at least once.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
