// Package mock provides in-memory mock implementations of
// [realtime.Provider], [realtime.Session], and [realtime.TokenSource] for
// use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields the test can set to control behavior. Tests drive the
// session from the outside with EmitAudio, EmitTranscript, EmitEvent, and
// End.
package mock

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	"github.com/presidence-ga/iasted/pkg/types"
)

// Compile-time assertions.
var (
	_ realtime.Provider    = (*Provider)(nil)
	_ realtime.Session     = (*Session)(nil)
	_ realtime.TokenSource = (*TokenSource)(nil)
)

// ─── TokenSource ──────────────────────────────────────────────────────────────

// TokenSource is a mock implementation of [realtime.TokenSource].
type TokenSource struct {
	mu sync.Mutex

	// Credential is returned by Token.
	Credential realtime.Credential

	// Error is returned by Token.
	Error error

	// CallCount records how many times Token was called. The session core
	// must mint a fresh credential on every start, so tests assert this
	// equals the number of starts.
	CallCount int
}

// Token implements [realtime.TokenSource].
func (t *TokenSource) Token(_ context.Context) (realtime.Credential, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CallCount++
	return t.Credential, t.Error
}

// Calls returns the number of Token invocations so far.
func (t *TokenSource) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.CallCount
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is a mock implementation of [realtime.Session].
type Session struct {
	mu sync.Mutex

	audioCh     chan []byte
	transcripts chan types.Transcript
	events      chan realtime.Event

	closed bool

	// SendAudioError is returned by SendAudio.
	SendAudioError error

	// InterruptError is returned by Interrupt.
	InterruptError error

	// ErrResult is returned by Err.
	ErrResult error

	// SentAudio records every chunk passed to SendAudio.
	SentAudio [][]byte

	// CallCountInterrupt records how many times Interrupt was called.
	CallCountInterrupt int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSession creates a Session with buffered output channels.
func NewSession() *Session {
	return &Session{
		audioCh:     make(chan []byte, 64),
		transcripts: make(chan types.Transcript, 16),
		events:      make(chan realtime.Event, 16),
	}
}

// SendAudio implements [realtime.Session].
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentAudio = append(s.SentAudio, chunk)
	return s.SendAudioError
}

// Audio implements [realtime.Session].
func (s *Session) Audio() <-chan []byte { return s.audioCh }

// Transcripts implements [realtime.Session].
func (s *Session) Transcripts() <-chan types.Transcript { return s.transcripts }

// Events implements [realtime.Session].
func (s *Session) Events() <-chan realtime.Event { return s.events }

// Interrupt implements [realtime.Session].
func (s *Session) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountInterrupt++
	return s.InterruptError
}

// Err implements [realtime.Session].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrResult
}

// Close implements [realtime.Session]. The output channels are closed on
// the first call; later calls only bump the call count.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.audioCh)
		close(s.transcripts)
		close(s.events)
	}
	return nil
}

// Closed reports whether Close has been called at least once.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// EmitAudio queues a synthesized audio chunk for the consumer.
func (s *Session) EmitAudio(chunk []byte) { s.audioCh <- chunk }

// EmitTranscript queues a transcript for the consumer.
func (s *Session) EmitTranscript(t types.Transcript) { s.transcripts <- t }

// EmitEvent queues a side-channel event for the consumer.
func (s *Session) EmitEvent(e realtime.Event) { s.events <- e }

// End simulates the vendor closing the session with the given terminal
// error (nil for a clean end).
func (s *Session) End(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ErrResult = err
	close(s.audioCh)
	close(s.transcripts)
	close(s.events)
	s.mu.Unlock()
}

// ─── Provider ─────────────────────────────────────────────────────────────────

// OpenCall records the arguments of a single Open invocation.
type OpenCall struct {
	// Config is the session config passed to Open.
	Config realtime.SessionConfig
}

// Provider is a mock implementation of [realtime.Provider].
type Provider struct {
	mu sync.Mutex

	// OpenSession is returned by Open. When nil, a fresh [NewSession] is
	// created per call.
	OpenSession *Session

	// OpenError is returned by Open.
	OpenError error

	// OpenFunc, when non-nil, replaces the default Open behavior.
	OpenFunc func(ctx context.Context, cfg realtime.SessionConfig) (realtime.Session, error)

	// OpenCalls records all Open invocations in order.
	OpenCalls []OpenCall

	// Sessions records every session handed out by Open.
	Sessions []*Session
}

// Open implements [realtime.Provider].
func (p *Provider) Open(ctx context.Context, cfg realtime.SessionConfig) (realtime.Session, error) {
	p.mu.Lock()
	p.OpenCalls = append(p.OpenCalls, OpenCall{Config: cfg})
	fn := p.OpenFunc
	openErr := p.OpenError
	sess := p.OpenSession
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, cfg)
	}
	if openErr != nil {
		return nil, openErr
	}
	if sess == nil {
		sess = NewSession()
	}

	p.mu.Lock()
	p.Sessions = append(p.Sessions, sess)
	p.mu.Unlock()
	return sess, nil
}

// CallCount returns the number of Open invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.OpenCalls)
}
