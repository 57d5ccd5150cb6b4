// Package mock provides an in-memory mock implementation of
// [transcriptstore.Store] for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so tests can
// assert on call counts and arguments, and exposes exported error fields the
// test can set to force failures.
package mock

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/internal/transcriptstore"
)

// Compile-time assertion that Store satisfies transcriptstore.Store.
var _ transcriptstore.Store = (*Store)(nil)

// SessionCall records a BeginSession or EndSession invocation.
type SessionCall struct {
	SessionID string
	UserRole  string
}

// Store is a mock implementation of [transcriptstore.Store].
type Store struct {
	mu sync.Mutex

	// BeginError is returned by BeginSession.
	BeginError error

	// WriteError is returned by WriteTurn.
	WriteError error

	// EndError is returned by EndSession.
	EndError error

	// BeginCalls records all BeginSession invocations in order.
	BeginCalls []SessionCall

	// Turns records all turns passed to WriteTurn in order.
	Turns []transcriptstore.Turn

	// EndCalls records all EndSession invocations in order.
	EndCalls []SessionCall

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// BeginSession implements [transcriptstore.Store].
func (s *Store) BeginSession(_ context.Context, sessionID, userRole string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BeginCalls = append(s.BeginCalls, SessionCall{SessionID: sessionID, UserRole: userRole})
	return s.BeginError
}

// WriteTurn implements [transcriptstore.Store].
func (s *Store) WriteTurn(_ context.Context, turn transcriptstore.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, turn)
	return s.WriteError
}

// EndSession implements [transcriptstore.Store].
func (s *Store) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndCalls = append(s.EndCalls, SessionCall{SessionID: sessionID})
	return s.EndError
}

// Close implements [transcriptstore.Store].
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
}

// EndCount returns the number of EndSession invocations so far.
func (s *Store) EndCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.EndCalls)
}

// TurnCount returns the number of WriteTurn invocations so far.
func (s *Store) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Turns)
}

// Reset clears all recorded calls.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BeginCalls = nil
	s.Turns = nil
	s.EndCalls = nil
	s.CallCountClose = 0
}
