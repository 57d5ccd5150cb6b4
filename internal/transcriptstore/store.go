// Package transcriptstore persists conversation transcripts as a best-effort
// write-through. The voice session state machine never depends on it: write
// failures are logged and swallowed, a slow store delays nothing, and a
// missing store is simply a nil Recorder.
//
// Two backends exist. The postgres store keeps turns in-house with pgvector
// embeddings for semantic search over past conversations; the supabase store
// writes into the dashboard's own conversation tables so transcripts appear
// next to the rest of the platform data.
package transcriptstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/presidence-ga/iasted/pkg/types"
)

// Turn is one persisted conversation turn.
type Turn struct {
	SessionID string     `json:"session_id"`
	Role      types.Role `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// SearchResult is a past turn ranked by semantic distance to a query.
// Smaller Distance means more similar.
type SearchResult struct {
	Turn     Turn
	Distance float64
}

// Store persists sessions and turns. Implementations must be safe for
// concurrent use.
type Store interface {
	// BeginSession registers a new conversation session for the given
	// dashboard role.
	BeginSession(ctx context.Context, sessionID, userRole string) error

	// WriteTurn appends one turn to its session.
	WriteTurn(ctx context.Context, turn Turn) error

	// EndSession marks the session finished.
	EndSession(ctx context.Context, sessionID string) error

	// Close releases the backend connection.
	Close()
}

// Searcher finds past turns semantically similar to a text query. Only
// backends with an embedding index implement it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// Recorder wraps a Store with the best-effort contract: every failure is
// logged and dropped. A nil Recorder is valid and does nothing, so callers
// never branch on whether persistence is configured.
type Recorder struct {
	store Store
	log   *slog.Logger
}

// NewRecorder wraps store. A nil store yields a nil Recorder.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, log: logger.With("component", "transcriptstore")}
}

// BeginSession records the session start, dropping any failure.
func (r *Recorder) BeginSession(ctx context.Context, sessionID, userRole string) {
	if r == nil {
		return
	}
	if err := r.store.BeginSession(ctx, sessionID, userRole); err != nil {
		r.log.Warn("begin session write failed", "sessionID", sessionID, "error", err)
	}
}

// WriteTurn records one turn, dropping any failure.
func (r *Recorder) WriteTurn(ctx context.Context, turn Turn) {
	if r == nil {
		return
	}
	if err := r.store.WriteTurn(ctx, turn); err != nil {
		r.log.Warn("turn write failed", "sessionID", turn.SessionID, "error", err)
	}
}

// roleFromString maps a stored role column back onto the shared Role type.
// Anything unrecognized counts as the user, never as the assistant.
func roleFromString(s string) types.Role {
	if s == string(types.RoleAssistant) {
		return types.RoleAssistant
	}
	return types.RoleUser
}

// EndSession records the session end, dropping any failure.
func (r *Recorder) EndSession(ctx context.Context, sessionID string) {
	if r == nil {
		return
	}
	if err := r.store.EndSession(ctx, sessionID); err != nil {
		r.log.Warn("end session write failed", "sessionID", sessionID, "error", err)
	}
}
