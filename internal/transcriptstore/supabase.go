package transcriptstore

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// Compile-time interface check.
var _ Store = (*SupabaseStore)(nil)

// SupabaseStore writes transcripts into the dashboard's own Supabase
// tables (conversation_sessions / conversation_turns), so past conversations
// show up alongside the rest of the platform data. It does not implement
// Searcher; semantic search lives in the postgres backend.
type SupabaseStore struct {
	client *supabase.Client
}

// supabaseSession mirrors the conversation_sessions row shape.
type supabaseSession struct {
	ID        string    `json:"id"`
	UserRole  string    `json:"user_role"`
	StartedAt time.Time `json:"started_at"`
}

// supabaseTurn mirrors the conversation_turns row shape.
type supabaseTurn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSupabaseStore creates a store against the given Supabase project.
func NewSupabaseStore(url, apiKey string) (*SupabaseStore, error) {
	if url == "" {
		return nil, fmt.Errorf("transcriptstore supabase: url must not be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("transcriptstore supabase: apiKey must not be empty")
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("transcriptstore supabase: create client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// BeginSession implements Store.
func (s *SupabaseStore) BeginSession(_ context.Context, sessionID, userRole string) error {
	row := supabaseSession{ID: sessionID, UserRole: userRole, StartedAt: time.Now().UTC()}
	_, _, err := s.client.From("conversation_sessions").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("transcriptstore supabase: begin session: %w", err)
	}
	return nil
}

// WriteTurn implements Store.
func (s *SupabaseStore) WriteTurn(_ context.Context, turn Turn) error {
	row := supabaseTurn{
		SessionID: turn.SessionID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		Timestamp: turn.Timestamp.UTC(),
	}
	_, _, err := s.client.From("conversation_turns").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("transcriptstore supabase: write turn: %w", err)
	}
	return nil
}

// EndSession implements Store.
func (s *SupabaseStore) EndSession(_ context.Context, sessionID string) error {
	_, _, err := s.client.From("conversation_sessions").
		Update(map[string]any{"ended_at": time.Now().UTC()}, "", "").
		Eq("id", sessionID).
		Execute()
	if err != nil {
		return fmt.Errorf("transcriptstore supabase: end session: %w", err)
	}
	return nil
}

// Close implements Store. The Supabase client holds no long-lived
// connections.
func (s *SupabaseStore) Close() {}
