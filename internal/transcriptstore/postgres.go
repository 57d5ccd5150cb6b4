package transcriptstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/presidence-ga/iasted/pkg/provider/embeddings"
)

// Compile-time interface checks.
var (
	_ Store    = (*PostgresStore)(nil)
	_ Searcher = (*PostgresStore)(nil)
)

// PostgresStore keeps transcripts in an in-house PostgreSQL database. Each
// turn optionally carries an embedding, which backs semantic Search over
// past conversations through a pgvector HNSW index.
//
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// ddlTranscripts returns the transcript DDL with the embedding dimension
// substituted. The dimension is baked into the column type at schema
// creation time; changing it later requires a manual schema change.
func ddlTranscripts(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS conversation_sessions (
    id          TEXT         PRIMARY KEY,
    user_role   TEXT         NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS conversation_turns (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    role        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_session_id
    ON conversation_turns (session_id);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_timestamp
    ON conversation_turns (timestamp);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_embedding
    ON conversation_turns USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// NewPostgresStore connects to the database at dsn, registers pgvector types
// on every connection, and ensures the transcript tables exist. embedder may
// be nil, in which case turns are stored without embeddings and Search
// returns an error.
func NewPostgresStore(ctx context.Context, dsn string, embedder embeddings.Provider) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("transcriptstore postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcriptstore postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcriptstore postgres: ping: %w", err)
	}

	dims := 1536
	if embedder != nil {
		dims = embedder.Dimensions()
	}
	if _, err := pool.Exec(ctx, ddlTranscripts(dims)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcriptstore postgres: migrate: %w", err)
	}

	return &PostgresStore{pool: pool, embedder: embedder}, nil
}

// BeginSession implements Store.
func (s *PostgresStore) BeginSession(ctx context.Context, sessionID, userRole string) error {
	const q = `
		INSERT INTO conversation_sessions (id, user_role)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q, sessionID, userRole); err != nil {
		return fmt.Errorf("transcriptstore postgres: begin session: %w", err)
	}
	return nil
}

// WriteTurn implements Store. The embedding is computed inline; an embedding
// failure stores the turn without one rather than losing the text.
func (s *PostgresStore) WriteTurn(ctx context.Context, turn Turn) error {
	var vec any
	if s.embedder != nil {
		if emb, err := s.embedder.Embed(ctx, turn.Content); err == nil {
			vec = pgvector.NewVector(emb)
		}
	}

	const q = `
		INSERT INTO conversation_turns (session_id, role, content, embedding, timestamp)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, turn.SessionID, string(turn.Role), turn.Content, vec, turn.Timestamp); err != nil {
		return fmt.Errorf("transcriptstore postgres: write turn: %w", err)
	}
	return nil
}

// EndSession implements Store.
func (s *PostgresStore) EndSession(ctx context.Context, sessionID string) error {
	const q = `
		UPDATE conversation_sessions
		SET    ended_at = now()
		WHERE  id = $1 AND ended_at IS NULL`
	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("transcriptstore postgres: end session: %w", err)
	}
	return nil
}

// Search implements Searcher. It embeds the query and returns the topK
// closest turns by cosine distance, most similar first.
func (s *PostgresStore) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("transcriptstore postgres: search requires an embeddings provider")
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("transcriptstore postgres: embed query: %w", err)
	}

	const q = `
		SELECT session_id, role, content, timestamp,
		       embedding <=> $1 AS distance
		FROM   conversation_turns
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`
	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(emb), topK)
	if err != nil {
		return nil, fmt.Errorf("transcriptstore postgres: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var sr SearchResult
		var role string
		if err := row.Scan(&sr.Turn.SessionID, &role, &sr.Turn.Content, &sr.Turn.Timestamp, &sr.Distance); err != nil {
			return SearchResult{}, err
		}
		sr.Turn.Role = roleFromString(role)
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcriptstore postgres: scan rows: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
