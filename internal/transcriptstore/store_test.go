package transcriptstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/presidence-ga/iasted/internal/transcriptstore"
	storemock "github.com/presidence-ga/iasted/internal/transcriptstore/mock"
	"github.com/presidence-ga/iasted/pkg/types"
)

func TestRecorder_WritesThrough(t *testing.T) {
	t.Parallel()
	store := &storemock.Store{}
	rec := transcriptstore.NewRecorder(store, nil)

	rec.BeginSession(context.Background(), "s1", "president")
	rec.WriteTurn(context.Background(), transcriptstore.Turn{
		SessionID: "s1",
		Role:      types.RoleUser,
		Content:   "bonjour",
		Timestamp: time.Now(),
	})
	rec.EndSession(context.Background(), "s1")

	if len(store.BeginCalls) != 1 || store.BeginCalls[0].UserRole != "president" {
		t.Fatalf("begin calls = %+v", store.BeginCalls)
	}
	if store.TurnCount() != 1 || store.Turns[0].Content != "bonjour" {
		t.Fatalf("turns = %+v", store.Turns)
	}
	if len(store.EndCalls) != 1 {
		t.Fatalf("end calls = %+v", store.EndCalls)
	}
}

func TestRecorder_SwallowsFailures(t *testing.T) {
	t.Parallel()
	store := &storemock.Store{
		BeginError: errors.New("db down"),
		WriteError: errors.New("db down"),
		EndError:   errors.New("db down"),
	}
	rec := transcriptstore.NewRecorder(store, nil)

	// None of these may panic or propagate; persistence is best-effort.
	rec.BeginSession(context.Background(), "s1", "president")
	rec.WriteTurn(context.Background(), transcriptstore.Turn{SessionID: "s1", Content: "bonjour"})
	rec.EndSession(context.Background(), "s1")

	if store.TurnCount() != 1 {
		t.Fatal("failed write not attempted")
	}
}

func TestRecorder_NilIsValid(t *testing.T) {
	t.Parallel()
	var rec *transcriptstore.Recorder

	rec.BeginSession(context.Background(), "s1", "president")
	rec.WriteTurn(context.Background(), transcriptstore.Turn{SessionID: "s1"})
	rec.EndSession(context.Background(), "s1")

	if transcriptstore.NewRecorder(nil, nil) != nil {
		t.Fatal("NewRecorder(nil) should return a nil Recorder")
	}
}
