package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/presidence-ga/iasted/internal/resilience"
	"github.com/presidence-ga/iasted/pkg/provider/chat"
	chatmock "github.com/presidence-ga/iasted/pkg/provider/chat/mock"
	"github.com/presidence-ga/iasted/pkg/provider/stt"
	sttmock "github.com/presidence-ga/iasted/pkg/provider/stt/mock"
	ttsmock "github.com/presidence-ga/iasted/pkg/provider/tts/mock"
	"github.com/presidence-ga/iasted/pkg/types"
)

func TestChatBreaker_PassesThrough(t *testing.T) {
	t.Parallel()
	inner := &chatmock.Provider{CompleteResult: &chat.Response{Content: "Bonjour."}}
	b := resilience.NewChatBreaker(inner, resilience.CircuitBreakerConfig{})

	resp, err := b.Complete(context.Background(), chat.Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Bonjour." {
		t.Fatalf("content = %q", resp.Content)
	}
	if inner.CompleteCallCount() != 1 {
		t.Fatalf("call count = %d, want 1", inner.CompleteCallCount())
	}
}

func TestChatBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	inner := &chatmock.Provider{CompleteError: errors.New("503")}
	b := resilience.NewChatBreaker(inner, resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	for range 2 {
		if _, err := b.Complete(context.Background(), chat.Request{}); err == nil {
			t.Fatal("expected provider error")
		}
	}

	// Breaker is open: the provider must not be reached again.
	_, err := b.Complete(context.Background(), chat.Request{})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.CompleteCallCount() != 2 {
		t.Fatalf("call count = %d, want 2 (open breaker must fail fast)", inner.CompleteCallCount())
	}
}

func TestSTTBreaker_FailsFastWhenOpen(t *testing.T) {
	t.Parallel()
	inner := &sttmock.Provider{Error: errors.New("timeout")}
	b := resilience.NewSTTBreaker(inner, resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})

	if _, err := b.Transcribe(context.Background(), stt.Clip{}); err == nil {
		t.Fatal("expected provider error")
	}
	_, err := b.Transcribe(context.Background(), stt.Clip{})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.CallCount() != 1 {
		t.Fatalf("call count = %d, want 1", inner.CallCount())
	}
}

func TestTTSBreaker_SynthesisGuardedVoicesPassThrough(t *testing.T) {
	t.Parallel()
	inner := &ttsmock.Provider{
		SynthesizeError: errors.New("402"),
	}
	b := resilience.NewTTSBreaker(inner, resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})

	if _, err := b.Synthesize(context.Background(), "bonjour", types.VoiceProfile{}); err == nil {
		t.Fatal("expected provider error")
	}
	_, err := b.Synthesize(context.Background(), "bonjour", types.VoiceProfile{})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}

	// Catalogue fetches bypass the breaker even while it is open.
	if _, err := b.ListVoices(context.Background()); err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
}

func TestBreaker_RecoversAfterTimeout(t *testing.T) {
	t.Parallel()
	inner := &sttmock.Provider{Error: errors.New("timeout")}
	b := resilience.NewSTTBreaker(inner, resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  1,
	})

	if _, err := b.Transcribe(context.Background(), stt.Clip{}); err == nil {
		t.Fatal("expected provider error")
	}

	time.Sleep(15 * time.Millisecond)
	inner.Error = nil
	inner.Result = stt.Result{Text: "bonjour"}

	res, err := b.Transcribe(context.Background(), stt.Clip{})
	if err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if res.Text != "bonjour" {
		t.Fatalf("text = %q", res.Text)
	}
}
