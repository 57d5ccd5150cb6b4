package voicesession_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/presidence-ga/iasted/internal/voicesession"
	"github.com/presidence-ga/iasted/pkg/audio"
	audiomock "github.com/presidence-ga/iasted/pkg/audio/mock"
	"github.com/presidence-ga/iasted/pkg/provider/chat"
	chatmock "github.com/presidence-ga/iasted/pkg/provider/chat/mock"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	rtmock "github.com/presidence-ga/iasted/pkg/provider/realtime/mock"
	"github.com/presidence-ga/iasted/pkg/provider/stt"
	sttmock "github.com/presidence-ga/iasted/pkg/provider/stt/mock"
	ttsmock "github.com/presidence-ga/iasted/pkg/provider/tts/mock"
	"github.com/presidence-ga/iasted/pkg/types"
)

// ─── Test doubles ─────────────────────────────────────────────────────────────

// captureStub hands out scripted sources and records acquisitions.
type captureStub struct {
	mu      sync.Mutex
	err     error
	sources []*audiomock.Source
}

func (c *captureStub) Acquire(_ context.Context) (audio.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	src := audiomock.NewSource(64)
	c.sources = append(c.sources, src)
	return src, nil
}

func (c *captureStub) acquisitions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

func (c *captureStub) lastSource() *audiomock.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sources) == 0 {
		return nil
	}
	return c.sources[len(c.sources)-1]
}

// sinkStub records synthesized audio chunks.
type sinkStub struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (s *sinkStub) Write(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, chunk)
	return s.err
}

func (s *sinkStub) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// recorder collects hook callbacks for later assertions.
type recorder struct {
	mu          sync.Mutex
	states      []voicesession.State
	transcripts []types.Transcript
	errs        []error
}

func (r *recorder) hooks() voicesession.Hooks {
	return voicesession.Hooks{
		OnState: func(s voicesession.State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnTranscript: func(t types.Transcript) {
			r.mu.Lock()
			r.transcripts = append(r.transcripts, t)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *recorder) lastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func (r *recorder) stateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fixture bundles a push-to-talk turn-based session with all mocks wired.
type fixture struct {
	session *voicesession.Session
	capture *captureStub
	sink    *sinkStub
	sttm    *sttmock.Provider
	chatm   *chatmock.Provider
	ttsm    *ttsmock.Provider
	rec     *recorder
}

func newFixture(t *testing.T, mutate func(*voicesession.Config)) *fixture {
	t.Helper()

	f := &fixture{
		capture: &captureStub{},
		sink:    &sinkStub{},
		sttm:    &sttmock.Provider{Result: stt.Result{Text: "bonjour"}},
		chatm:   &chatmock.Provider{CompleteResult: &chat.Response{Content: "Bonjour, comment puis-je vous aider ?"}},
		ttsm:    &ttsmock.Provider{AudioChunks: [][]byte{{0x01, 0x02}}},
		rec:     &recorder{},
	}

	cfg := voicesession.Config{
		Transport:    voicesession.TransportTurnBased,
		PushToTalk:   true,
		SystemPrompt: "Tu es iAsted, l'assistant vocal de la Présidence.",
		Language:     "fr",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sess, err := voicesession.New(cfg, voicesession.Collaborators{
		Capture: f.capture,
		Output:  f.sink,
		STT:     f.sttm,
		Chat:    f.chatm,
		TTS:     f.ttsm,
	}, f.rec.hooks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.session = sess
	t.Cleanup(sess.Stop)
	return f
}

// ─── Lifecycle ────────────────────────────────────────────────────────────────

func TestStart_FromIdle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.session.State(); got != voicesession.StateListening {
		t.Fatalf("state = %v, want listening", got)
	}
	if f.capture.acquisitions() != 1 {
		t.Fatalf("acquisitions = %d, want 1", f.capture.acquisitions())
	}
}

func TestStart_WhileActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.session.Start(context.Background()); !errors.Is(err, voicesession.ErrSessionActive) {
		t.Fatalf("second Start = %v, want ErrSessionActive", err)
	}
}

func TestStart_PermissionDenied(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.capture.err = errors.New("NotAllowedError")

	err := f.session.Start(context.Background())
	var perr *voicesession.PermissionDeniedError
	if !errors.As(err, &perr) {
		t.Fatalf("Start = %v, want PermissionDeniedError", err)
	}
	if got := f.session.State(); got != voicesession.StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if f.rec.errorCount() != 1 {
		t.Fatalf("surfaced errors = %d, want 1", f.rec.errorCount())
	}
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src := f.capture.lastSource()

	f.session.Stop()
	if got := f.session.State(); got != voicesession.StateIdle {
		t.Fatalf("state after stop = %v, want idle", got)
	}
	if !src.Closed() {
		t.Fatal("capture source not released on stop")
	}
	if len(f.session.History()) != 0 {
		t.Fatal("history not cleared on stop")
	}

	before := f.rec.stateCount()
	f.session.Stop()
	if got := f.session.State(); got != voicesession.StateIdle {
		t.Fatalf("state after second stop = %v, want idle", got)
	}
	if f.rec.stateCount() != before {
		t.Fatal("second stop produced a state transition")
	}
}

func TestToggle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if err := f.session.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle from idle: %v", err)
	}
	waitFor(t, "listening", func() bool { return f.session.State() == voicesession.StateListening })

	if err := f.session.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle from listening: %v", err)
	}
	if got := f.session.State(); got != voicesession.StateIdle {
		t.Fatalf("state after toggle = %v, want idle", got)
	}
}

// ─── Turn pipeline ────────────────────────────────────────────────────────────

func TestTurn_BonjourNonContinuous(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()

	waitFor(t, "idle after playback", func() bool { return f.session.State() == voicesession.StateIdle })

	history := f.session.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != types.RoleUser || history[0].Content != "bonjour" {
		t.Fatalf("history[0] = %+v", history[0])
	}
	if history[1].Role != types.RoleAssistant || history[1].Content != "Bonjour, comment puis-je vous aider ?" {
		t.Fatalf("history[1] = %+v", history[1])
	}
	if f.sink.writeCount() != 1 {
		t.Fatalf("sink writes = %d, want 1", f.sink.writeCount())
	}
	if src := f.capture.lastSource(); !src.Closed() {
		t.Fatal("microphone still held after single-shot turn")
	}
	if f.rec.errorCount() != 0 {
		t.Fatalf("unexpected errors: %v", f.rec.lastError())
	}
}

func TestTurn_ContinuousReturnsToListening(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *voicesession.Config) { c.Continuous = true })

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()

	waitFor(t, "listening after playback", func() bool { return f.session.State() == voicesession.StateListening })

	if src := f.capture.lastSource(); src.Closed() {
		t.Fatal("microphone released in continuous mode")
	}
	if len(f.session.History()) != 2 {
		t.Fatalf("history length = %d, want 2", len(f.session.History()))
	}
}

func TestTurn_SecondSubmitIgnoredWhileThinking(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	release := make(chan struct{})
	f.chatm.CompleteFunc = func(_ context.Context, _ chat.Request) (*chat.Response, error) {
		<-release
		return &chat.Response{Content: "d'accord"}, nil
	}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()
	waitFor(t, "thinking", func() bool { return f.session.State() == voicesession.StateThinking })

	f.session.SubmitUserTurn()
	f.session.SubmitUserTurn()
	close(release)

	waitFor(t, "idle", func() bool { return f.session.State() == voicesession.StateIdle })
	if got := f.sttm.CallCount(); got != 1 {
		t.Fatalf("transcribe calls = %d, want 1", got)
	}
	if got := f.chatm.CompleteCallCount(); got != 1 {
		t.Fatalf("complete calls = %d, want 1", got)
	}
}

func TestTurn_StaleReplyDiscardedAfterStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	release := make(chan struct{})
	f.chatm.CompleteFunc = func(_ context.Context, _ chat.Request) (*chat.Response, error) {
		<-release
		return &chat.Response{Content: "trop tard"}, nil
	}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()
	waitFor(t, "thinking", func() bool { return f.session.State() == voicesession.StateThinking })

	f.session.Stop()
	before := f.rec.stateCount()
	close(release)

	// Give the late reply every chance to misbehave.
	time.Sleep(50 * time.Millisecond)

	if got := f.session.State(); got != voicesession.StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if f.rec.stateCount() != before {
		t.Fatal("stale reply caused a state transition")
	}
	if len(f.session.History()) != 0 {
		t.Fatal("stale reply appended to history")
	}
	if f.ttsm.CallCount() != 0 {
		t.Fatal("stale reply reached synthesis")
	}
}

func TestTurn_EmptyTranscriptionIsSilent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.sttm.Result = stt.Result{Text: "  "}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()

	waitFor(t, "listening again", func() bool { return f.session.State() == voicesession.StateListening })
	if len(f.session.History()) != 0 {
		t.Fatal("empty transcription appended to history")
	}
	if f.rec.errorCount() != 0 {
		t.Fatalf("empty transcription surfaced an error: %v", f.rec.lastError())
	}
	if f.chatm.CompleteCallCount() != 0 {
		t.Fatal("empty transcription reached the completion stage")
	}
}

func TestTurn_RateLimited(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.chatm.CompleteResult = nil
	f.chatm.CompleteError = chat.Classify(errors.New("HTTP 429 Too Many Requests"))

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()

	waitFor(t, "idle after failure", func() bool { return f.session.State() == voicesession.StateIdle })

	var rerr *voicesession.RemoteServiceError
	if !errors.As(f.rec.lastError(), &rerr) {
		t.Fatalf("surfaced error = %v, want RemoteServiceError", f.rec.lastError())
	}
	if rerr.Kind != voicesession.RemoteRateLimited {
		t.Fatalf("kind = %s, want rate_limited", rerr.Kind)
	}
	if f.ttsm.CallCount() != 0 {
		t.Fatal("failed turn reached synthesis")
	}
}

func TestTurn_QuotaExceeded(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.chatm.CompleteResult = nil
	f.chatm.CompleteError = chat.Classify(errors.New("insufficient_quota: please check your plan and billing"))

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()

	waitFor(t, "idle after failure", func() bool { return f.session.State() == voicesession.StateIdle })

	var rerr *voicesession.RemoteServiceError
	if !errors.As(f.rec.lastError(), &rerr) {
		t.Fatalf("surfaced error = %v, want RemoteServiceError", f.rec.lastError())
	}
	if rerr.Kind != voicesession.RemoteQuotaExceeded {
		t.Fatalf("kind = %s, want quota_exceeded", rerr.Kind)
	}
}

func TestTurn_PlaybackErrorSurfacesDistinctSignal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.sink.err = errors.New("output device gone")

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session.SubmitUserTurn()

	waitFor(t, "idle after playback error", func() bool { return f.session.State() == voicesession.StateIdle })

	var perr *voicesession.PlaybackFailedError
	if !errors.As(f.rec.lastError(), &perr) {
		t.Fatalf("surfaced error = %v, want PlaybackFailedError", f.rec.lastError())
	}
	// The failed playback still counts as playback end: the turn completed
	// and the history keeps both entries.
	if len(f.session.History()) != 2 {
		t.Fatalf("history length = %d, want 2", len(f.session.History()))
	}
}

// ─── Silence detection ────────────────────────────────────────────────────────

func silenceConfig(c *voicesession.Config) {
	c.PushToTalk = false
	c.TurnTaking = voicesession.TurnTakingConfig{
		SampleInterval:   5 * time.Millisecond,
		SilenceWindow:    25 * time.Millisecond,
		SilenceThreshold: 10,
	}
}

func TestSilence_AutoSubmitFiresOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, silenceConfig)

	release := make(chan struct{})
	f.chatm.CompleteFunc = func(_ context.Context, _ chat.Request) (*chat.Response, error) {
		<-release
		return &chat.Response{Content: "oui"}, nil
	}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, "silence auto-submit", func() bool { return f.sttm.CallCount() >= 1 })

	// Disarmed while thinking: no further submits accumulate.
	time.Sleep(100 * time.Millisecond)
	if got := f.sttm.CallCount(); got != 1 {
		t.Fatalf("transcribe calls = %d, want exactly 1", got)
	}
	close(release)
}

func TestSilence_LoudInputDebouncesTimer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, silenceConfig)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src := f.capture.lastSource()

	// Speech-level samples at ~5% of full scale keep the level above the
	// threshold; keep feeding them for several full silence windows.
	loud := make([]byte, 640)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0x66
		loud[i+1] = 0x06
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				src.Push(types.AudioFrame{Data: loud, SampleRate: 16000, Channels: 1})
			}
		}
	}()

	time.Sleep(120 * time.Millisecond)
	if got := f.sttm.CallCount(); got != 0 {
		t.Fatalf("transcribe calls while speaking = %d, want 0", got)
	}
	close(stop)

	// Once the input falls silent, the turn closes on its own. The level is
	// frame-driven, so the silence has to arrive as an actual quiet frame.
	src.Push(types.AudioFrame{Data: make([]byte, 640), SampleRate: 16000, Channels: 1})
	waitFor(t, "auto-submit after silence", func() bool { return f.sttm.CallCount() == 1 })
}

// ─── Realtime transport ───────────────────────────────────────────────────────

type realtimeFixture struct {
	session  *voicesession.Session
	capture  *captureStub
	sink     *sinkStub
	provider *rtmock.Provider
	rec      *recorder
}

func newRealtimeFixture(t *testing.T, rtSession *rtmock.Session, continuous bool) *realtimeFixture {
	t.Helper()

	f := &realtimeFixture{
		capture:  &captureStub{},
		sink:     &sinkStub{},
		provider: &rtmock.Provider{OpenSession: rtSession},
		rec:      &recorder{},
	}
	sess, err := voicesession.New(voicesession.Config{
		Transport:    voicesession.TransportRealtime,
		Continuous:   continuous,
		SystemPrompt: "Tu es iAsted.",
	}, voicesession.Collaborators{
		Capture:  f.capture,
		Output:   f.sink,
		Realtime: f.provider,
	}, f.rec.hooks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.session = sess
	t.Cleanup(sess.Stop)
	return f
}

func TestRealtime_FreshChannelPerStart(t *testing.T) {
	t.Parallel()
	f := newRealtimeFixture(t, nil, true)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	f.session.Stop()
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if got := f.provider.CallCount(); got != 2 {
		t.Fatalf("channel opens = %d, want one per start", got)
	}
}

func TestRealtime_SetupFailure(t *testing.T) {
	t.Parallel()
	f := newRealtimeFixture(t, nil, true)
	f.provider.OpenError = errors.New("credential mint refused")

	err := f.session.Start(context.Background())
	var terr *voicesession.TransportSetupError
	if !errors.As(err, &terr) {
		t.Fatalf("Start = %v, want TransportSetupError", err)
	}
	if got := f.session.State(); got != voicesession.StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if src := f.capture.lastSource(); src != nil && !src.Closed() {
		t.Fatal("capture leaked after setup failure")
	}
}

func TestRealtime_TranscriptsAndSpeaking(t *testing.T) {
	t.Parallel()
	rtSession := rtmock.NewSession()
	f := newRealtimeFixture(t, rtSession, true)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rtSession.EmitTranscript(types.Transcript{Text: "bonjour", IsFinal: true, Role: types.RoleUser})
	waitFor(t, "user transcript in history", func() bool { return len(f.session.History()) == 1 })

	rtSession.EmitAudio([]byte{0x01, 0x02})
	waitFor(t, "speaking", func() bool { return f.session.State() == voicesession.StateSpeaking })
	waitFor(t, "audio forwarded", func() bool { return f.sink.writeCount() == 1 })

	rtSession.EmitEvent(realtime.Event{Type: realtime.EventResponseDone})
	waitFor(t, "listening after response", func() bool { return f.session.State() == voicesession.StateListening })
}

func TestRealtime_SingleShotSettlesIdleAfterResponse(t *testing.T) {
	t.Parallel()
	rtSession := rtmock.NewSession()
	f := newRealtimeFixture(t, rtSession, false)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rtSession.EmitAudio([]byte{0x01})
	waitFor(t, "speaking", func() bool { return f.session.State() == voicesession.StateSpeaking })

	// Without continuous mode the reply closes the conversation; the
	// session comes all the way down instead of re-opening the floor.
	rtSession.EmitEvent(realtime.Event{Type: realtime.EventResponseDone})
	waitFor(t, "idle after response", func() bool { return f.session.State() == voicesession.StateIdle })

	if src := f.capture.lastSource(); src == nil || !src.Closed() {
		t.Fatal("capture not released after single-shot response")
	}
}

func TestRealtime_BargeInReturnsToListening(t *testing.T) {
	t.Parallel()
	rtSession := rtmock.NewSession()
	f := newRealtimeFixture(t, rtSession, true)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rtSession.EmitAudio([]byte{0x01})
	waitFor(t, "speaking", func() bool { return f.session.State() == voicesession.StateSpeaking })

	rtSession.EmitEvent(realtime.Event{Type: realtime.EventSpeechStarted})
	waitFor(t, "listening after barge-in", func() bool { return f.session.State() == voicesession.StateListening })
}

func TestRealtime_ChannelFailureSurfacesError(t *testing.T) {
	t.Parallel()
	rtSession := rtmock.NewSession()
	f := newRealtimeFixture(t, rtSession, true)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rtSession.End(errors.New("vendor closed the socket"))
	waitFor(t, "idle after channel failure", func() bool { return f.session.State() == voicesession.StateIdle })

	var rerr *voicesession.RemoteServiceError
	if !errors.As(f.rec.lastError(), &rerr) {
		t.Fatalf("surfaced error = %v, want RemoteServiceError", f.rec.lastError())
	}
}
