// Package voicesession implements the assistant's conversation lifecycle:
// one state machine that owns the microphone, the remote speech
// collaborators, and the playback of synthesized replies.
//
// A [Session] runs in one of two transport modes. In realtime mode it holds
// a persistent bidirectional channel to the vendor and the vendor's own
// voice-activity detection closes turns and handles barge-in. In turn-based
// mode it records discrete clips, closes each turn itself (silence detection
// or explicit commit), and drives the transcribe, complete, synthesize chain
// one stage at a time.
//
// Concurrency contract: at most one outbound remote chain is in flight per
// session, turns are strictly sequential, and capture re-arms in continuous
// mode only once playback has signalled its end, so the microphone never
// hears the assistant's own voice. Every turn carries the epoch it was
// started under; replies arriving after Stop carry a stale epoch and are
// discarded without a state change.
package voicesession

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/presidence-ga/iasted/pkg/audio"
	"github.com/presidence-ga/iasted/pkg/provider/chat"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	"github.com/presidence-ga/iasted/pkg/provider/stt"
	"github.com/presidence-ga/iasted/pkg/provider/tts"
	"github.com/presidence-ga/iasted/pkg/types"
)

// ─── State ────────────────────────────────────────────────────────────────────

// State is the session's lifecycle state. There is exactly one State per
// session; it replaces the tangle of isRecording/isSpeaking/isProcessing
// flags that makes impossible combinations representable.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateThinking
	StateSpeaking
)

// String returns the lowercase wire name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// TransportMode selects how the session reaches the remote collaborators.
type TransportMode int

const (
	// TransportRealtime holds a persistent bidirectional speech channel.
	TransportRealtime TransportMode = iota

	// TransportTurnBased records discrete clips and runs the
	// transcribe, complete, synthesize chain per turn.
	TransportTurnBased
)

// String returns the lowercase wire name of the transport mode.
func (m TransportMode) String() string {
	switch m {
	case TransportRealtime:
		return "realtime"
	case TransportTurnBased:
		return "turn-based"
	default:
		return "unknown"
	}
}

// ─── Wiring ───────────────────────────────────────────────────────────────────

// Capture acquires the client's microphone stream. Acquisition failure is
// surfaced as permission denial.
type Capture interface {
	Acquire(ctx context.Context) (audio.Source, error)
}

// Hooks are optional callbacks the surface registers to observe the
// session. All hooks are invoked outside the session lock; a hook may call
// back into the session.
type Hooks struct {
	// OnState fires on every state transition.
	OnState func(State)

	// OnTranscript fires for each finalized user or assistant transcript.
	OnTranscript func(types.Transcript)

	// OnLevel fires with the 0-100 input level per captured frame.
	OnLevel func(int)

	// OnError fires for every surfaced error. Errors never interrupt the
	// caller; they arrive here alongside the state transition to idle.
	OnError func(error)
}

// Collaborators are the remote services and local endpoints a session is
// wired to. Capture and Output are always required. Realtime mode requires
// Realtime; turn-based mode requires STT, Chat, and TTS.
type Collaborators struct {
	Capture  Capture
	Output   Sink
	STT      stt.Provider
	Chat     chat.Provider
	TTS      tts.Provider
	Realtime realtime.Provider
}

// Config carries the per-session settings.
type Config struct {
	// Transport selects realtime or turn-based operation.
	Transport TransportMode

	// Continuous re-arms listening after each assistant utterance. It
	// takes effect only on the playback-end signal, never on a timer.
	Continuous bool

	// PushToTalk disables silence detection entirely; the explicit commit
	// is the only way a turn closes. Mutually exclusive with silence
	// detection by construction.
	PushToTalk bool

	// Voice selects the synthesis voice.
	Voice types.VoiceProfile

	// SystemPrompt is the assistant instruction prepended to every
	// completion and realtime session.
	SystemPrompt string

	// Language hints the transcription language, e.g. "fr".
	Language string

	// TurnTaking tunes silence detection. Ignored when PushToTalk is set.
	TurnTaking TurnTakingConfig

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is the single authority over the conversation state. All methods
// are safe for concurrent use.
type Session struct {
	cfg      Config
	col      Collaborators
	hooks    Hooks
	log      *slog.Logger
	playback *playbackController
	turns    *turnTaker

	lastLevel atomic.Int32

	mu       sync.Mutex
	state    State
	epoch    uint64
	history  []types.HistoryEntry
	inFlight bool
	buf      []byte // current turn's 16 kHz mono PCM, turn-based mode only
	source   audio.Source
	rt       realtime.Session
	ctx      context.Context
	cancel   context.CancelFunc
	started  time.Time
}

// New validates the wiring and creates an idle session.
func New(cfg Config, col Collaborators, hooks Hooks) (*Session, error) {
	if col.Capture == nil {
		return nil, errors.New("voicesession: capture must not be nil")
	}
	if col.Output == nil {
		return nil, errors.New("voicesession: output must not be nil")
	}
	switch cfg.Transport {
	case TransportRealtime:
		if col.Realtime == nil {
			return nil, errors.New("voicesession: realtime provider must not be nil in realtime mode")
		}
	case TransportTurnBased:
		if col.STT == nil || col.Chat == nil || col.TTS == nil {
			return nil, errors.New("voicesession: stt, chat, and tts providers must not be nil in turn-based mode")
		}
	default:
		return nil, errors.New("voicesession: unknown transport mode")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		cfg:      cfg,
		col:      col,
		hooks:    hooks,
		log:      cfg.Logger.With("component", "voicesession"),
		playback: newPlaybackController(),
		state:    StateIdle,
	}
	s.turns = newTurnTaker(cfg.TurnTaking, func() int {
		return int(s.lastLevel.Load())
	}, func() {
		s.SubmitUserTurn()
	})
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation so far.
func (s *Session) History() []types.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Start activates the session. Valid only from idle. Capture is acquired
// first; in realtime mode a fresh ephemeral credential is then minted for
// this attempt and the channel opened. On any failure the session returns
// to idle and nothing is retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.epoch++
	e := s.epoch
	s.state = StateConnecting
	s.started = time.Now()
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	src, err := s.col.Capture.Acquire(ctx)
	if err != nil {
		perr := &PermissionDeniedError{Cause: err}
		s.fail(e, perr, false)
		return perr
	}

	sessCtx, cancel := context.WithCancel(context.Background())

	var rt realtime.Session
	if s.cfg.Transport == TransportRealtime {
		rt, err = s.col.Realtime.Open(ctx, realtime.SessionConfig{
			Voice:        s.cfg.Voice,
			Instructions: s.cfg.SystemPrompt,
		})
		if err != nil {
			cancel()
			src.Close()
			terr := &TransportSetupError{Cause: err}
			s.fail(e, terr, false)
			return terr
		}
	}

	s.mu.Lock()
	if s.epoch != e {
		// Stopped mid-connect; the stop already won.
		s.mu.Unlock()
		cancel()
		if rt != nil {
			rt.Close()
		}
		src.Close()
		return nil
	}
	s.source = src
	s.rt = rt
	s.ctx = sessCtx
	s.cancel = cancel
	s.buf = nil
	s.state = StateListening
	s.mu.Unlock()
	s.notifyState(StateListening)

	if rt != nil {
		go s.pumpCapture(sessCtx, src, rt)
		go s.consumeRealtime(e, rt)
	} else {
		go s.record(e, src)
		s.armTurns()
	}

	s.log.Info("session started", "transport", s.cfg.Transport.String(), "continuous", s.cfg.Continuous)
	return nil
}

// Stop deactivates the session from any state: the channel is closed, the
// microphone released, the silence timer cancelled, playback stopped, and
// the history cleared. Idempotent; replies from turns still in flight carry
// a stale epoch and are dropped on arrival.
func (s *Session) Stop() {
	s.mu.Lock()
	wasIdle := s.state == StateIdle
	s.epoch++
	src, rt, cancel := s.source, s.rt, s.cancel
	s.source, s.rt, s.ctx, s.cancel = nil, nil, nil, nil
	s.history = nil
	s.buf = nil
	s.inFlight = false
	s.state = StateIdle
	s.mu.Unlock()

	s.turns.Disarm()
	s.playback.Stop()
	if cancel != nil {
		cancel()
	}
	if rt != nil {
		rt.Close()
	}
	if src != nil {
		src.Close()
	}

	if !wasIdle {
		s.notifyState(StateIdle)
		s.log.Info("session stopped")
	}
}

// Toggle starts the session when idle and stops it otherwise.
func (s *Session) Toggle(ctx context.Context) error {
	if s.State() == StateIdle {
		return s.Start(ctx)
	}
	s.Stop()
	return nil
}

// SubmitUserTurn closes the current listening turn and runs the outbound
// chain. Valid only while listening in turn-based mode; any other call is
// ignored, including a second submit while one is already in flight. Both
// the silence timer and the explicit push-to-talk commit land here.
func (s *Session) SubmitUserTurn() {
	if s.cfg.Transport != TransportTurnBased {
		return
	}

	s.mu.Lock()
	if s.state != StateListening || s.inFlight {
		s.mu.Unlock()
		return
	}
	e := s.epoch
	ctx := s.ctx
	pcm := s.buf
	s.buf = nil
	s.inFlight = true
	s.state = StateThinking
	s.mu.Unlock()

	s.turns.Disarm()
	s.notifyState(StateThinking)

	go s.runTurn(ctx, e, pcm)
}

// ─── Turn-based pipeline ──────────────────────────────────────────────────────

// record consumes capture frames, converting to the speech format, tracking
// the input level, and accumulating the current turn's PCM while listening.
func (s *Session) record(e uint64, src audio.Source) {
	conv := audio.FormatConverter{Target: audio.FormatSpeech}
	for frame := range src.Frames() {
		out := conv.Convert(frame)
		if len(out.Data) == 0 {
			continue
		}

		level := audio.Level(out.Data)
		s.lastLevel.Store(int32(level))
		s.notifyLevel(level)

		s.mu.Lock()
		if s.epoch == e && s.state == StateListening {
			s.buf = append(s.buf, out.Data...)
		}
		s.mu.Unlock()
	}
}

// runTurn executes one transcribe, complete, synthesize chain under epoch e.
func (s *Session) runTurn(ctx context.Context, e uint64, pcm []byte) {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.col.STT.Transcribe(ctx, stt.Clip{
		PCM:        pcm,
		SampleRate: audio.FormatSpeech.SampleRate,
		Channels:   audio.FormatSpeech.Channels,
		Language:   s.cfg.Language,
	})
	if err != nil {
		s.fail(e, remoteError(err), true)
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		// No speech in the clip. Nothing to submit, no error to show.
		s.resumeListening(e)
		return
	}

	userEntry := types.HistoryEntry{Role: types.RoleUser, Content: text, Timestamp: time.Now()}
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history, userEntry)
	messages := historyToMessages(s.history)
	elapsed := time.Since(s.started)
	s.mu.Unlock()
	s.notifyTranscript(types.Transcript{Text: text, IsFinal: true, Role: types.RoleUser, Timestamp: elapsed})

	resp, err := s.col.Chat.Complete(ctx, chat.Request{
		Messages:     messages,
		SystemPrompt: s.cfg.SystemPrompt,
	})
	if err != nil {
		s.fail(e, remoteError(err), true)
		return
	}
	var reply string
	if resp != nil {
		reply = strings.TrimSpace(resp.Content)
	}
	if reply == "" {
		s.fail(e, remoteError(errors.New("empty completion")), true)
		return
	}

	s.onAssistantReply(ctx, e, reply)
}

// onAssistantReply appends the assistant entry, enters speaking, and hands
// the synthesized audio to the playback controller.
func (s *Session) onAssistantReply(ctx context.Context, e uint64, reply string) {
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history, types.HistoryEntry{Role: types.RoleAssistant, Content: reply, Timestamp: time.Now()})
	s.inFlight = false
	s.state = StateSpeaking
	elapsed := time.Since(s.started)
	s.mu.Unlock()

	s.notifyTranscript(types.Transcript{Text: reply, IsFinal: true, Role: types.RoleAssistant, Timestamp: elapsed})
	s.notifyState(StateSpeaking)

	chunks, err := s.col.TTS.Synthesize(ctx, reply, s.cfg.Voice)
	if err != nil {
		s.fail(e, remoteError(err), true)
		return
	}
	s.playback.Play(chunks, s.col.Output, func(err error) {
		s.onPlaybackEnd(e, err)
	})
}

// onPlaybackEnd handles the playback-end signal for the utterance started
// under epoch e. This signal, and nothing else, is what re-arms capture in
// continuous mode.
func (s *Session) onPlaybackEnd(e uint64, playErr error) {
	if playErr != nil {
		s.notifyError(&PlaybackFailedError{Cause: playErr})
		s.log.Warn("playback failed", "error", playErr)
	}

	s.mu.Lock()
	if s.epoch != e || s.state != StateSpeaking {
		s.mu.Unlock()
		return
	}

	if s.cfg.Continuous {
		s.buf = nil
		s.state = StateListening
		s.mu.Unlock()
		s.notifyState(StateListening)
		s.armTurns()
		return
	}

	// Single-shot turn done: release the microphone and settle idle. The
	// history survives until Stop.
	src, rt, cancel := s.source, s.rt, s.cancel
	s.source, s.rt, s.ctx, s.cancel = nil, nil, nil, nil
	s.state = StateIdle
	s.mu.Unlock()

	s.turns.Disarm()
	if cancel != nil {
		cancel()
	}
	if rt != nil {
		rt.Close()
	}
	if src != nil {
		src.Close()
	}
	s.notifyState(StateIdle)
}

// resumeListening returns a thinking session to listening without touching
// the history. Used when a clip transcribes to nothing.
func (s *Session) resumeListening(e uint64) {
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.inFlight = false
	changed := s.state == StateThinking
	if changed {
		s.state = StateListening
		s.buf = nil
	}
	s.mu.Unlock()

	if changed {
		s.notifyState(StateListening)
		s.armTurns()
	}
}

// ─── Realtime pipeline ────────────────────────────────────────────────────────

// pumpCapture forwards capture frames to the realtime channel. The vendor
// consumes the speech format.
func (s *Session) pumpCapture(ctx context.Context, src audio.Source, rt realtime.Session) {
	conv := audio.FormatConverter{Target: audio.FormatSpeech}
	for frame := range src.Frames() {
		if ctx.Err() != nil {
			return
		}
		out := conv.Convert(frame)
		if len(out.Data) == 0 {
			continue
		}

		level := audio.Level(out.Data)
		s.lastLevel.Store(int32(level))
		s.notifyLevel(level)

		if err := rt.SendAudio(out.Data); err != nil {
			s.log.Warn("realtime send failed", "error", err)
			return
		}
	}
}

// consumeRealtime dispatches the channel's audio, transcripts, and events.
// The vendor's own voice-activity detection closes turns and handles
// barge-in, so the session only mirrors what the channel reports.
func (s *Session) consumeRealtime(e uint64, rt realtime.Session) {
	audioCh := rt.Audio()
	transcripts := rt.Transcripts()
	events := rt.Events()

	for audioCh != nil || transcripts != nil || events != nil {
		select {
		case chunk, ok := <-audioCh:
			if !ok {
				audioCh = nil
				continue
			}
			s.transition(e, StateListening, StateSpeaking)
			if err := s.col.Output.Write(context.Background(), chunk); err != nil {
				s.notifyError(&PlaybackFailedError{Cause: err})
			}

		case t, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			s.appendRealtimeTranscript(e, t)

		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch evt.Type {
			case realtime.EventSpeechStarted:
				// Barge-in: the vendor cancels its response server-side;
				// mirror the transition locally.
				s.transition(e, StateSpeaking, StateListening)
			case realtime.EventResponseDone:
				if s.cfg.Continuous {
					s.transition(e, StateSpeaking, StateListening)
					continue
				}
				// Single-shot: the reply closes the conversation. Stop
				// brings the channel down, which ends this loop.
				s.Stop()
			}
		}
	}

	// Channel ended. A clean close after Stop is silent; anything else is
	// an unrecoverable mid-session failure.
	if err := rt.Err(); err != nil {
		s.fail(e, remoteError(err), true)
		return
	}
	s.mu.Lock()
	stale := s.epoch != e
	s.mu.Unlock()
	if !stale {
		s.Stop()
	}
}

// appendRealtimeTranscript records a finalized transcript from the channel.
func (s *Session) appendRealtimeTranscript(e uint64, t types.Transcript) {
	if !t.IsFinal || t.Text == "" {
		return
	}
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history, types.HistoryEntry{Role: t.Role, Content: t.Text, Timestamp: time.Now()})
	s.mu.Unlock()
	s.notifyTranscript(t)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

// fail surfaces err and tears the session down to idle, unless the epoch is
// stale (a newer start or a stop already superseded this turn). inTurn
// marks failures of an in-flight turn rather than of Start itself.
func (s *Session) fail(e uint64, err error, inTurn bool) {
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	src, rt, cancel := s.source, s.rt, s.cancel
	s.source, s.rt, s.ctx, s.cancel = nil, nil, nil, nil
	s.inFlight = false
	s.buf = nil
	wasIdle := s.state == StateIdle
	s.state = StateIdle
	s.mu.Unlock()

	s.turns.Disarm()
	if inTurn {
		s.playback.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if rt != nil {
		rt.Close()
	}
	if src != nil {
		src.Close()
	}

	s.notifyError(err)
	if !wasIdle {
		s.notifyState(StateIdle)
	}
	s.log.Warn("session error", "error", err)
}

// transition moves from one specific state to another under epoch e. Any
// mismatch makes it a no-op.
func (s *Session) transition(e uint64, from, to State) {
	s.mu.Lock()
	if s.epoch != e || s.state != from {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()
	s.notifyState(to)
}

// armTurns arms silence detection unless push-to-talk owns turn closing.
func (s *Session) armTurns() {
	if s.cfg.PushToTalk {
		return
	}
	s.lastLevel.Store(0)
	s.turns.Arm()
}

func (s *Session) notifyState(st State) {
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}

func (s *Session) notifyTranscript(t types.Transcript) {
	if s.hooks.OnTranscript != nil {
		s.hooks.OnTranscript(t)
	}
}

func (s *Session) notifyLevel(level int) {
	if s.hooks.OnLevel != nil {
		s.hooks.OnLevel(level)
	}
}

func (s *Session) notifyError(err error) {
	if s.hooks.OnError != nil {
		s.hooks.OnError(err)
	}
}

// historyToMessages projects the conversation history onto the completion
// request shape.
func historyToMessages(history []types.HistoryEntry) []chat.Message {
	out := make([]chat.Message, len(history))
	for i, h := range history {
		out[i] = chat.Message{Role: h.Role, Content: h.Content}
	}
	return out
}
