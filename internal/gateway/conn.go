package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/presidence-ga/iasted/internal/intent"
	"github.com/presidence-ga/iasted/internal/transcriptstore"
	"github.com/presidence-ga/iasted/internal/voicesession"
	"github.com/presidence-ga/iasted/pkg/audio"
	"github.com/presidence-ga/iasted/pkg/types"
)

const (
	// realtimePCMRate is the sample rate of the PCM16 the realtime vendor
	// streams back; the turn-based synthesis path produces speech-format
	// audio instead.
	realtimePCMRate = 24000

	writeTimeout  = 10 * time.Second
	startTimeout  = 30 * time.Second
	intentTimeout = 10 * time.Second
	levelInterval = 100 * time.Millisecond
)

// conn is one connected browser client. It owns the WebSocket, the Opus
// codec state, and at most one live voice session. The connection itself is
// the session's microphone (Capture) while an opusSink is its speaker.
type conn struct {
	ws  *websocket.Conn
	srv *Server
	log *slog.Logger

	writeMu sync.Mutex

	decoder  *audio.OpusDecoder
	captured time.Duration

	lastLevelAt atomic.Int64

	mu        sync.Mutex
	source    *connSource
	session   *voicesession.Session
	sessionID string
	voiceID   string
	language  string
}

// Compile-time check: the connection backs the session's capture side.
var _ voicesession.Capture = (*conn)(nil)

// run consumes inbound messages until the client disconnects.
func (c *conn) run(ctx context.Context) {
	defer c.teardown()

	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}
		switch typ {
		case websocket.MessageBinary:
			c.handleAudio(data)
		case websocket.MessageText:
			c.handleControl(data)
		}
	}
}

// teardown stops any live session when the client goes away.
func (c *conn) teardown() {
	c.mu.Lock()
	sess, sid := c.session, c.sessionID
	c.session, c.sessionID = nil, ""
	c.mu.Unlock()

	if sess != nil {
		sess.Stop()
	}
	if sid != "" {
		c.srv.recorder.EndSession(context.Background(), sid)
	}
	c.log.Debug("client disconnected")
}

// ─── Inbound audio ────────────────────────────────────────────────────────────

// handleAudio decodes one Opus packet and feeds it to the active capture
// source. Audio arriving with no session, or faster than the session drains
// it, is dropped.
func (c *conn) handleAudio(packet []byte) {
	if c.decoder == nil {
		dec, err := audio.NewOpusDecoder()
		if err != nil {
			c.log.Warn("opus decoder init failed", "error", err)
			return
		}
		c.decoder = dec
	}

	pcm, err := c.decoder.Decode(packet)
	if err != nil {
		c.log.Warn("opus decode failed", "error", err)
		return
	}

	frame := types.AudioFrame{
		Data:       pcm,
		SampleRate: audio.OpusSampleRate,
		Channels:   audio.OpusChannels,
		Timestamp:  c.captured,
	}
	c.captured += frame.Duration()

	c.mu.Lock()
	src := c.source
	if src != nil && !src.closed {
		select {
		case src.frames <- frame:
		default:
			// Consumer is behind; dropping beats blocking the read loop.
		}
	}
	c.mu.Unlock()
}

// ─── Control events ───────────────────────────────────────────────────────────

// handleControl dispatches one JSON control event. Unknown event types and
// malformed payloads are ignored.
func (c *conn) handleControl(data []byte) {
	var evt clientEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.log.Debug("ignoring malformed control event", "error", err)
		return
	}

	switch evt.Type {
	case "session.start":
		c.startSession(evt)
	case "session.stop":
		c.stopSession()
	case "turn.commit":
		c.mu.Lock()
		sess := c.session
		c.mu.Unlock()
		if sess != nil {
			sess.SubmitUserTurn()
		}
	case "settings":
		c.mu.Lock()
		if evt.VoiceID != "" {
			c.voiceID = evt.VoiceID
		}
		if evt.Language != "" {
			c.language = evt.Language
		}
		c.mu.Unlock()
	default:
		c.log.Debug("ignoring unknown control event", "type", evt.Type)
	}
}

// startSession builds and starts a fresh voice session for this client.
// Settings applied earlier override the server defaults; a new session never
// reuses the previous one's credentials or channel.
func (c *conn) startSession(evt clientEvent) {
	mode, rate, err := transportFor(evt.Transport)
	if err != nil {
		c.sendError("bad_request", err.Error())
		return
	}

	c.mu.Lock()
	if c.session != nil && c.session.State() != voicesession.StateIdle {
		c.mu.Unlock()
		c.sendError("session_active", "a session is already running")
		return
	}
	voice, prompt, turnTaking := c.srv.assistant()
	if c.voiceID != "" {
		voice.VoiceID = c.voiceID
	}
	language := voice.Language
	if c.language != "" {
		language = c.language
	}
	voice.Language = language
	c.mu.Unlock()

	enc, err := audio.NewOpusEncoder()
	if err != nil {
		c.sendError("error", fmt.Sprintf("opus encoder init failed: %v", err))
		return
	}

	role := evt.Role
	if role == "" {
		role = "president"
	}
	sid := newSessionID()

	// Intent analysis rides on the chat collaborator; without one, turns are
	// plain conversation and no intent events go out.
	var classifier *intent.Classifier
	if c.srv.providers.Chat != nil {
		classifier, err = intent.NewClassifier(c.srv.providers.Chat, intent.SectionsForRole(role), c.log)
		if err != nil {
			c.sendError("error", err.Error())
			return
		}
	}

	var sess *voicesession.Session
	sess, err = voicesession.New(
		voicesession.Config{
			Transport:    mode,
			Continuous:   evt.Continuous,
			PushToTalk:   evt.PushToTalk,
			Voice:        voice,
			SystemPrompt: prompt,
			Language:     language,
			TurnTaking:   turnTaking,
			Logger:       c.log,
		},
		voicesession.Collaborators{
			Capture:  c,
			Output:   &opusSink{c: c, enc: enc, inRate: rate},
			STT:      c.srv.providers.STT,
			Chat:     c.srv.providers.Chat,
			TTS:      c.srv.providers.TTS,
			Realtime: c.srv.providers.Realtime,
		},
		voicesession.Hooks{
			OnState: func(st voicesession.State) {
				c.sendJSON(serverEvent{Type: "state", State: st.String()})
			},
			OnTranscript: func(t types.Transcript) {
				c.srv.recorder.WriteTurn(context.Background(), transcriptstore.Turn{
					SessionID: sid,
					Role:      t.Role,
					Content:   t.Text,
					Timestamp: time.Now(),
				})
				c.sendJSON(serverEvent{Type: "transcript", Role: string(t.Role), Text: t.Text, Final: t.IsFinal})
				if classifier != nil && t.Role == types.RoleUser && t.IsFinal && t.Text != "" {
					go c.analyzeIntent(classifier, t.Text, sess.History())
				}
			},
			OnLevel: c.sendLevel,
			OnError: func(err error) {
				c.sendError(errorKind(err), err.Error())
			},
		},
	)
	if err != nil {
		c.sendError("bad_request", err.Error())
		return
	}

	c.mu.Lock()
	c.session = sess
	c.sessionID = sid
	c.mu.Unlock()

	c.srv.recorder.BeginSession(context.Background(), sid, role)

	// Start blocks on capture acquisition and channel setup; run it off the
	// read loop so inbound audio keeps flowing. Failures inside Start are
	// already surfaced through the error hook.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		if err := sess.Start(ctx); errors.Is(err, voicesession.ErrSessionActive) {
			c.sendError("session_active", err.Error())
		}
	}()
}

// analyzeIntent classifies a completed user turn and reports the verdict to
// the dashboard. Plain conversation produces no event; the reply audio
// already covers it.
func (c *conn) analyzeIntent(classifier *intent.Classifier, text string, history []types.HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()

	verdict := classifier.Classify(ctx, text, history)
	if c.srv.metrics != nil {
		c.srv.metrics.RecordIntent(ctx, string(verdict.Action))
	}
	if verdict.Action == types.IntentConverse {
		return
	}
	c.sendJSON(serverEvent{
		Type:   "intent",
		Action: string(verdict.Action),
		Target: verdict.Target,
		Reply:  verdict.Reply,
	})
}

// stopSession ends the live session, if any.
func (c *conn) stopSession() {
	c.mu.Lock()
	sess, sid := c.session, c.sessionID
	c.sessionID = ""
	c.mu.Unlock()

	if sess != nil {
		sess.Stop()
	}
	if sid != "" {
		c.srv.recorder.EndSession(context.Background(), sid)
	}
}

// transportFor maps the wire transport name to a mode and the sample rate of
// the PCM that mode plays back.
func transportFor(name string) (voicesession.TransportMode, int, error) {
	switch name {
	case "realtime":
		return voicesession.TransportRealtime, realtimePCMRate, nil
	case "", "turn-based":
		return voicesession.TransportTurnBased, audio.FormatSpeech.SampleRate, nil
	default:
		return 0, 0, fmt.Errorf("unknown transport %q", name)
	}
}

// ─── Capture source ───────────────────────────────────────────────────────────

// connSource adapts the connection's inbound audio to [audio.Source]. One
// source is live at a time; Close detaches it so a later session acquires a
// fresh stream.
type connSource struct {
	conn   *conn
	frames chan types.AudioFrame
	closed bool // guarded by conn.mu
}

// Acquire implements [voicesession.Capture].
func (c *conn) Acquire(_ context.Context) (audio.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != nil && !c.source.closed {
		return nil, errors.New("gateway: capture already in use")
	}
	src := &connSource{conn: c, frames: make(chan types.AudioFrame, 32)}
	c.source = src
	return src, nil
}

// Frames implements [audio.Source].
func (s *connSource) Frames() <-chan types.AudioFrame {
	return s.frames
}

// Close implements [audio.Source]. Idempotent.
func (s *connSource) Close() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn.source == s {
		s.conn.source = nil
	}
	close(s.frames)
	return nil
}

// ─── Playback sink ────────────────────────────────────────────────────────────

// opusSink carries synthesized mono PCM back to the client as 48 kHz stereo
// Opus packets. Chunks of arbitrary size are reframed to the fixed Opus
// frame size; a sub-frame tail is held for the next write.
type opusSink struct {
	c      *conn
	enc    *audio.OpusEncoder
	inRate int

	mu   sync.Mutex
	rest []byte
}

var _ voicesession.Sink = (*opusSink)(nil)

// Write implements [voicesession.Sink].
func (k *opusSink) Write(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	pcm := audio.ResampleMono16(chunk, k.inRate, audio.OpusSampleRate)
	k.rest = append(k.rest, audio.MonoToStereo(pcm)...)

	frameBytes := audio.OpusFrameSize * audio.OpusChannels * 2
	frames, rest := splitFrames(k.rest, frameBytes)
	k.rest = append([]byte(nil), rest...)

	for _, f := range frames {
		packet, err := k.enc.Encode(f)
		if err != nil {
			return fmt.Errorf("gateway: encode playback frame: %w", err)
		}
		if err := k.c.sendBinary(ctx, packet); err != nil {
			return fmt.Errorf("gateway: send playback frame: %w", err)
		}
	}
	return nil
}

// ─── Outbound messages ────────────────────────────────────────────────────────

// sendJSON writes one server event. Send failures are logged and dropped;
// the read loop notices the dead socket and tears the connection down.
func (c *conn) sendJSON(evt serverEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		c.log.Warn("marshal server event failed", "type", evt.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		c.log.Debug("server event write failed", "type", evt.Type, "error", err)
	}
}

func (c *conn) sendBinary(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageBinary, data)
}

func (c *conn) sendError(kind, message string) {
	if c.srv.metrics != nil {
		c.srv.metrics.RecordSessionError(context.Background(), kind)
	}
	c.sendJSON(serverEvent{Type: "error", Kind: kind, Message: message})
}

// sendLevel forwards the input level, throttled so a 20 ms frame cadence
// does not flood the socket.
func (c *conn) sendLevel(level int) {
	now := time.Now().UnixNano()
	last := c.lastLevelAt.Load()
	if now-last < int64(levelInterval) {
		return
	}
	if !c.lastLevelAt.CompareAndSwap(last, now) {
		return
	}
	c.sendJSON(serverEvent{Type: "level", Level: level})
}

// newSessionID returns a random 128-bit hex identifier.
func newSessionID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
