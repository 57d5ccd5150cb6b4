// Package gateway exposes the voice assistant to browser clients over a
// WebSocket. Each connection carries JSON control events (session.start,
// session.stop, turn.commit, settings) and binary Opus audio frames inbound,
// and state, transcript, level, and error events plus binary Opus playback
// outbound. One voice session lives per connection; unknown inbound event
// types are no-ops so clients and servers can evolve independently.
package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/presidence-ga/iasted/internal/observe"
	"github.com/presidence-ga/iasted/internal/transcriptstore"
	"github.com/presidence-ga/iasted/internal/voicesession"
	"github.com/presidence-ga/iasted/pkg/provider/chat"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	"github.com/presidence-ga/iasted/pkg/provider/stt"
	"github.com/presidence-ga/iasted/pkg/provider/tts"
	"github.com/presidence-ga/iasted/pkg/types"
)

// Providers are the remote speech services sessions are wired to. A nil
// provider disables the transport modes that need it; the session wiring
// check rejects a start that requires a missing provider.
type Providers struct {
	STT      stt.Provider
	Chat     chat.Provider
	TTS      tts.Provider
	Realtime realtime.Provider
}

// Server upgrades HTTP requests to WebSocket clients. Safe for concurrent
// use; each connection runs independently.
type Server struct {
	providers      Providers
	log            *slog.Logger
	recorder       *transcriptstore.Recorder
	metrics        *observe.Metrics
	originPatterns []string

	// mu guards the assistant settings, which can be swapped at runtime by
	// a config reload. Running sessions keep the settings they started with.
	mu           sync.RWMutex
	voice        types.VoiceProfile
	systemPrompt string
	turnTaking   voicesession.TurnTakingConfig
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithRecorder enables best-effort transcript persistence. A nil recorder is
// valid and records nothing.
func WithRecorder(rec *transcriptstore.Recorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// WithVoice sets the default synthesis voice. Clients override the voice id
// and language through the settings event.
func WithVoice(voice types.VoiceProfile) Option {
	return func(s *Server) { s.voice = voice }
}

// WithSystemPrompt sets the assistant instruction for every session.
func WithSystemPrompt(prompt string) Option {
	return func(s *Server) { s.systemPrompt = prompt }
}

// WithTurnTaking tunes silence detection for turn-based sessions.
func WithTurnTaking(cfg voicesession.TurnTakingConfig) Option {
	return func(s *Server) { s.turnTaking = cfg }
}

// WithMetrics enables connection and error counting. A nil metrics value
// records nothing.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns restricts the Origin headers accepted on upgrade.
func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// NewServer creates a gateway over the given providers.
func NewServer(providers Providers, opts ...Option) *Server {
	s := &Server{
		providers: providers,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "gateway")
	return s
}

// SetAssistant replaces the default voice, system prompt, and turn-taking
// tuning. New sessions pick up the new settings; running ones are untouched.
func (s *Server) SetAssistant(voice types.VoiceProfile, prompt string, turnTaking voicesession.TurnTakingConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = voice
	s.systemPrompt = prompt
	s.turnTaking = turnTaking
}

// assistant returns a consistent snapshot of the assistant settings.
func (s *Server) assistant() (types.VoiceProfile, string, voicesession.TurnTakingConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice, s.systemPrompt, s.turnTaking
}

// ServeHTTP implements http.Handler. It upgrades the request and serves the
// client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.log.Debug("client connected", "remote", r.RemoteAddr)
	if s.metrics != nil {
		s.metrics.ConnectedClients.Add(r.Context(), 1)
		defer s.metrics.ConnectedClients.Add(r.Context(), -1)
	}
	c := &conn{
		ws:  ws,
		srv: s,
		log: s.log.With("remote", r.RemoteAddr),
	}
	c.run(r.Context())
	ws.Close(websocket.StatusNormalClosure, "")
}
