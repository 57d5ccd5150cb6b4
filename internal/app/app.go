// Package app wires all iAsted subsystems into a running server.
//
// The App struct owns the full lifecycle: New connects telemetry, providers,
// the transcript store, and the WebSocket gateway; Run serves HTTP until the
// context is cancelled; Shutdown tears everything down in reverse order.
//
// For testing, inject doubles via functional options (WithProviders,
// WithStore, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/presidence-ga/iasted/internal/config"
	"github.com/presidence-ga/iasted/internal/gateway"
	"github.com/presidence-ga/iasted/internal/health"
	"github.com/presidence-ga/iasted/internal/observe"
	"github.com/presidence-ga/iasted/internal/resilience"
	"github.com/presidence-ga/iasted/internal/transcriptstore"
	"github.com/presidence-ga/iasted/internal/voicesession"
	"github.com/presidence-ga/iasted/pkg/provider/embeddings"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	"github.com/presidence-ga/iasted/pkg/types"
)

// shutdownGrace is how long each HTTP server gets to drain on stop.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes for the iAsted server.
type App struct {
	cfg   *config.Config
	log   *slog.Logger
	level *slog.LevelVar

	gw      *gateway.Server
	tokens  realtime.TokenSource
	watcher *config.Watcher

	providers    gateway.Providers
	providersSet bool
	store        transcriptstore.Store
	storeSet     bool

	configPath string

	// closers are called in reverse order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the application logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.log = logger
		}
	}
}

// WithLogLevelVar hands the App the level variable backing the process
// logger so config reloads can retune verbosity.
func WithLogLevelVar(level *slog.LevelVar) Option {
	return func(a *App) { a.level = level }
}

// WithProviders injects speech providers instead of building them from the
// config registry.
func WithProviders(ps gateway.Providers) Option {
	return func(a *App) {
		a.providers = ps
		a.providersSet = true
	}
}

// WithStore injects a transcript store instead of creating one from config.
// A nil store disables persistence.
func WithStore(s transcriptstore.Store) Option {
	return func(a *App) {
		a.store = s
		a.storeSet = true
	}
}

// WithTokenSource injects the credential source served on the realtime token
// endpoint.
func WithTokenSource(ts realtime.TokenSource) Option {
	return func(a *App) { a.tokens = ts }
}

// WithConfigReload enables hot reload: path is polled for changes and safe
// settings (log level, assistant persona, voice, turn taking) are applied to
// the running server. Provider and address changes still need a restart.
func WithConfigReload(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Initialisation is
// synchronous: telemetry first, then providers, the transcript store, and
// the gateway.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg: cfg,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.closers = append(a.closers, otelShutdown)
	metrics := observe.DefaultMetrics()

	// ── 2. Providers ─────────────────────────────────────────────────────
	var embedder embeddings.Provider
	if !a.providersSet {
		reg := config.NewRegistry()
		RegisterBuiltinProviders(ctx, reg)

		ps, emb, err := BuildProviders(cfg, reg, a.log)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.providers = guardProviders(ps)
		embedder = emb
	}

	// ── 3. Transcript store ──────────────────────────────────────────────
	if !a.storeSet {
		store, err := buildStore(ctx, cfg.Transcripts, embedder)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("app: init transcript store: %w", err)
		}
		a.store = store
	}
	if a.store != nil {
		store := a.store
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
	}

	// ── 4. Realtime token endpoint ───────────────────────────────────────
	if a.tokens == nil {
		ts, err := BuildTokenSource(cfg)
		if err != nil {
			a.log.Warn("realtime token endpoint disabled", "error", err)
		} else {
			a.tokens = ts
		}
	}

	// ── 5. Gateway ───────────────────────────────────────────────────────
	a.gw = gateway.NewServer(a.providers,
		gateway.WithLogger(a.log),
		gateway.WithRecorder(transcriptstore.NewRecorder(a.store, a.log)),
		gateway.WithMetrics(metrics),
		gateway.WithVoice(voiceProfile(cfg.Assistant)),
		gateway.WithSystemPrompt(cfg.Assistant.SystemPrompt),
		gateway.WithTurnTaking(turnTaking(cfg.Assistant.TurnTaking)),
		gateway.WithOriginPatterns(cfg.Server.AllowedOrigins),
	)

	// ── 6. Config hot reload ─────────────────────────────────────────────
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyReload)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
		a.closers = append(a.closers, func(context.Context) error {
			w.Stop()
			return nil
		})
	}

	return a, nil
}

// guardProviders puts a circuit breaker in front of each configured remote
// provider. An open breaker fails the call fast; nothing retries.
func guardProviders(ps gateway.Providers) gateway.Providers {
	if ps.Chat != nil {
		ps.Chat = resilience.NewChatBreaker(ps.Chat, resilience.CircuitBreakerConfig{})
	}
	if ps.STT != nil {
		ps.STT = resilience.NewSTTBreaker(ps.STT, resilience.CircuitBreakerConfig{})
	}
	if ps.TTS != nil {
		ps.TTS = resilience.NewTTSBreaker(ps.TTS, resilience.CircuitBreakerConfig{})
	}
	if ps.Realtime != nil {
		ps.Realtime = resilience.NewRealtimeBreaker(ps.Realtime, resilience.CircuitBreakerConfig{})
	}
	return ps
}

// buildStore creates the transcript store for the configured backend. An
// empty backend disables persistence.
func buildStore(ctx context.Context, cfg config.TranscriptsConfig, embedder embeddings.Provider) (transcriptstore.Store, error) {
	switch cfg.Backend {
	case config.TranscriptsDisabled:
		return nil, nil
	case config.TranscriptsPostgres:
		return transcriptstore.NewPostgresStore(ctx, cfg.PostgresDSN, embedder)
	case config.TranscriptsSupabase:
		return transcriptstore.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled, then drains the servers. Three
// listeners can run: the gateway on listen_addr, health probes on
// health_addr, and the Prometheus scrape endpoint on metrics_addr.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	var servers []*http.Server

	// ── Gateway ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	// The WebSocket endpoint stays outside the tracing middleware: the
	// upgrade needs the raw ResponseWriter for connection hijacking.
	mux.Handle("/ws", a.gw)
	if a.tokens != nil {
		mux.Handle("/v1/realtime/token",
			observe.Middleware(observe.DefaultMetrics())(gateway.TokenHandler(a.tokens, a.log)))
	}
	main := &http.Server{Addr: a.cfg.Server.ListenAddr, Handler: mux}
	servers = append(servers, main)

	tlsCfg := a.cfg.Server.TLS
	g.Go(func() error {
		a.log.Info("gateway listening", "addr", main.Addr, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = main.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = main.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: gateway server: %w", err)
	})

	// ── Health ───────────────────────────────────────────────────────────
	if addr := a.cfg.Server.HealthAddr; addr != "" {
		healthMux := http.NewServeMux()
		health.New().Register(healthMux)
		srv := &http.Server{Addr: addr, Handler: healthMux}
		servers = append(servers, srv)
		g.Go(func() error {
			a.log.Info("health endpoints listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: health server: %w", err)
			}
			return nil
		})
	}

	// ── Metrics ──────────────────────────────────────────────────────────
	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: metricsMux}
		servers = append(servers, srv)
		g.Go(func() error {
			a.log.Info("metrics endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics server: %w", err)
			}
			return nil
		})
	}

	// Drain all listeners once the context ends, for whatever reason.
	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(drainCtx); err != nil {
				a.log.Warn("server drain error", "addr", srv.Addr, "error", err)
			}
		}
		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. Safe to call
// more than once; only the first call does work.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		err = a.close(ctx)
		a.log.Info("shutdown complete")
	})
	return err
}

// close runs the accumulated closers in reverse order and joins their
// errors. Used by Shutdown and by New's failure paths.
func (a *App) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// applyReload applies the safely-reloadable parts of a config change to the
// running server. Called by the config watcher.
func (a *App) applyReload(old, new *config.Config) {
	diff := config.Diff(old, new)

	if diff.LogLevelChanged {
		if a.level != nil {
			a.level.Set(slogLevel(new.Server.LogLevel))
			a.log.Info("log level changed", "level", new.Server.LogLevel)
		} else {
			a.log.Warn("log level changed in config but the logger is not reloadable")
		}
	}

	if diff.AssistantChanged {
		a.gw.SetAssistant(
			voiceProfile(new.Assistant),
			new.Assistant.SystemPrompt,
			turnTaking(new.Assistant.TurnTaking),
		)
		a.log.Info("assistant settings reloaded",
			"system_prompt_changed", diff.SystemPromptChanged,
			"language_changed", diff.LanguageChanged,
			"voice_changed", diff.VoiceChanged,
			"turn_taking_changed", diff.TurnTakingChanged,
		)
	}

	a.cfg = new
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// voiceProfile converts the assistant config to the shared voice profile.
func voiceProfile(ac config.AssistantConfig) types.VoiceProfile {
	return types.VoiceProfile{
		VoiceID:         ac.Voice.VoiceID,
		Language:        ac.Language,
		Stability:       ac.Voice.Stability,
		SimilarityBoost: ac.Voice.SimilarityBoost,
	}
}

// turnTaking converts millisecond config knobs to the session durations.
// Zero values fall through to the session defaults.
func turnTaking(tc config.TurnTakingConfig) voicesession.TurnTakingConfig {
	return voicesession.TurnTakingConfig{
		SampleInterval:   time.Duration(tc.SampleIntervalMs) * time.Millisecond,
		SilenceWindow:    time.Duration(tc.SilenceWindowMs) * time.Millisecond,
		SilenceThreshold: tc.SilenceThreshold,
	}
}

// slogLevel maps the config log level onto slog.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
