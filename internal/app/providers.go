package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/presidence-ga/iasted/internal/config"
	"github.com/presidence-ga/iasted/internal/gateway"
	"github.com/presidence-ga/iasted/pkg/provider/chat"
	"github.com/presidence-ga/iasted/pkg/provider/chat/anyllm"
	"github.com/presidence-ga/iasted/pkg/provider/chat/gemini"
	"github.com/presidence-ga/iasted/pkg/provider/embeddings"
	embopenai "github.com/presidence-ga/iasted/pkg/provider/embeddings/openai"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
	rtelevenlabs "github.com/presidence-ga/iasted/pkg/provider/realtime/elevenlabs"
	rtopenai "github.com/presidence-ga/iasted/pkg/provider/realtime/openai"
	"github.com/presidence-ga/iasted/pkg/provider/stt"
	sttopenai "github.com/presidence-ga/iasted/pkg/provider/stt/openai"
	"github.com/presidence-ga/iasted/pkg/provider/stt/whisper"
	"github.com/presidence-ga/iasted/pkg/provider/tts"
	ttselevenlabs "github.com/presidence-ga/iasted/pkg/provider/tts/elevenlabs"
)

// RegisterBuiltinProviders wires all shipped provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages. ctx is retained by factories whose
// vendor SDKs take a construction context.
func RegisterBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── Chat ──────────────────────────────────────────────────────────────────

	reg.RegisterChat("gemini", func(entry config.ProviderEntry) (chat.Provider, error) {
		return gemini.New(ctx, entry.APIKey, entry.Model)
	})

	// anyllm routes through any OpenAI-compatible backend; the concrete
	// vendor is selected via options.provider.
	reg.RegisterChat("anyllm", func(entry config.ProviderEntry) (chat.Provider, error) {
		providerName := optString(entry.Options, "provider")
		if providerName == "" {
			providerName = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(providerName, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttselevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, ttselevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, ttselevenlabs.WithOutputFormat(format))
		}
		return ttselevenlabs.New(entry.APIKey, opts...)
	})

	// ── Realtime ──────────────────────────────────────────────────────────────
	// Only OpenAI supports server-side realtime sessions. The ElevenLabs
	// integration hands signed URLs to the dashboard client instead; see
	// BuildTokenSource.

	reg.RegisterRealtime("openai", func(entry config.ProviderEntry) (realtime.Provider, error) {
		tokens, err := openaiTokenSource(entry)
		if err != nil {
			return nil, err
		}
		var opts []rtopenai.Option
		if entry.Model != "" {
			opts = append(opts, rtopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, rtopenai.WithBaseURL(entry.BaseURL))
		}
		return rtopenai.New(tokens, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []embopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, embopenai.WithBaseURL(entry.BaseURL))
		}
		return embopenai.New(entry.APIKey, entry.Model, opts...)
	})
}

// BuildProviders instantiates the speech providers named in cfg and returns
// them alongside the optional embeddings provider used by the transcript
// store. Provider names without a registered factory are skipped with a
// debug log, matching the registry's warn-at-validation behavior; factory
// failures are fatal.
func BuildProviders(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (gateway.Providers, embeddings.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var ps gateway.Providers

	if name := cfg.Providers.Chat.Name; name != "" {
		p, err := reg.CreateChat(cfg.Providers.Chat)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			logger.Debug("provider not registered, skipping", "kind", "chat", "name", name)
		case err != nil:
			return gateway.Providers{}, nil, fmt.Errorf("app: create chat provider %q: %w", name, err)
		default:
			ps.Chat = p
			logger.Info("provider created", "kind", "chat", "name", name)
		}
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			logger.Debug("provider not registered, skipping", "kind", "stt", "name", name)
		case err != nil:
			return gateway.Providers{}, nil, fmt.Errorf("app: create stt provider %q: %w", name, err)
		default:
			ps.STT = p
			logger.Info("provider created", "kind", "stt", "name", name)
		}
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			logger.Debug("provider not registered, skipping", "kind", "tts", "name", name)
		case err != nil:
			return gateway.Providers{}, nil, fmt.Errorf("app: create tts provider %q: %w", name, err)
		default:
			ps.TTS = p
			logger.Info("provider created", "kind", "tts", "name", name)
		}
	}

	if name := cfg.Providers.Realtime.Name; name != "" {
		p, err := reg.CreateRealtime(cfg.Providers.Realtime)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			logger.Debug("provider not registered, skipping", "kind", "realtime", "name", name)
		case err != nil:
			return gateway.Providers{}, nil, fmt.Errorf("app: create realtime provider %q: %w", name, err)
		default:
			ps.Realtime = p
			logger.Info("provider created", "kind", "realtime", "name", name)
		}
	}

	var embedder embeddings.Provider
	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			logger.Debug("provider not registered, skipping", "kind", "embeddings", "name", name)
		case err != nil:
			return gateway.Providers{}, nil, fmt.Errorf("app: create embeddings provider %q: %w", name, err)
		default:
			embedder = p
			logger.Info("provider created", "kind", "embeddings", "name", name)
		}
	}

	return ps, embedder, nil
}

// BuildTokenSource constructs the ephemeral-credential source served on the
// realtime token endpoint, based on the configured realtime provider.
// Returns nil when no realtime provider is configured.
func BuildTokenSource(cfg *config.Config) (realtime.TokenSource, error) {
	entry := cfg.Providers.Realtime
	switch entry.Name {
	case "":
		return nil, nil
	case "openai":
		return openaiTokenSource(entry)
	case "elevenlabs":
		agentID := optString(entry.Options, "agent_id")
		return rtelevenlabs.NewTokenSource(entry.APIKey, agentID)
	default:
		return nil, fmt.Errorf("app: no token source for realtime provider %q", entry.Name)
	}
}

// openaiTokenSource builds the OpenAI ephemeral-secret minter from a
// provider entry.
func openaiTokenSource(entry config.ProviderEntry) (*rtopenai.TokenSource, error) {
	var opts []rtopenai.TokenOption
	if entry.Model != "" {
		opts = append(opts, rtopenai.WithTokenModel(entry.Model))
	}
	if voice := optString(entry.Options, "voice"); voice != "" {
		opts = append(opts, rtopenai.WithTokenVoice(voice))
	}
	if endpoint := optString(entry.Options, "token_endpoint"); endpoint != "" {
		opts = append(opts, rtopenai.WithTokenEndpoint(endpoint))
	}
	return rtopenai.NewTokenSource(entry.APIKey, opts...)
}

// optString extracts a string value from a provider Options map. Returns ""
// if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
