package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"chat":       {"gemini", "anyllm"},
	"stt":        {"openai", "whisper"},
	"tts":        {"elevenlabs"},
	"realtime":   {"openai", "elevenlabs"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// ${ENV_VAR} references are expanded before decoding, so secrets stay out of
// the file. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envRef matches ${VAR} references. Bare $VAR is left alone so YAML content
// containing dollar signs survives unharmed.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment variable's
// value. Unset variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(ref[2 : len(ref)-1])
		return []byte(os.Getenv(name))
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("chat", cfg.Providers.Chat.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("realtime", cfg.Providers.Realtime.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Transport availability warnings. Neither transport being usable is
	// still a valid config for smoke-testing the gateway alone.
	turnBased := cfg.Providers.Chat.Name != "" && cfg.Providers.STT.Name != "" && cfg.Providers.TTS.Name != ""
	if !turnBased && cfg.Providers.Realtime.Name == "" {
		slog.Warn("no usable transport configured; sessions cannot start",
			"hint", "configure providers.realtime or all of providers.{chat,stt,tts}")
	}

	// Assistant
	v := cfg.Assistant.Voice
	if v.Stability < 0 || v.Stability > 1 {
		errs = append(errs, fmt.Errorf("assistant.voice.stability %.2f is out of range [0, 1]", v.Stability))
	}
	if v.SimilarityBoost < 0 || v.SimilarityBoost > 1 {
		errs = append(errs, fmt.Errorf("assistant.voice.similarity_boost %.2f is out of range [0, 1]", v.SimilarityBoost))
	}

	tt := cfg.Assistant.TurnTaking
	if tt.SilenceWindowMs < 0 {
		errs = append(errs, fmt.Errorf("assistant.turn_taking.silence_window_ms %d must not be negative", tt.SilenceWindowMs))
	}
	if tt.SampleIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("assistant.turn_taking.sample_interval_ms %d must not be negative", tt.SampleIntervalMs))
	}
	if tt.SilenceThreshold < 0 || tt.SilenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("assistant.turn_taking.silence_threshold %d is out of range [0, 100]", tt.SilenceThreshold))
	}
	if tt.SilenceWindowMs > 0 && tt.SampleIntervalMs > tt.SilenceWindowMs {
		errs = append(errs, fmt.Errorf("assistant.turn_taking.sample_interval_ms %d exceeds silence_window_ms %d", tt.SampleIntervalMs, tt.SilenceWindowMs))
	}

	// Transcripts
	tr := cfg.Transcripts
	if !tr.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("transcripts.backend %q is invalid; valid values: postgres, supabase, or empty to disable", tr.Backend))
	}
	if tr.Backend == TranscriptsPostgres && tr.PostgresDSN == "" {
		errs = append(errs, errors.New("transcripts.postgres_dsn is required when transcripts.backend is postgres"))
	}
	if tr.Backend == TranscriptsSupabase && (tr.SupabaseURL == "" || tr.SupabaseKey == "") {
		errs = append(errs, errors.New("transcripts.supabase_url and transcripts.supabase_key are required when transcripts.backend is supabase"))
	}
	if tr.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("transcripts.embedding_dimensions %d must not be negative", tr.EmbeddingDimensions))
	}
	if tr.Backend == TranscriptsPostgres && cfg.Providers.Embeddings.Name != "" && tr.EmbeddingDimensions == 0 {
		slog.Warn("providers.embeddings is configured but transcripts.embedding_dimensions is not set; defaulting to 1536")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
