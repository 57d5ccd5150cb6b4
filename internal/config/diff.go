package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// (addresses, providers, transcript backends) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssistantChanged is true when any assistant default changed.
	AssistantChanged    bool
	SystemPromptChanged bool
	LanguageChanged     bool
	VoiceChanged        bool
	TurnTakingChanged   bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Assistant.SystemPrompt != new.Assistant.SystemPrompt {
		d.SystemPromptChanged = true
	}
	if old.Assistant.Language != new.Assistant.Language {
		d.LanguageChanged = true
	}
	if old.Assistant.Voice != new.Assistant.Voice {
		d.VoiceChanged = true
	}
	if old.Assistant.TurnTaking != new.Assistant.TurnTaking {
		d.TurnTakingChanged = true
	}
	d.AssistantChanged = d.SystemPromptChanged || d.LanguageChanged || d.VoiceChanged || d.TurnTakingChanged

	return d
}
