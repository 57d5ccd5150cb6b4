package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/presidence-ga/iasted/internal/config"
)

const watcherBaseYAML = `
server:
  log_level: info
providers:
  chat:
    name: gemini
  stt:
    name: openai
  tts:
    name: elevenlabs
assistant:
  system_prompt: Tu es iAsted.
  language: fr
  turn_taking:
    silence_window_ms: 2000
`

// watcherRetunedYAML is the operator's typical live edit: louder logging and
// a retuned assistant, with the provider set untouched.
const watcherRetunedYAML = `
server:
  log_level: debug
providers:
  chat:
    name: gemini
  stt:
    name: openai
  tts:
    name: elevenlabs
assistant:
  system_prompt: Tu es iAsted, assistant de la Présidence.
  language: fr
  turn_taking:
    silence_window_ms: 1500
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// startWatcher writes the base config and begins watching it with a fast
// poll interval.
func startWatcher(t *testing.T, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherBaseYAML)

	w, err := config.NewWatcher(cfgPath, onChange, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, cfgPath
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Assistant.TurnTaking.SilenceWindowMs != 2000 {
		t.Errorf("silence window: got %d, want 2000", cfg.Assistant.TurnTaking.SilenceWindowMs)
	}
}

func TestWatcher_LiveEditReachesReloadDiff(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotDiff config.ConfigDiff
	called := make(chan struct{}, 1)

	w, cfgPath := startWatcher(t, func(old, new *config.Config) {
		mu.Lock()
		gotDiff = config.Diff(old, new)
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	})

	// Give the initial poll a moment, then apply the operator's edit.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherRetunedYAML)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	mu.Lock()
	defer mu.Unlock()

	// The diff carries exactly what the app hot-applies: the new log level
	// and the retuned assistant.
	if !gotDiff.LogLevelChanged || gotDiff.NewLogLevel != config.LogDebug {
		t.Errorf("diff log level = %+v, want change to debug", gotDiff)
	}
	if !gotDiff.AssistantChanged {
		t.Error("diff should report the assistant change")
	}
	if !gotDiff.SystemPromptChanged {
		t.Error("diff should report the system prompt change")
	}
	if !gotDiff.TurnTakingChanged {
		t.Error("diff should report the turn-taking change")
	}

	cur := w.Current()
	if cur.Assistant.TurnTaking.SilenceWindowMs != 1500 {
		t.Errorf("Current() silence window = %d, want 1500", cur.Assistant.TurnTaking.SilenceWindowMs)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()

	callCount := 0
	var mu sync.Mutex

	w, cfgPath := startWatcher(t, func(old, new *config.Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherInvalidYAML)

	// Wait enough polls for it to notice the change.
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	calls := callCount
	mu.Unlock()

	if calls != 0 {
		t.Errorf("callback should not be called for invalid config, got %d calls", calls)
	}

	// A live session keeps running on the last good settings.
	cur := w.Current()
	if cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() should still have old config, got log_level=%q", cur.Server.LogLevel)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, nil)

	w.Stop()
	w.Stop()
	w.Stop()
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()

	callCount := 0
	var mu sync.Mutex

	_, cfgPath := startWatcher(t, func(old, new *config.Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})

	// Touch the file (update mtime) without changing content.
	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(cfgPath, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	calls := callCount
	mu.Unlock()

	if calls != 0 {
		t.Errorf("callback should not fire for touch-only, got %d calls", calls)
	}
}
