package voicesession

import (
	"sync"
	"time"
)

// Turn-taking defaults, matching the dashboard's silence detection tuning.
const (
	DefaultSampleInterval   = 100 * time.Millisecond
	DefaultSilenceWindow    = 2000 * time.Millisecond
	DefaultSilenceThreshold = 10
)

// TurnTakingConfig tunes the silence-based auto-submit behavior.
type TurnTakingConfig struct {
	// SampleInterval is how often the input level is sampled.
	SampleInterval time.Duration

	// SilenceWindow is how long the level must stay at or below the
	// threshold before the turn is closed automatically.
	SilenceWindow time.Duration

	// SilenceThreshold is the 0-100 level at or below which input counts
	// as silence.
	SilenceThreshold int
}

func (c TurnTakingConfig) withDefaults() TurnTakingConfig {
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = DefaultSilenceWindow
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	return c
}

// turnTaker decides when a listening turn closes. It samples the input
// level at a fixed interval; once the level has stayed at or below the
// threshold for the full silence window it fires submit exactly once.
// Renewed energy above the threshold resets the accumulated silence, so a
// pause mid-sentence never closes the turn early.
//
// Push-to-talk sessions never arm this controller; the explicit commit is
// the sole trigger there.
type turnTaker struct {
	cfg    TurnTakingConfig
	level  func() int
	submit func()

	mu     sync.Mutex
	cancel chan struct{}
}

func newTurnTaker(cfg TurnTakingConfig, level func() int, submit func()) *turnTaker {
	return &turnTaker{cfg: cfg.withDefaults(), level: level, submit: submit}
}

// Arm starts silence monitoring. A second Arm while already armed restarts
// the watch from zero accumulated silence.
func (t *turnTaker) Arm() {
	t.mu.Lock()
	if t.cancel != nil {
		close(t.cancel)
	}
	cancel := make(chan struct{})
	t.cancel = cancel
	t.mu.Unlock()

	go t.watch(cancel)
}

// Disarm stops silence monitoring. Safe to call when not armed.
func (t *turnTaker) Disarm() {
	t.mu.Lock()
	if t.cancel != nil {
		close(t.cancel)
		t.cancel = nil
	}
	t.mu.Unlock()
}

func (t *turnTaker) watch(cancel chan struct{}) {
	ticker := time.NewTicker(t.cfg.SampleInterval)
	defer ticker.Stop()

	var silentFor time.Duration
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if t.level() > t.cfg.SilenceThreshold {
				silentFor = 0
				continue
			}
			silentFor += t.cfg.SampleInterval
			if silentFor < t.cfg.SilenceWindow {
				continue
			}

			// Fire once, then stand down until the session re-arms.
			t.mu.Lock()
			armed := t.cancel == cancel
			if armed {
				t.cancel = nil
			}
			t.mu.Unlock()
			if armed {
				t.submit()
			}
			return
		}
	}
}
