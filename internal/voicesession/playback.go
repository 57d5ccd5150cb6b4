package voicesession

import (
	"context"
	"sync"

	"github.com/presidence-ga/iasted/pkg/audio"
)

// Sink receives synthesized speech chunks for rendering on the client
// surface.
type Sink interface {
	Write(ctx context.Context, chunk []byte) error
}

// playbackController renders one synthesized utterance at a time. Starting a
// new playback stops the previous one first, so audio never overlaps. The
// session learns about completion through the onEnd callback: nil for
// natural end, non-nil for a sink failure. A playback that was superseded or
// stopped does not report at all.
type playbackController struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPlaybackController() *playbackController {
	return &playbackController{}
}

// Play drains chunks into sink until the channel closes. It replaces any
// active playback.
func (p *playbackController) Play(chunks <-chan []byte, sink Sink, onEnd func(err error)) {
	p.stopActive()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		err := pump(ctx, chunks, sink)

		// Superseded or stopped playbacks stay silent; the session has
		// already moved on.
		if ctx.Err() != nil {
			drain(chunks)
			return
		}
		onEnd(err)
	}()
}

// Stop cancels the active playback, if any, and waits for its goroutine to
// exit. No completion callback fires.
func (p *playbackController) Stop() {
	p.stopActive()
}

func (p *playbackController) stopActive() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// pump copies chunks to the sink until the channel closes, the sink fails,
// or ctx is cancelled.
func pump(ctx context.Context, chunks <-chan []byte, sink Sink) error {
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if err := sink.Write(ctx, chunk); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// drain discards the remainder of an abandoned audio stream so its producer
// never blocks.
func drain(chunks <-chan []byte) {
	go audio.Drain(chunks)
}
