package synth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"voice-qa-session/internal/observability/metrics"
)

// Driver wraps a synthesis capability, speaking one utterance to
// completion or error. A new Speak cancels any previous utterance first.
type Driver struct {
	mu  sync.Mutex
	cap Capability
	log zerolog.Logger
	met *metrics.Metrics
	cur *utterance
}

type utterance struct {
	cancelled bool
	finished  bool
	done      chan error
}

// NewDriver creates a playback driver. met may be nil.
func NewDriver(cap Capability, log zerolog.Logger, met *metrics.Metrics) *Driver {
	return &Driver{cap: cap, log: log, met: met}
}

// Available reports whether the underlying capability exists.
func (d *Driver) Available() bool {
	return d.cap != nil && d.cap.Available()
}

// IsSpeaking reports whether an utterance is in flight.
func (d *Driver) IsSpeaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur != nil && !d.cur.finished
}

// Speak plays the utterance to completion. It returns nil when playback
// ends naturally or was cancelled, and an error only on a genuine
// synthesis failure.
func (d *Driver) Speak(ctx context.Context, text string) error {
	d.mu.Lock()
	if prior := d.cur; prior != nil && !prior.finished {
		prior.cancelled = true
		d.mu.Unlock()
		d.cap.Cancel()
		d.mu.Lock()
	}
	u := &utterance{done: make(chan error, 1)}
	d.cur = u
	d.mu.Unlock()

	if d.met != nil {
		d.met.PlaybackUtterances.Inc()
	}
	if err := d.cap.Speak(ctx, text, &speakSink{d: d, u: u}); err != nil {
		d.finish(u, err)
		return <-u.done
	}

	select {
	case err := <-u.done:
		return err
	case <-ctx.Done():
		d.Cancel()
		<-u.done
		return nil
	}
}

// Cancel immediately stops any in-flight utterance. The pending Speak
// settles quietly.
func (d *Driver) Cancel() {
	d.mu.Lock()
	u := d.cur
	if u == nil || u.finished {
		d.mu.Unlock()
		return
	}
	u.cancelled = true
	d.mu.Unlock()

	d.cap.Cancel()
	if d.met != nil {
		d.met.PlaybackCancelled.Inc()
	}
}

// Ding plays the acknowledgment cue that separates the speaking phase
// from the listening phase.
func (d *Driver) Ding(ctx context.Context) error {
	return d.cap.PlayCue(ctx)
}

func (d *Driver) finish(u *utterance, err error) {
	d.mu.Lock()
	if u.finished {
		d.mu.Unlock()
		return
	}
	u.finished = true
	// Cancellation is a deliberate interrupt, never an error.
	if u.cancelled {
		err = nil
	}
	if d.cur == u {
		d.cur = nil
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Error().Err(err).Msg("synthesis failure")
		if d.met != nil {
			d.met.PlaybackErrors.Inc()
		}
	}
	u.done <- err
}

type speakSink struct {
	d *Driver
	u *utterance
}

func (s *speakSink) OnEnd()            { s.d.finish(s.u, nil) }
func (s *speakSink) OnError(err error) { s.d.finish(s.u, err) }
