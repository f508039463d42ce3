// Package sim provides a simulated synthesis capability for tests and demo
// runs. Utterances "play" for a configurable duration and can be cancelled
// mid-flight; a forced failure can be queued to exercise error paths.
package sim

import (
	"context"
	"sync"
	"time"

	"voice-qa-session/internal/service/synth"
)

// Speaker implements synth.Capability with simulated playback.
type Speaker struct {
	mu        sync.Mutex
	duration  time.Duration
	available bool
	spoken    []string
	cues      int
	cancels   int
	failNext  error

	ev        synth.Events
	playTimer *time.Timer
}

// New creates a simulated speaker whose utterances play for d.
func New(d time.Duration) *Speaker {
	return &Speaker{duration: d, available: true}
}

// NewUnavailable creates a speaker whose capability is absent.
func NewUnavailable() *Speaker {
	return &Speaker{}
}

// Available reports whether the simulated capability exists.
func (s *Speaker) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Spoken returns the utterances spoken so far, including interrupted ones.
func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// Cues returns how many acknowledgment cues have played.
func (s *Speaker) Cues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cues
}

// Cancels returns how many utterances were cancelled mid-flight.
func (s *Speaker) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// FailNext makes the next Speak report err through OnError instead of
// completing.
func (s *Speaker) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Speak starts simulated playback of text.
func (s *Speaker) Speak(ctx context.Context, text string, ev synth.Events) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.ev = ev
	fail := s.failNext
	s.failNext = nil

	if fail != nil {
		s.ev = nil
		s.mu.Unlock()
		go ev.OnError(fail)
		return nil
	}

	s.playTimer = time.AfterFunc(s.duration, func() {
		s.mu.Lock()
		cur := s.ev
		s.ev = nil
		s.mu.Unlock()
		if cur != nil {
			cur.OnEnd()
		}
	})
	s.mu.Unlock()
	return nil
}

// Cancel interrupts the in-flight utterance; the interrupted utterance
// still reports OnEnd, mirroring a quiet cancellation.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	cur := s.ev
	s.ev = nil
	if s.playTimer != nil {
		s.playTimer.Stop()
		s.playTimer = nil
	}
	if cur != nil {
		s.cancels++
	}
	s.mu.Unlock()
	if cur != nil {
		cur.OnEnd()
	}
}

// PlayCue plays the simulated acknowledgment tone.
func (s *Speaker) PlayCue(ctx context.Context) error {
	s.mu.Lock()
	s.cues++
	s.mu.Unlock()
	return nil
}
