// Package sim provides a simulated recognition capability for tests and
// demo runs without a real engine. It can be driven manually (tests emit
// results and conditions directly) or replay a script with realistic
// progressive partials.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-qa-session/internal/service/recognizer"
)

// Utterance is one scripted spoken answer with progressive partials.
type Utterance struct {
	Partials []string
	Final    string
}

// DefaultScript provides sample answers for demo sessions.
var DefaultScript = []Utterance{
	{
		Partials: []string{"my name", "my name is"},
		Final:    "my name is Alex",
	},
	{
		Partials: []string{"about", "about five"},
		Final:    "about five years",
	},
	{
		Partials: []string{"skip"},
		Final:    "skip",
	},
	{
		Partials: []string{"mostly", "mostly backend"},
		Final:    "mostly backend services",
	},
}

// Engine implements recognizer.Capability with simulated behavior.
// The zero value is not usable; construct with New, NewScripted or
// NewUnavailable.
type Engine struct {
	mu        sync.Mutex
	ev        recognizer.Events
	active    bool
	available bool
	starts    int

	script    []Utterance
	scriptIdx int
	interval  time.Duration
}

// New creates a manually driven engine: tests call Emit, End and Fail to
// feed the registered event sink.
func New() *Engine {
	return &Engine{available: true}
}

// NewScripted creates an engine that replays one scripted utterance per
// recognition pass, one partial per interval, cycling through the script.
func NewScripted(script []Utterance, interval time.Duration) *Engine {
	return &Engine{available: true, script: script, interval: interval}
}

// NewUnavailable creates an engine whose capability is absent from the
// environment.
func NewUnavailable() *Engine {
	return &Engine{}
}

// Available reports whether the simulated capability exists.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Starts returns how many recognition passes have been started. Used by
// tests asserting the restart heuristic.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Start begins a simulated recognition pass.
func (e *Engine) Start(ctx context.Context, ev recognizer.Events) error {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return recognizer.ErrUnavailable
	}
	if e.active {
		e.mu.Unlock()
		return errors.New("sim: recognition pass already active")
	}
	e.ev = ev
	e.active = true
	e.starts++

	var utt *Utterance
	if len(e.script) > 0 {
		u := e.script[e.scriptIdx%len(e.script)]
		e.scriptIdx++
		utt = &u
	}
	interval := e.interval
	e.mu.Unlock()

	if utt != nil {
		go e.play(ctx, *utt, interval)
	}
	return nil
}

// Abort force-stops the active pass. No further events are delivered for
// the aborted pass.
func (e *Engine) Abort() error {
	e.mu.Lock()
	e.active = false
	e.ev = nil
	e.mu.Unlock()
	return nil
}

// Emit delivers a recognition result to the active pass.
func (e *Engine) Emit(text string, final bool) {
	if ev := e.sink(); ev != nil {
		ev.OnResult(text, final)
	}
}

// End ends the active pass without an error, like a silent early engine
// end.
func (e *Engine) End() {
	e.mu.Lock()
	ev := e.ev
	e.active = false
	e.ev = nil
	e.mu.Unlock()
	if ev != nil {
		ev.OnEnd()
	}
}

// Fail ends the active pass with the given error.
func (e *Engine) Fail(err error) {
	e.mu.Lock()
	ev := e.ev
	e.active = false
	e.ev = nil
	e.mu.Unlock()
	if ev != nil {
		ev.OnError(err)
	}
}

func (e *Engine) sink() recognizer.Events {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil
	}
	return e.ev
}

func (e *Engine) play(ctx context.Context, utt Utterance, interval time.Duration) {
	for _, p := range utt.Partials {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if ev := e.sink(); ev != nil {
			ev.OnResult(p, false)
		} else {
			return
		}
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(interval):
	}
	if ev := e.sink(); ev != nil {
		ev.OnResult(utt.Final, true)
	}
}
