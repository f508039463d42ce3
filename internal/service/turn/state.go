// Package turn orchestrates the question cycle: speak the question, play
// the acknowledgment cue, listen for the answer, interpret commands and
// drive navigation.
package turn

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of the turn machine.
type State int

const (
	// StateInactive - No session running. Initial and terminal state.
	StateInactive State = iota
	// StateTransitioning - Between phases, no engine operation in flight.
	StateTransitioning
	// StateSpeaking - Playback of the question text is in flight.
	StateSpeaking
	// StateListening - A capture session is in flight.
	StateListening
	// StatePaused - Engine operations torn down, resume snapshot held.
	StatePaused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateTransitioning:
		return "TRANSITIONING"
	case StateSpeaking:
		return "SPEAKING"
	case StateListening:
		return "LISTENING"
	case StatePaused:
		return "PAUSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Engaged returns true if an engine operation is in flight.
func (s State) Engaged() bool {
	return s == StateSpeaking || s == StateListening
}

// Errors for invalid lifecycle operations.
var (
	ErrInactive      = errors.New("turn: no active session")
	ErrAlreadyActive = errors.New("turn: session already active")
	ErrAlreadyPaused = errors.New("turn: already paused")
	ErrNotPaused     = errors.New("turn: nothing to resume")
	ErrBadTransition = errors.New("turn: invalid state transition")
)

// Lifecycle owns the single turn state value and validates transitions.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	INACTIVE → TRANSITIONING → SPEAKING → TRANSITIONING → LISTENING
//	                                │                        │
//	                                └──── Pause() ──→ PAUSED ┘
//	                                                    │
//	                             Resume() restores the interrupted phase
//
// Rules:
//   - SPEAKING and LISTENING are only reachable through TRANSITIONING or
//     a resume, so both can never be engaged at once
//   - PAUSED remembers the phase it interrupted; Resume restores it
//   - INACTIVE is reachable from every state and tearing down is
//     always legal
type Lifecycle struct {
	mu          sync.RWMutex
	state       State
	interrupted State
}

// NewLifecycle creates a lifecycle in INACTIVE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateInactive}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Active returns true unless the lifecycle is INACTIVE.
func (l *Lifecycle) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state != StateInactive
}

// Activate transitions INACTIVE → TRANSITIONING at session start.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateInactive {
		return ErrAlreadyActive
	}
	l.state = StateTransitioning
	return nil
}

// To transitions to the given phase state. Only TRANSITIONING, SPEAKING
// and LISTENING are valid targets, and only from a non-terminal,
// non-paused state.
func (l *Lifecycle) To(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateInactive:
		return ErrInactive
	case StatePaused:
		return fmt.Errorf("%w: %v while %v", ErrBadTransition, next, l.state)
	}

	switch next {
	case StateTransitioning:
		l.state = StateTransitioning
		return nil
	case StateSpeaking, StateListening:
		if l.state != StateTransitioning {
			return fmt.Errorf("%w: %v while %v", ErrBadTransition, next, l.state)
		}
		l.state = next
		return nil
	default:
		return fmt.Errorf("%w: %v is not a phase target", ErrBadTransition, next)
	}
}

// Pause transitions to PAUSED, recording the interrupted phase, and
// returns that phase. Pausing while already paused or inactive returns
// an error so the caller can report a no-op.
func (l *Lifecycle) Pause() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateInactive:
		return StateInactive, ErrInactive
	case StatePaused:
		return StatePaused, ErrAlreadyPaused
	}
	l.interrupted = l.state
	l.state = StatePaused
	return l.interrupted, nil
}

// Resume leaves PAUSED and returns the phase that was interrupted. The
// caller re-invokes the corresponding driver; the lifecycle lands in
// TRANSITIONING until that happens.
func (l *Lifecycle) Resume() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StatePaused {
		return l.state, ErrNotPaused
	}
	l.state = StateTransitioning
	return l.interrupted, nil
}

// Interrupt forces TRANSITIONING from any active state, dropping any
// resume snapshot. Used when manual navigation tears down the turn,
// including out of a pause.
func (l *Lifecycle) Interrupt() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateInactive {
		return ErrInactive
	}
	l.state = StateTransitioning
	l.interrupted = StateInactive
	return nil
}

// Deactivate forces the lifecycle to INACTIVE. Legal from any state and
// idempotent.
func (l *Lifecycle) Deactivate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateInactive
	l.interrupted = StateInactive
}
