// Package recognizer defines the speech-recognition capability consumed by
// the capture engine. Any conforming capability, real or simulated, must
// satisfy the same event and error contract, which is what makes the
// capture engine's restart heuristic testable without a real engine.
package recognizer

import (
	"context"
	"errors"
)

// Recoverable engine conditions. These are the engine's own idle-timeout
// quirks, not user actions: the capture engine absorbs them via its restart
// heuristic instead of surfacing them.
var (
	// ErrNoSpeech signals the engine gave up waiting for speech.
	ErrNoSpeech = errors.New("recognizer: no speech detected")

	// ErrAborted signals the engine terminated the pass on its own
	// (for example a silent early end mid-session).
	ErrAborted = errors.New("recognizer: engine aborted")
)

// Fatal engine conditions. Surfaced to the caller, never retried.
var (
	// ErrUnavailable signals the capability is missing from the
	// environment. Reported synchronously at construction time.
	ErrUnavailable = errors.New("recognizer: capability unavailable")

	// ErrPermissionDenied signals microphone access was refused.
	ErrPermissionDenied = errors.New("recognizer: permission denied")
)

// Recoverable reports whether err is one of the conditions the capture
// engine may absorb with an internal restart.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted)
}

// Events receives recognition results from a capability. Callbacks arrive
// from the capability's own goroutine; implementations must serialize.
type Events interface {
	// OnResult is called for every recognized segment. final marks a
	// committed segment; interim segments only reset endpointing timers.
	OnResult(text string, final bool)

	// OnEnd is called when the engine ends a pass without an error.
	// An early OnEnd before any endpoint decision is treated like a
	// recoverable condition by the capture engine.
	OnEnd()

	// OnError is called when the pass fails. Recoverable(err)
	// distinguishes restartable conditions from fatal ones.
	OnError(err error)
}

// Capability is one speech-recognition engine instance. At most one
// recognition pass may be active per capability.
type Capability interface {
	// Start begins a recognition pass, delivering results to ev until
	// the pass ends. Calling Start while a pass is active is an error
	// at the capability level; the capture engine serializes starts.
	Start(ctx context.Context, ev Events) error

	// Abort force-stops the active pass, if any. The capability must
	// not emit further events for the aborted pass after Abort returns.
	Abort() error

	// Available reports whether the capability can be used at all.
	Available() bool
}
