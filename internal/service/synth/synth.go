// Package synth provides the speech playback driver over a synthesis
// capability. One utterance is in flight at a time; cancellation is a
// deliberate interrupt and never surfaces as an error.
package synth

import "context"

// Events receives the completion signal for one utterance.
type Events interface {
	// OnEnd is called when playback ends, naturally or after Cancel.
	OnEnd()

	// OnError is called on a genuine synthesis failure.
	OnError(err error)
}

// Capability is a speech-synthesis engine. Speak starts playback
// asynchronously and reports completion through ev exactly once.
type Capability interface {
	Speak(ctx context.Context, text string, ev Events) error

	// Cancel immediately stops any in-flight utterance. The capability
	// reports the interrupted utterance through OnEnd, not OnError.
	Cancel()

	// PlayCue plays the short acknowledgment tone between speaking and
	// listening. Blocking; cue playback is not cancellable.
	PlayCue(ctx context.Context) error

	// Available reports whether the capability exists at all.
	Available() bool
}
