// Package capture provides the continuous-listening wrapper around a
// recognition capability. It turns the capability's event stream into a
// single awaited transcript, applying silence-based endpointing, an
// initial thinking-time timeout, and automatic restart when the engine
// terminates a pass on its own mid-utterance.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-qa-session/internal/observability/metrics"
	"voice-qa-session/internal/service/recognizer"
)

// Config holds the endpointing timers. All are tunable.
type Config struct {
	// SilenceTimeout ends the turn after this much silence once speech
	// has been observed.
	SilenceTimeout time.Duration

	// InitialTimeout applies before the first word, so the user is not
	// cut off while still thinking.
	InitialTimeout time.Duration

	// SettleDelay is the wait between force-stopping an underlying pass
	// and starting a new one, avoiding the engine's "already started"
	// failure mode.
	SettleDelay time.Duration
}

// DefaultConfig returns the default endpointing timers.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout: 3 * time.Second,
		InitialTimeout: 60 * time.Second,
		SettleDelay:    250 * time.Millisecond,
	}
}

// Engine owns at most one capture session at a time.
type Engine struct {
	mu      sync.Mutex
	cap     recognizer.Capability
	cfg     Config
	log     zerolog.Logger
	met     *metrics.Metrics
	cur     *session
	nextGen int
}

// session is one in-flight capture. A generation number guards against
// stale timers and engine events firing into a later, unrelated session.
type session struct {
	gen      int
	ctx      context.Context
	segments []string
	speech   bool
	manual   bool
	finished bool
	started  time.Time
	timer    *time.Timer
	done     chan result
}

type result struct {
	text string
	err  error
}

// New creates a capture engine over the given recognition capability.
// met may be nil.
func New(cap recognizer.Capability, cfg Config, log zerolog.Logger, met *metrics.Metrics) *Engine {
	return &Engine{cap: cap, cfg: cfg, log: log, met: met}
}

// Available reports whether the underlying capability exists, so callers
// can disable dependent controls without attempting a call that will fail.
func (e *Engine) Available() bool {
	return e.cap != nil && e.cap.Available()
}

// IsListening reports whether a capture session is in flight.
func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil && !e.cur.finished
}

// Listen starts a capture session and blocks until the utterance is
// endpointed, returning the accumulated transcript (trimmed). A session
// already in flight is force-stopped first, followed by the settle delay.
//
// Termination behavior:
//   - silence after speech: normal end, full transcript
//   - initial timeout with no speech: normal end, empty transcript
//   - Stop(): normal end with whatever accumulated, no restart
//   - recoverable engine condition after speech: absorbed by an internal
//     restart, transcript preserved across passes
//   - recoverable engine condition before any speech: empty transcript
//   - any other engine error: returned, no restart
func (e *Engine) Listen(ctx context.Context) (string, error) {
	if !e.Available() {
		return "", recognizer.ErrUnavailable
	}

	e.mu.Lock()
	if prior := e.cur; prior != nil && !prior.finished {
		e.log.Warn().Int("gen", prior.gen).Msg("capture already in flight, force-stopping previous session")
		prior.manual = true
		e.finishLocked(prior, strings.TrimSpace(strings.Join(prior.segments, " ")), nil)
		e.mu.Unlock()
		_ = e.cap.Abort()
		e.settle()
		e.mu.Lock()
	}

	e.nextGen++
	s := &session{
		gen:     e.nextGen,
		ctx:     ctx,
		started: time.Now(),
		done:    make(chan result, 1),
	}
	e.cur = s
	gen := s.gen
	e.mu.Unlock()

	if e.met != nil {
		e.met.RecordCaptureStart()
	}
	if err := e.cap.Start(ctx, &sink{e: e, gen: gen}); err != nil {
		e.mu.Lock()
		e.finishLocked(s, "", err)
		e.mu.Unlock()
		return e.resolve(s)
	}
	e.armTimer(gen, e.cfg.InitialTimeout)

	select {
	case <-ctx.Done():
		e.mu.Lock()
		s.manual = true
		e.finishLocked(s, "", ctx.Err())
		e.mu.Unlock()
		_ = e.cap.Abort()
		return e.resolve(s)
	case r := <-s.done:
		return e.record(s, r)
	}
}

// resolve reads the session result after finishLocked has queued it.
func (e *Engine) resolve(s *session) (string, error) {
	return e.record(s, <-s.done)
}

func (e *Engine) record(s *session, r result) (string, error) {
	if e.met != nil && r.err == nil {
		e.met.RecordCaptureEnd(r.text == "", time.Since(s.started).Seconds())
	}
	return r.text, r.err
}

// Stop force-ends the in-flight capture session. The pending Listen
// resolves with the text accumulated so far; the engine's restart
// heuristic is suppressed because a manual stop is authoritative.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.cur
	if s == nil || s.finished {
		e.mu.Unlock()
		return
	}
	s.manual = true
	e.finishLocked(s, strings.TrimSpace(strings.Join(s.segments, " ")), nil)
	e.mu.Unlock()

	_ = e.cap.Abort()
	if e.met != nil {
		e.met.CaptureManualStops.Inc()
	}
}

// finishLocked resolves the session exactly once and clears every timer it
// was guarding. Callers hold e.mu.
func (e *Engine) finishLocked(s *session, text string, err error) {
	if s.finished {
		return
	}
	s.finished = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if e.cur == s {
		e.cur = nil
	}
	s.done <- result{text: text, err: err}
}

// armTimer (re)arms the endpoint timer for the session identified by gen.
func (e *Engine) armTimer(gen int, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.cur
	if s == nil || s.gen != gen || s.finished {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() { e.onTimeout(gen) })
}

// onTimeout fires when either the silence timer or the initial timeout
// expires. Both are normal ends.
func (e *Engine) onTimeout(gen int) {
	e.mu.Lock()
	s := e.cur
	if s == nil || s.gen != gen || s.finished {
		e.mu.Unlock()
		return
	}
	text := strings.TrimSpace(strings.Join(s.segments, " "))
	if s.speech {
		e.log.Debug().Int("gen", gen).Msg("silence timer fired, ending turn")
	} else {
		e.log.Debug().Int("gen", gen).Msg("initial timeout fired with no speech")
	}
	e.finishLocked(s, text, nil)
	e.mu.Unlock()

	_ = e.cap.Abort()
}

// onResult handles a recognition result for the session identified by gen.
func (e *Engine) onResult(gen int, text string, final bool) {
	e.mu.Lock()
	s := e.cur
	if s == nil || s.gen != gen || s.finished {
		e.mu.Unlock()
		return
	}
	if strings.TrimSpace(text) != "" {
		s.speech = true
		if final {
			s.segments = append(s.segments, strings.TrimSpace(text))
		}
	}
	speech := s.speech
	e.mu.Unlock()

	// Any speech, interim or final, restarts the silence timer.
	if speech {
		e.armTimer(gen, e.cfg.SilenceTimeout)
	}
}

// onPassEnd handles the underlying pass terminating on its own, either via
// an error or a silent early end. err is nil for a plain end.
func (e *Engine) onPassEnd(gen int, err error) {
	e.mu.Lock()
	s := e.cur
	if s == nil || s.gen != gen || s.finished || s.manual {
		e.mu.Unlock()
		return
	}

	if err != nil && !recognizer.Recoverable(err) {
		e.log.Error().Err(err).Int("gen", gen).Msg("fatal capture error")
		e.finishLocked(s, "", err)
		e.mu.Unlock()
		if e.met != nil {
			e.met.RecordCaptureError(errClass(err))
		}
		return
	}

	if !s.speech {
		// Recoverable condition before any speech resolves as an
		// empty transcript, not an error.
		e.finishLocked(s, "", nil)
		e.mu.Unlock()
		return
	}

	// The engine's own idle-timeout quirk: restart the pass and keep the
	// transcript accumulated so far.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	ctx := s.ctx
	e.mu.Unlock()

	e.log.Info().Int("gen", gen).Err(err).Msg("recoverable engine condition mid-utterance, restarting")
	if e.met != nil {
		e.met.RecordCaptureRestart()
	}
	go e.restart(ctx, gen)
}

func (e *Engine) restart(ctx context.Context, gen int) {
	e.settle()

	e.mu.Lock()
	s := e.cur
	if s == nil || s.gen != gen || s.finished || s.manual {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := e.cap.Start(ctx, &sink{e: e, gen: gen}); err != nil {
		e.mu.Lock()
		if s := e.cur; s != nil && s.gen == gen && !s.finished {
			e.finishLocked(s, "", err)
		}
		e.mu.Unlock()
		return
	}
	// Speech was already observed, so the silence timer applies.
	e.armTimer(gen, e.cfg.SilenceTimeout)
}

func (e *Engine) settle() {
	if e.cfg.SettleDelay > 0 {
		time.Sleep(e.cfg.SettleDelay)
	}
}

func errClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case recognizer.Recoverable(err):
		return "recoverable"
	default:
		return "fatal"
	}
}

// sink routes capability events into the engine, pinned to one session
// generation so an aborted pass cannot touch a later session.
type sink struct {
	e   *Engine
	gen int
}

func (s *sink) OnResult(text string, final bool) { s.e.onResult(s.gen, text, final) }
func (s *sink) OnEnd()                           { s.e.onPassEnd(s.gen, nil) }
func (s *sink) OnError(err error)                { s.e.onPassEnd(s.gen, err) }
