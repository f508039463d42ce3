package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-qa-session/internal/models"
	"voice-qa-session/internal/observability/metrics"
	"voice-qa-session/internal/service/command"
	"voice-qa-session/internal/service/nav"
	"voice-qa-session/internal/store"
)

// Errors surfaced by machine operations.
var (
	ErrNoQuestions       = errors.New("turn: session has no questions")
	ErrEngineUnavailable = errors.New("turn: speech engine unavailable")
)

// Listener is the capture side consumed by the machine. Implemented by
// capture.Engine.
type Listener interface {
	Listen(ctx context.Context) (string, error)
	Stop()
	IsListening() bool
	Available() bool
}

// Speaker is the playback side consumed by the machine. Implemented by
// synth.Driver.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
	Ding(ctx context.Context) error
	Available() bool
}

// Publisher emits session events. Implemented by events.Publisher.
type Publisher interface {
	PublishAnswerCaptured(ctx context.Context, ev models.AnswerCaptured) error
	PublishCommandRecognized(ctx context.Context, ev models.CommandRecognized) error
	PublishSessionSaved(ctx context.Context, ev models.SessionSaved) error
}

// Notifier receives user-visible notices: rejected jumps, no-op pauses,
// engine failures. A nil notifier drops them (they are still logged).
type Notifier interface {
	Notify(text string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(string)

func (f NotifierFunc) Notify(text string) { f(text) }

// Config holds machine tunables.
type Config struct {
	// RelistenCooldown is the pause before re-entering Listening after a
	// capture that yielded no usable text.
	RelistenCooldown time.Duration
}

// DefaultConfig returns production timing defaults.
func DefaultConfig() Config {
	return Config{RelistenCooldown: 1 * time.Second}
}

// Deps bundles the machine's collaborators. Publisher and Notifier are
// optional.
type Deps struct {
	Listener  Listener
	Speaker   Speaker
	Store     store.Store
	Publisher Publisher
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
}

// resumePoint records which driver a paused turn re-invokes.
type resumePoint int

const (
	resumeNone resumePoint = iota
	resumeSpeak
	resumeListen
)

// Machine drives the question cycle. All session mutations flow through
// it: engine completions, voice commands and manual navigation intents
// are serialized on one mutex, and every turn carries a generation number
// so torn-down operations cannot touch later state.
type Machine struct {
	lc       *Lifecycle
	listener Listener
	speaker  Speaker
	st       store.Store
	pub      Publisher
	notifier Notifier
	cfg      Config
	log      zerolog.Logger
	met      *metrics.Metrics

	mu         sync.Mutex
	sess       *models.Session
	gen        int
	runCtx     context.Context
	runCancel  context.CancelFunc
	turnCancel context.CancelFunc
	resume     resumePoint
}

// New creates a turn machine. The session itself is attached by Start.
func New(deps Deps, cfg Config) *Machine {
	return &Machine{
		lc:       NewLifecycle(),
		listener: deps.Listener,
		speaker:  deps.Speaker,
		st:       deps.Store,
		pub:      deps.Publisher,
		notifier: deps.Notifier,
		cfg:      cfg,
		log:      deps.Log,
		met:      deps.Metrics,
	}
}

// State returns the current turn state.
func (m *Machine) State() State {
	return m.lc.State()
}

// Snapshot returns a deep copy of the attached session, or nil.
func (m *Machine) Snapshot() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	return m.sess.Clone()
}

// Start attaches a session and begins the first turn at the session's
// current index. The machine owns the session until Stop.
func (m *Machine) Start(ctx context.Context, sess *models.Session) error {
	if sess == nil || len(sess.Questions) == 0 {
		return ErrNoQuestions
	}
	if !m.listener.Available() {
		return fmt.Errorf("%w: capture", ErrEngineUnavailable)
	}
	if !m.speaker.Available() {
		return fmt.Errorf("%w: playback", ErrEngineUnavailable)
	}
	if err := m.lc.Activate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.sess = sess
	if sess.CurrentIndex < 0 || sess.CurrentIndex >= len(sess.Questions) {
		sess.CurrentIndex = 0
	}
	sess.Active = true
	m.runCtx, m.runCancel = context.WithCancel(ctx)
	m.saveLocked()
	gen, tctx := m.beginTurnLocked()
	m.mu.Unlock()

	m.log.Info().Str("sessionId", sess.ID).Int("questions", len(sess.Questions)).Msg("session started")
	go m.turnLoop(tctx, gen, true)
	return nil
}

// Stop deactivates the session, tearing down any in-flight engine
// operation. Idempotent.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.sess == nil || !m.lc.Active() {
		m.mu.Unlock()
		return
	}
	m.gen++
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
	}
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
	m.lc.Deactivate()
	m.resume = resumeNone
	m.sess.Active = false
	m.saveLocked()
	id := m.sess.ID
	m.mu.Unlock()

	m.speaker.Cancel()
	m.listener.Stop()
	m.log.Info().Str("sessionId", id).Msg("session stopped")
}

// Pause tears down the in-flight phase and snapshots how to resume:
// paused playback resumes as a re-read of the question, paused capture
// resumes as a fresh listen. Pausing while already paused is a no-op
// with a notice, not an error.
func (m *Machine) Pause() error {
	m.mu.Lock()
	interrupted, err := m.lc.Pause()
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, ErrAlreadyPaused) {
			m.notifyf("Already paused.")
			return nil
		}
		return err
	}

	// Invalidate the turn so a capture result resolved by the stop below
	// is discarded, not merged as an answer.
	m.gen++
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
	}
	if interrupted == StateListening {
		m.resume = resumeListen
	} else {
		m.resume = resumeSpeak
	}
	m.mu.Unlock()

	m.speaker.Cancel()
	m.listener.Stop()
	m.log.Info().Stringer("interrupted", interrupted).Msg("session paused")
	return nil
}

// Resume re-invokes the driver recorded by Pause. Resuming while not
// paused is a no-op with a notice.
func (m *Machine) Resume() error {
	m.mu.Lock()
	if _, err := m.lc.Resume(); err != nil {
		m.mu.Unlock()
		if errors.Is(err, ErrNotPaused) && m.lc.Active() {
			m.notifyf("Session is not paused.")
			return nil
		}
		return err
	}
	point := m.resume
	m.resume = resumeNone
	gen, ctx := m.beginTurnLocked()
	m.mu.Unlock()

	m.log.Info().Msg("session resumed")
	go m.turnLoop(ctx, gen, point != resumeListen)
	return nil
}

// Next advances to the following question.
func (m *Machine) Next() error { return m.navigate(nav.IntentNext, 0) }

// Prev returns to the preceding question.
func (m *Machine) Prev() error { return m.navigate(nav.IntentPrev, 0) }

// Skip marks the current question skipped and advances.
func (m *Machine) Skip() error { return m.navigate(nav.IntentSkip, 0) }

// Jump moves to the 1-based question number n.
func (m *Machine) Jump(n int) error { return m.navigate(nav.IntentJump, n) }

// navigate tears down the in-flight phase first so at most one engine
// operation is ever active, then applies the decision and starts a fresh
// turn at the new index.
func (m *Machine) navigate(intent nav.Intent, arg int) error {
	m.mu.Lock()
	if m.sess == nil || !m.lc.Active() {
		m.mu.Unlock()
		return ErrInactive
	}
	d, err := nav.Navigate(m.sess.Questions, m.sess.States, m.sess.CurrentIndex, intent, arg)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	m.teardownLocked()
	for _, ch := range d.Changes {
		st := m.sess.StateOf(ch.QuestionID)
		st.Status = ch.Status
		m.sess.States[ch.QuestionID] = st
	}
	m.sess.CurrentIndex = d.Index
	m.saveLocked()
	gen, ctx := m.beginTurnLocked()
	idx := d.Index
	m.mu.Unlock()

	m.log.Info().Stringer("intent", intent).Int("questionIndex", idx).Msg("navigated")
	go m.turnLoop(ctx, gen, true)
	return nil
}

// Repeat re-reads the current question from the top of its turn.
func (m *Machine) Repeat() error {
	return m.restartTurn(true)
}

// ClearAnswer resets the current question to an empty pending state and
// re-enters listening.
func (m *Machine) ClearAnswer() error {
	m.mu.Lock()
	if m.sess == nil || !m.lc.Active() {
		m.mu.Unlock()
		return ErrInactive
	}
	q, ok := m.sess.Current()
	if !ok {
		m.mu.Unlock()
		return ErrNoQuestions
	}
	m.teardownLocked()
	m.sess.States[q.ID] = models.QuestionState{Status: models.StatusPending}
	m.saveLocked()
	gen, ctx := m.beginTurnLocked()
	m.mu.Unlock()

	m.notifyf("Answer cleared.")
	go m.turnLoop(ctx, gen, false)
	return nil
}

// Summary speaks session progress counts, then re-enters listening on
// the current question.
func (m *Machine) Summary() error {
	m.mu.Lock()
	if m.sess == nil || !m.lc.Active() {
		m.mu.Unlock()
		return ErrInactive
	}
	sum := m.sess.Summarize()
	m.teardownLocked()
	gen, ctx := m.beginTurnLocked()
	m.mu.Unlock()

	go func() {
		if m.lc.To(StateSpeaking) != nil {
			return
		}
		if err := m.speaker.Speak(ctx, summaryText(sum)); err != nil {
			m.log.Warn().Err(err).Msg("summary playback failed")
		}
		if m.doneOrStale(ctx, gen) {
			return
		}
		if m.lc.To(StateTransitioning) != nil {
			return
		}
		m.turnLoop(ctx, gen, false)
	}()
	return nil
}

// turnLoop runs one question cycle and keeps running it until the turn is
// torn down, the session deactivates, or navigation hands over to a new
// loop. announce selects whether the question text is spoken first.
func (m *Machine) turnLoop(ctx context.Context, gen int, announce bool) {
	for {
		m.mu.Lock()
		if gen != m.gen || m.sess == nil {
			m.mu.Unlock()
			return
		}
		q, ok := m.sess.Current()
		sessID := m.sess.ID
		idx := m.sess.CurrentIndex
		m.mu.Unlock()
		if !ok {
			m.Stop()
			return
		}

		log := m.log.With().Str("sessionId", sessID).Str("questionId", q.ID).Int("questionIndex", idx).Logger()
		started := time.Now()
		if m.met != nil {
			m.met.RecordTurnStart()
		}

		if announce {
			if m.lc.To(StateSpeaking) != nil {
				return
			}
			if err := m.speaker.Speak(ctx, q.Text); err != nil {
				// A genuine synthesis failure is surfaced but does not
				// block the turn from proceeding to capture.
				log.Error().Err(err).Msg("question playback failed")
				m.notifyf("Could not read the question aloud.")
			}
			if m.doneOrStale(ctx, gen) {
				m.endTurn(started)
				return
			}
			if m.lc.To(StateTransitioning) != nil {
				return
			}
		}

		if err := m.speaker.Ding(ctx); err != nil {
			log.Warn().Err(err).Msg("acknowledgment cue failed")
		}
		if m.doneOrStale(ctx, gen) {
			m.endTurn(started)
			return
		}

		if m.lc.To(StateListening) != nil {
			return
		}
		text, err := m.listener.Listen(ctx)
		if m.doneOrStale(ctx, gen) {
			// Pause or teardown raced the capture; its result belongs to
			// no turn and is discarded.
			m.endTurn(started)
			return
		}
		if m.lc.To(StateTransitioning) != nil {
			return
		}
		m.endTurn(started)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Error().Err(err).Msg("capture failed, stopping session")
			m.notifyf("Speech capture failed. Session stopped.")
			m.Stop()
			return
		}

		cleaned, cmd := command.Interpret(text)

		var wasBlank bool
		if cleaned != "" {
			wasBlank = m.mergeAnswer(sessID, q.ID, cleaned)
			log.Info().Int("answerLen", len(cleaned)).Bool("wasBlank", wasBlank).Msg("answer captured")
		}

		if !cmd.None() {
			log.Info().Str("command", string(cmd.Kind)).Int("argument", cmd.Argument).Msg("voice command recognized")
			if m.met != nil {
				m.met.RecordCommand(string(cmd.Kind))
			}
			m.publishCommand(sessID, q.ID, cmd)
			m.dispatch(cmd)
			return
		}

		if cleaned == "" {
			// Nothing usable came back. An active session never settles
			// with no pending operation, so listen again after a breath.
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.RelistenCooldown):
			}
			announce = false
			continue
		}

		m.mu.Lock()
		if gen != m.gen || m.sess == nil {
			m.mu.Unlock()
			return
		}
		d := nav.AutoAdvance(m.sess.Questions, m.sess.States, m.sess.CurrentIndex, wasBlank)
		if d.Moved {
			m.sess.CurrentIndex = d.Index
			m.saveLocked()
			m.mu.Unlock()
			announce = true
			continue
		}
		m.mu.Unlock()

		if d.Completed {
			if m.lc.To(StateSpeaking) == nil {
				if err := m.speaker.Speak(ctx, "All questions are answered. The session is complete."); err != nil {
					log.Warn().Err(err).Msg("completion playback failed")
				}
			}
			m.Stop()
			return
		}
		if d.AtEnd {
			m.notifyf("You are at the last question.")
		}
		announce = false
	}
}

// mergeAnswer folds captured text into the question's answer. The first
// capture replaces the empty default; later captures on the same question
// append with a separating space. Returns whether the answer was blank
// before this capture, which selects the auto-advance mode.
func (m *Machine) mergeAnswer(sessID, questionID, text string) bool {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return false
	}
	st := m.sess.StateOf(questionID)
	wasBlank := st.Answer == ""
	if wasBlank {
		st.Answer = text
	} else {
		st.Answer = st.Answer + " " + text
	}
	st.Status = models.StatusAnswered
	m.sess.States[questionID] = st
	m.saveLocked()
	m.mu.Unlock()

	if m.met != nil {
		m.met.AnswersCaptured.Inc()
	}
	if m.pub != nil {
		ev := models.AnswerCaptured{
			EventType:  "answer.captured",
			SessionID:  sessID,
			QuestionID: questionID,
			Text:       text,
			Merged:     !wasBlank,
			Timestamp:  time.Now().UnixMilli(),
		}
		go func() { _ = m.pub.PublishAnswerCaptured(context.Background(), ev) }()
	}
	return wasBlank
}

// dispatch executes a recognized voice command. Every branch either hands
// over to a new turn, pauses, or stops; none may leave the session with
// no pending operation.
func (m *Machine) dispatch(cmd command.Command) {
	switch cmd.Kind {
	case command.KindNext:
		_ = m.Next()
	case command.KindPrev:
		_ = m.Prev()
	case command.KindSkip:
		_ = m.Skip()
	case command.KindJump:
		if err := m.Jump(cmd.Argument); err != nil {
			if errors.Is(err, nav.ErrOutOfRange) {
				m.notifyf("Question %d does not exist.", cmd.Argument)
			}
			_ = m.restartTurn(false)
		}
	case command.KindRepeat:
		_ = m.Repeat()
	case command.KindSummary:
		_ = m.Summary()
	case command.KindClearAnswer:
		_ = m.ClearAnswer()
	case command.KindPause:
		_ = m.Pause()
	case command.KindResume:
		if m.lc.State() == StatePaused {
			_ = m.Resume()
		} else {
			m.notifyf("Session is not paused.")
			_ = m.restartTurn(false)
		}
	}
}

// restartTurn tears down the current turn and starts a fresh one on the
// same question.
func (m *Machine) restartTurn(announce bool) error {
	m.mu.Lock()
	if m.sess == nil || !m.lc.Active() {
		m.mu.Unlock()
		return ErrInactive
	}
	m.teardownLocked()
	gen, ctx := m.beginTurnLocked()
	m.mu.Unlock()

	go m.turnLoop(ctx, gen, announce)
	return nil
}

// beginTurnLocked allocates a new turn generation and its context.
// Callers hold m.mu.
func (m *Machine) beginTurnLocked() (int, context.Context) {
	m.gen++
	ctx, cancel := context.WithCancel(m.runCtx)
	m.turnCancel = cancel
	return m.gen, ctx
}

// teardownLocked invalidates the in-flight turn and forces the lifecycle
// back to TRANSITIONING, dropping any resume snapshot. Engine stops are
// issued here as well; the capture result they resolve is discarded by
// the generation bump. Callers hold m.mu.
func (m *Machine) teardownLocked() {
	m.gen++
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
	}
	m.resume = resumeNone
	_ = m.lc.Interrupt()
	m.speaker.Cancel()
	m.listener.Stop()
}

// doneOrStale reports whether the turn should abandon its loop: its
// context was cancelled or a newer generation took over.
func (m *Machine) doneOrStale(ctx context.Context, gen int) bool {
	if ctx.Err() != nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen != m.gen
}

func (m *Machine) endTurn(started time.Time) {
	if m.met != nil {
		m.met.RecordTurnEnd(time.Since(started).Seconds())
	}
}

// saveLocked persists the session snapshot. Storage failure degrades to
// "not persisted": logged and counted, never fatal to the session.
// Callers hold m.mu.
func (m *Machine) saveLocked() {
	if m.st == nil || m.sess == nil {
		return
	}
	evicted, err := m.st.Save(context.Background(), m.sess)
	if err != nil {
		m.log.Error().Err(err).Str("sessionId", m.sess.ID).Msg("session save failed, continuing unpersisted")
		if m.met != nil {
			m.met.RecordStoreError("save")
		}
		return
	}
	if m.met != nil {
		m.met.RecordSessionSave(evicted)
	}
	if m.pub != nil {
		sum := m.sess.Summarize()
		ev := models.SessionSaved{
			EventType:    "session.saved",
			SessionID:    m.sess.ID,
			CurrentIndex: m.sess.CurrentIndex,
			Active:       m.sess.Active,
			Answered:     sum.Answered,
			Skipped:      sum.Skipped,
			Pending:      sum.Pending,
			Timestamp:    time.Now().UnixMilli(),
		}
		go func() { _ = m.pub.PublishSessionSaved(context.Background(), ev) }()
	}
}

func (m *Machine) publishCommand(sessID, questionID string, cmd command.Command) {
	if m.pub == nil {
		return
	}
	ev := models.CommandRecognized{
		EventType:  "command.recognized",
		SessionID:  sessID,
		QuestionID: questionID,
		Kind:       string(cmd.Kind),
		Argument:   cmd.Argument,
		Timestamp:  time.Now().UnixMilli(),
	}
	go func() { _ = m.pub.PublishCommandRecognized(context.Background(), ev) }()
}

// notifyf logs and forwards a user-visible notice.
func (m *Machine) notifyf(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	m.log.Info().Str("notice", text).Msg("user notice")
	if m.notifier != nil {
		m.notifier.Notify(text)
	}
}

func summaryText(sum models.Summary) string {
	return fmt.Sprintf("%d questions. %d answered, %d skipped, %d remaining.",
		sum.TotalQuestions, sum.Answered, sum.Skipped, sum.Pending)
}
