package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voice-qa-session/internal/models"
	"voice-qa-session/internal/service/recognizer"
)

type listenResult struct {
	text string
	err  error
}

// fakeListener scripts capture results through a channel. Stop resolves
// the in-flight Listen with an empty transcript, matching the capture
// engine's manual-stop contract.
type fakeListener struct {
	mu        sync.Mutex
	feed      chan listenResult
	stop      chan struct{}
	listening bool
	calls     int
	stops     int
}

func newFakeListener() *fakeListener {
	return &fakeListener{feed: make(chan listenResult, 8), stop: make(chan struct{}, 8)}
}

func (l *fakeListener) Listen(ctx context.Context) (string, error) {
	l.mu.Lock()
	l.calls++
	l.listening = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.listening = false
		l.mu.Unlock()
	}()

	select {
	case r := <-l.feed:
		return r.text, r.err
	case <-l.stop:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *fakeListener) Stop() {
	l.mu.Lock()
	l.stops++
	inFlight := l.listening
	l.mu.Unlock()
	if inFlight {
		select {
		case l.stop <- struct{}{}:
		default:
		}
	}
}

func (l *fakeListener) IsListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

func (l *fakeListener) Available() bool { return true }

func (l *fakeListener) listenCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *fakeListener) stopCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stops
}

// fakeSpeaker records utterances. holdNext makes the next Speak block
// until cancelled, for pause-while-speaking scenarios.
type fakeSpeaker struct {
	mu       sync.Mutex
	spoken   []string
	cues     int
	cancels  int
	speaking bool
	holdNext bool
	cancelC  chan struct{}
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{cancelC: make(chan struct{}, 8)}
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.speaking = true
	hold := s.holdNext
	s.holdNext = false
	s.mu.Unlock()

	if hold {
		select {
		case <-s.cancelC:
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	s.speaking = false
	s.mu.Unlock()
	return nil
}

func (s *fakeSpeaker) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
	select {
	case s.cancelC <- struct{}{}:
	default:
	}
}

func (s *fakeSpeaker) Ding(ctx context.Context) error {
	s.mu.Lock()
	s.cues++
	s.mu.Unlock()
	return nil
}

func (s *fakeSpeaker) Available() bool { return true }

func (s *fakeSpeaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *fakeSpeaker) cueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cues
}

func (s *fakeSpeaker) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

func (s *fakeSpeaker) spokeContaining(sub string) bool {
	for _, t := range s.spokenTexts() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

// memStore is an in-memory single-session store recording save counts.
type memStore struct {
	mu    sync.Mutex
	saves int
	last  *models.Session
}

func (s *memStore) Save(_ context.Context, sess *models.Session) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.last = sess.Clone()
	return 0, nil
}

func (s *memStore) LoadCurrent(context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *memStore) Load(context.Context, string) (*models.Session, error) { return nil, nil }
func (s *memStore) ListAll(context.Context) ([]*models.Session, error)    { return nil, nil }
func (s *memStore) Delete(context.Context, string) error                  { return nil }
func (s *memStore) ClearAll(context.Context) error                        { return nil }
func (s *memStore) Close() error                                          { return nil }

func (s *memStore) lastSaved() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return s.last.Clone()
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (n *recordingNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, text)
}

func (n *recordingNotifier) has(sub string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.notes {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

type fixture struct {
	m   *Machine
	lis *fakeListener
	spk *fakeSpeaker
	st  *memStore
	not *recordingNotifier
}

func newFixture(t *testing.T, questions int) (*fixture, *models.Session) {
	t.Helper()
	qs := make([]models.Question, questions)
	for i := range qs {
		qs[i] = models.Question{
			ID:   fmt.Sprintf("q-%d", i+1),
			Text: fmt.Sprintf("question %d", i+1),
		}
	}
	sess := models.NewSession(qs)

	f := &fixture{
		lis: newFakeListener(),
		spk: newFakeSpeaker(),
		st:  &memStore{},
		not: &recordingNotifier{},
	}
	f.m = New(Deps{
		Listener: f.lis,
		Speaker:  f.spk,
		Store:    f.st,
		Notifier: f.not,
		Log:      zerolog.Nop(),
	}, Config{RelistenCooldown: 5 * time.Millisecond})
	return f, sess
}

func (f *fixture) start(t *testing.T, sess *models.Session) {
	t.Helper()
	if err := f.m.Start(context.Background(), sess); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(f.m.Stop)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (f *fixture) awaitListening(t *testing.T, minCalls int) {
	t.Helper()
	waitFor(t, func() bool {
		return f.lis.listenCalls() >= minCalls && f.lis.IsListening()
	}, fmt.Sprintf("machine never reached listen #%d", minCalls))
}

func TestMachine_Start_Validation(t *testing.T) {
	f, _ := newFixture(t, 0)
	if err := f.m.Start(context.Background(), models.NewSession(nil)); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}

	f2, sess := newFixture(t, 2)
	f2.start(t, sess)
	if err := f2.m.Start(context.Background(), sess); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestMachine_SpeaksQuestionThenListens(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	spoken := f.spk.spokenTexts()
	if len(spoken) == 0 || spoken[0] != "question 1" {
		t.Errorf("expected question 1 announced first, got %v", spoken)
	}
	if f.spk.cueCount() == 0 {
		t.Error("expected acknowledgment cue before listening")
	}
	if f.m.State() != StateListening {
		t.Errorf("expected StateListening, got %v", f.m.State())
	}
}

func TestMachine_AnswerMergesAndAutoAdvances(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "blue whales"}

	waitFor(t, func() bool { return f.spk.spokeContaining("question 2") },
		"machine never advanced to question 2")

	snap := f.m.Snapshot()
	if st := snap.StateOf("q-1"); st.Answer != "blue whales" || st.Status != models.StatusAnswered {
		t.Errorf("unexpected q-1 state: %+v", st)
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("expected index 1, got %d", snap.CurrentIndex)
	}
	if f.st.lastSaved() == nil {
		t.Error("expected session persisted")
	}
}

func TestMachine_NeverSpeakingAndListeningAtOnce(t *testing.T) {
	f, sess := newFixture(t, 3)
	f.start(t, sess)

	stop := make(chan struct{})
	violated := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if f.spk.IsSpeaking() && f.lis.IsListening() {
				select {
				case violated <- struct{}{}:
				default:
				}
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "first"}
	waitFor(t, func() bool { return f.spk.spokeContaining("question 2") }, "no advance to question 2")
	f.awaitListening(t, 2)
	f.lis.feed <- listenResult{text: "second"}
	waitFor(t, func() bool { return f.spk.spokeContaining("question 3") }, "no advance to question 3")
	close(stop)

	select {
	case <-violated:
		t.Fatal("speaking and listening were engaged at the same time")
	default:
	}
}

func TestMachine_CommandStripping_AnswerThenNext(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "my answer is forty daytrace next"}

	waitFor(t, func() bool { return f.spk.spokeContaining("question 2") },
		"next command never navigated")

	snap := f.m.Snapshot()
	if st := snap.StateOf("q-1"); st.Answer != "my answer is forty" {
		t.Errorf("expected stripped answer, got %q", st.Answer)
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("expected index 1, got %d", snap.CurrentIndex)
	}
}

func TestMachine_SkipCommandMarksSkipped(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "skip"}

	waitFor(t, func() bool { return f.spk.spokeContaining("question 2") },
		"skip never navigated")

	snap := f.m.Snapshot()
	if st := snap.StateOf("q-1"); st.Status != models.StatusSkipped {
		t.Errorf("expected skipped, got %v", st.Status)
	}
}

func TestMachine_EmptyCaptureRelistensWithoutReannounce(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: ""}

	f.awaitListening(t, 2)
	if got := len(f.spk.spokenTexts()); got != 1 {
		t.Errorf("re-listen must not re-announce the question, spoke %d times", got)
	}
}

func TestMachine_PauseWhileListeningDiscardsCapture(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	if err := f.m.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	waitFor(t, func() bool { return f.m.State() == StatePaused }, "never paused")

	// The capture that Stop resolved must not be merged as an answer.
	snap := f.m.Snapshot()
	if st := snap.StateOf("q-1"); st.Answer != "" || st.Status != models.StatusPending {
		t.Errorf("paused capture leaked into state: %+v", st)
	}

	spokenBefore := len(f.spk.spokenTexts())
	if err := f.m.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	f.awaitListening(t, 2)
	// Resuming a paused capture goes straight back to listening.
	if got := len(f.spk.spokenTexts()); got != spokenBefore {
		t.Errorf("resume-as-listen must not re-announce, spoke %d extra", got-spokenBefore)
	}

	f.lis.feed <- listenResult{text: "hello"}
	waitFor(t, func() bool {
		return f.m.Snapshot().StateOf("q-1").Answer == "hello"
	}, "answer after resume never merged")
}

func TestMachine_PauseWhileSpeakingResumesWithAnnounce(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.spk.holdNext = true
	f.start(t, sess)

	waitFor(t, func() bool { return f.spk.IsSpeaking() }, "never started speaking")
	if err := f.m.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	waitFor(t, func() bool { return f.m.State() == StatePaused && !f.spk.IsSpeaking() }, "never paused")

	if err := f.m.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, func() bool {
		spoken := f.spk.spokenTexts()
		return len(spoken) >= 2 && spoken[1] == "question 1"
	}, "resume never re-read the question")
}

func TestMachine_PauseTwiceIsNoOp(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	if err := f.m.Pause(); err != nil {
		t.Fatalf("first pause: %v", err)
	}
	if err := f.m.Pause(); err != nil {
		t.Fatalf("second pause must be a no-op, got %v", err)
	}
	if !f.not.has("Already paused") {
		t.Error("expected a user-visible notice for the no-op pause")
	}
	if f.m.State() != StatePaused {
		t.Errorf("expected StatePaused, got %v", f.m.State())
	}
}

func TestMachine_ResumeWithoutPauseIsNoOp(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	if err := f.m.Resume(); err != nil {
		t.Fatalf("resume while running must be a no-op, got %v", err)
	}
	if !f.not.has("not paused") {
		t.Error("expected a user-visible notice for the no-op resume")
	}
}

func TestMachine_ManualNextTearsDownCapture(t *testing.T) {
	f, sess := newFixture(t, 3)
	f.start(t, sess)

	f.awaitListening(t, 1)
	if err := f.m.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	waitFor(t, func() bool { return f.spk.spokeContaining("question 2") },
		"next never announced question 2")
	if f.lis.stopCount() == 0 {
		t.Error("expected in-flight capture to be stopped before navigating")
	}
	snap := f.m.Snapshot()
	if snap.CurrentIndex != 1 {
		t.Errorf("expected index 1, got %d", snap.CurrentIndex)
	}
	// A plain next on an empty pending question leaves it pending.
	if st := snap.StateOf("q-1"); st.Status != models.StatusPending {
		t.Errorf("expected q-1 still pending, got %v", st.Status)
	}
}

func TestMachine_JumpOutOfRangeKeepsIndex(t *testing.T) {
	f, sess := newFixture(t, 3)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "jump to nine"}

	waitFor(t, func() bool { return f.not.has("does not exist") },
		"rejected jump never produced a notice")
	f.awaitListening(t, 2)
	if idx := f.m.Snapshot().CurrentIndex; idx != 0 {
		t.Errorf("index must be unchanged, got %d", idx)
	}
}

func TestMachine_ReviewingModeAtEndAppendsAnswer(t *testing.T) {
	f, sess := newFixture(t, 2)
	sess.CurrentIndex = 1
	sess.States["q-2"] = models.QuestionState{Answer: "old", Status: models.StatusAnswered}
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "addition"}

	waitFor(t, func() bool { return f.not.has("last question") },
		"reviewing mode never reported end of list")
	snap := f.m.Snapshot()
	if st := snap.StateOf("q-2"); st.Answer != "old addition" {
		t.Errorf("expected appended answer, got %q", st.Answer)
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("expected index unchanged at 1, got %d", snap.CurrentIndex)
	}
}

func TestMachine_CompletionStopsSession(t *testing.T) {
	f, sess := newFixture(t, 1)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "the only answer"}

	waitFor(t, func() bool { return f.m.State() == StateInactive }, "session never completed")
	if !f.spk.spokeContaining("complete") {
		t.Error("expected completion announcement")
	}
	if last := f.st.lastSaved(); last == nil || last.Active {
		t.Errorf("expected inactive session persisted, got %+v", last)
	}
}

func TestMachine_ClearAnswerResetsState(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "first thoughts"}
	waitFor(t, func() bool { return f.spk.spokeContaining("question 2") }, "no advance")

	if err := f.m.Prev(); err != nil {
		t.Fatalf("prev: %v", err)
	}
	waitFor(t, func() bool { return f.m.Snapshot().CurrentIndex == 0 }, "prev never applied")

	if err := f.m.ClearAnswer(); err != nil {
		t.Fatalf("clear answer: %v", err)
	}
	waitFor(t, func() bool {
		st := f.m.Snapshot().StateOf("q-1")
		return st.Answer == "" && st.Status == models.StatusPending
	}, "answer never cleared")
	if !f.not.has("cleared") {
		t.Error("expected a user-visible notice")
	}
}

func TestMachine_SummarySpeaksCounts(t *testing.T) {
	f, sess := newFixture(t, 3)
	sess.States["q-1"] = models.QuestionState{Answer: "x", Status: models.StatusAnswered}
	sess.States["q-2"] = models.QuestionState{Status: models.StatusSkipped}
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{text: "summary"}

	waitFor(t, func() bool {
		return f.spk.spokeContaining("1 answered, 1 skipped, 1 remaining")
	}, "summary never spoken")
}

func TestMachine_FatalCaptureErrorStopsSession(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.lis.feed <- listenResult{err: recognizer.ErrPermissionDenied}

	waitFor(t, func() bool { return f.m.State() == StateInactive }, "fatal error never stopped the session")
	if !f.not.has("capture failed") {
		t.Error("expected a user-visible failure notice")
	}
}

func TestMachine_StopTearsDownAndPersists(t *testing.T) {
	f, sess := newFixture(t, 2)
	f.start(t, sess)

	f.awaitListening(t, 1)
	f.m.Stop()

	if f.m.State() != StateInactive {
		t.Errorf("expected StateInactive, got %v", f.m.State())
	}
	if last := f.st.lastSaved(); last == nil || last.Active {
		t.Errorf("expected inactive snapshot persisted, got %+v", last)
	}

	// Stop is idempotent.
	f.m.Stop()
}
