package nav

import (
	"errors"
	"fmt"
	"testing"

	"voice-qa-session/internal/models"
)

func makeQuestions(n int) ([]models.Question, map[string]models.QuestionState) {
	qs := make([]models.Question, n)
	states := make(map[string]models.QuestionState, n)
	for i := range qs {
		id := fmt.Sprintf("q-%d", i+1)
		qs[i] = models.Question{ID: id, Text: fmt.Sprintf("question %d", i+1)}
		states[id] = models.QuestionState{Status: models.StatusPending}
	}
	return qs, states
}

func TestNavigate_NextAdvancesAndClamps(t *testing.T) {
	qs, states := makeQuestions(3)

	d, err := Navigate(qs, states, 0, IntentNext, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Index != 1 || !d.Moved {
		t.Errorf("expected move to 1, got %+v", d)
	}

	d, err = Navigate(qs, states, 2, IntentNext, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Index != 2 || d.Moved {
		t.Errorf("expected clamp at last question, got %+v", d)
	}
}

func TestNavigate_NextLeavesEmptyPendingAlone(t *testing.T) {
	qs, states := makeQuestions(2)

	d, err := Navigate(qs, states, 0, IntentNext, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Changes) != 0 {
		t.Errorf("plain next on empty pending question must not change status, got %+v", d.Changes)
	}
}

func TestNavigate_NextMarksNonEmptyPendingAnswered(t *testing.T) {
	qs, states := makeQuestions(2)
	states["q-1"] = models.QuestionState{Answer: "something", Status: models.StatusPending}

	d, err := Navigate(qs, states, 0, IntentNext, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Changes) != 1 || d.Changes[0].Status != models.StatusAnswered {
		t.Errorf("expected answered transition, got %+v", d.Changes)
	}
}

func TestNavigate_SkipMarksEmptyPendingSkipped(t *testing.T) {
	qs, states := makeQuestions(2)

	d, err := Navigate(qs, states, 0, IntentSkip, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Changes) != 1 || d.Changes[0].Status != models.StatusSkipped {
		t.Errorf("expected skipped transition, got %+v", d.Changes)
	}
	if d.Index != 1 {
		t.Errorf("expected move to 1, got %d", d.Index)
	}
}

func TestNavigate_SkipDoesNotDowngradeAnswered(t *testing.T) {
	qs, states := makeQuestions(2)
	states["q-1"] = models.QuestionState{Answer: "done", Status: models.StatusAnswered}

	d, err := Navigate(qs, states, 0, IntentSkip, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Changes) != 0 {
		t.Errorf("skip must not touch a settled status, got %+v", d.Changes)
	}
}

func TestNavigate_PrevClampsAtZero(t *testing.T) {
	qs, states := makeQuestions(3)

	d, err := Navigate(qs, states, 0, IntentPrev, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Index != 0 || d.Moved {
		t.Errorf("expected clamp at 0, got %+v", d)
	}

	d, _ = Navigate(qs, states, 2, IntentPrev, 0)
	if d.Index != 1 {
		t.Errorf("expected move to 1, got %d", d.Index)
	}
}

func TestNavigate_JumpBounds(t *testing.T) {
	qs, states := makeQuestions(5)

	for _, n := range []int{0, 6, -3} {
		d, err := Navigate(qs, states, 2, IntentJump, n)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("jump(%d): expected ErrOutOfRange, got %v", n, err)
		}
		if d.Index != 2 {
			t.Errorf("jump(%d): index must be unchanged, got %d", n, d.Index)
		}
	}

	d, err := Navigate(qs, states, 2, IntentJump, 5)
	if err != nil {
		t.Fatalf("jump(5): unexpected error: %v", err)
	}
	if d.Index != 4 {
		t.Errorf("jump(5): expected last question index 4, got %d", d.Index)
	}

	d, _ = Navigate(qs, states, 2, IntentJump, 1)
	if d.Index != 0 {
		t.Errorf("jump(1): expected index 0, got %d", d.Index)
	}
}

func TestNavigate_EmptyListIsNoOp(t *testing.T) {
	d, err := Navigate(nil, nil, 0, IntentNext, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Moved || len(d.Changes) != 0 {
		t.Errorf("expected no-op, got %+v", d)
	}
}

func TestAutoAdvance_CompletingModeSeeksNextPending(t *testing.T) {
	// Question 2 is already answered: completing mode on question 1
	// jumps directly to question 3.
	qs, states := makeQuestions(3)
	states["q-1"] = models.QuestionState{Answer: "fresh", Status: models.StatusAnswered}
	states["q-2"] = models.QuestionState{Answer: "earlier", Status: models.StatusAnswered}

	d := AutoAdvance(qs, states, 0, true)
	if d.Index != 2 || !d.Moved {
		t.Errorf("expected jump to question 3 (index 2), got %+v", d)
	}
}

func TestAutoAdvance_CompletingModeReportsCompletion(t *testing.T) {
	qs, states := makeQuestions(3)
	for id := range states {
		states[id] = models.QuestionState{Answer: "x", Status: models.StatusAnswered}
	}

	d := AutoAdvance(qs, states, 0, true)
	if !d.Completed || d.Moved {
		t.Errorf("expected completion report with no move, got %+v", d)
	}
}

func TestAutoAdvance_ReviewingModeAdvancesSequentially(t *testing.T) {
	// Question 2 is answered; reviewing mode still lands on it instead
	// of seeking the next pending one.
	qs, states := makeQuestions(3)
	states["q-2"] = models.QuestionState{Answer: "earlier", Status: models.StatusAnswered}

	d := AutoAdvance(qs, states, 0, false)
	if d.Index != 1 || !d.Moved {
		t.Errorf("expected sequential advance to index 1, got %+v", d)
	}
}

func TestAutoAdvance_ReviewingModeReportsEndOfList(t *testing.T) {
	qs, states := makeQuestions(3)

	d := AutoAdvance(qs, states, 2, false)
	if !d.AtEnd || d.Moved {
		t.Errorf("expected end-of-list report, got %+v", d)
	}
}

func TestAutoAdvance_EmptyList(t *testing.T) {
	d := AutoAdvance(nil, nil, 0, true)
	if d.Moved || d.Completed || d.AtEnd {
		t.Errorf("expected inert decision, got %+v", d)
	}
}
