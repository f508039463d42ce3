// Package nav computes navigation decisions over the question list. All
// functions are pure: they return the new index and the status transitions
// to apply, and never touch storage or engines themselves.
package nav

import (
	"errors"

	"voice-qa-session/internal/models"
)

// Intent is a manual navigation request.
type Intent int

const (
	IntentNext Intent = iota
	IntentPrev
	IntentSkip
	IntentJump
)

// String returns the intent name.
func (i Intent) String() string {
	switch i {
	case IntentNext:
		return "next"
	case IntentPrev:
		return "prev"
	case IntentSkip:
		return "skip"
	case IntentJump:
		return "jump"
	default:
		return "unknown"
	}
}

// ErrOutOfRange rejects a jump outside the question list. The index is
// left unchanged.
var ErrOutOfRange = errors.New("nav: jump target out of range")

// StatusChange is one per-question status transition to apply.
type StatusChange struct {
	QuestionID string
	Status     models.Status
}

// Decision is the outcome of a navigation computation.
type Decision struct {
	Index   int
	Changes []StatusChange
	Moved   bool

	// Completed is set in completing mode when no pending question
	// remains anywhere later in the list.
	Completed bool

	// AtEnd is set in reviewing mode when already at the last question.
	AtEnd bool
}

// Navigate computes the outcome of a manual navigation intent. arg is the
// 1-based target for IntentJump and ignored otherwise. Navigating an
// empty list is a no-op.
func Navigate(questions []models.Question, states map[string]models.QuestionState, current int, intent Intent, arg int) (Decision, error) {
	d := Decision{Index: current}
	if len(questions) == 0 {
		return d, nil
	}

	switch intent {
	case IntentNext, IntentSkip:
		// A question left behind by next/skip settles its status:
		// answered if something was said, skipped only on an explicit
		// skip. A plain next on an empty pending question leaves it
		// pending.
		id := questions[current].ID
		if st := stateOf(states, id); st.Status == models.StatusPending {
			switch {
			case st.Answer != "":
				d.Changes = append(d.Changes, StatusChange{QuestionID: id, Status: models.StatusAnswered})
			case intent == IntentSkip:
				d.Changes = append(d.Changes, StatusChange{QuestionID: id, Status: models.StatusSkipped})
			}
		}
		if current < len(questions)-1 {
			d.Index = current + 1
		}
	case IntentPrev:
		if current > 0 {
			d.Index = current - 1
		}
	case IntentJump:
		if arg < 1 || arg > len(questions) {
			return d, ErrOutOfRange
		}
		d.Index = arg - 1
	}

	d.Moved = d.Index != current
	return d, nil
}

// AutoAdvance computes where to go after a capture was merged into the
// current question's answer. wasBlank selects the mode: completing mode
// (the question had no answer before this capture) seeks the next pending
// question anywhere later in the list; reviewing mode (re-recording an
// already-answered question) advances sequentially so a review pass is
// not redirected.
func AutoAdvance(questions []models.Question, states map[string]models.QuestionState, current int, wasBlank bool) Decision {
	d := Decision{Index: current}
	if len(questions) == 0 {
		return d
	}

	if wasBlank {
		for i := current + 1; i < len(questions); i++ {
			if stateOf(states, questions[i].ID).Status == models.StatusPending {
				d.Index = i
				d.Moved = true
				return d
			}
		}
		d.Completed = true
		return d
	}

	if current >= len(questions)-1 {
		d.AtEnd = true
		return d
	}
	d.Index = current + 1
	d.Moved = true
	return d
}

func stateOf(states map[string]models.QuestionState, id string) models.QuestionState {
	if st, ok := states[id]; ok {
		return st
	}
	return models.QuestionState{Status: models.StatusPending}
}
