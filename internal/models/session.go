// Package models defines the session data structures shared by the turn
// orchestrator, the navigation logic and the session store.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a single question.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnswered Status = "answered"
	StatusSkipped  Status = "skipped"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAnswered, StatusSkipped:
		return true
	}
	return false
}

// Question is a single question in the session list. Questions are created
// on import and never edited in place; Context carries opaque metadata that
// is echoed back on export.
type Question struct {
	ID      string
	Text    string
	Context map[string]json.RawMessage
}

// QuestionState holds the mutable per-question state, keyed by question id.
type QuestionState struct {
	Answer string `json:"answer"`
	Status Status `json:"status"`
}

// Session is the full persisted snapshot of a Q&A run.
//
// Invariants:
//   - every question id in Questions has an entry in States
//   - CurrentIndex is in [0, len(Questions)) whenever Questions is non-empty
type Session struct {
	ID           string                   `json:"id"`
	Timestamp    time.Time                `json:"timestamp"`
	Questions    []Question               `json:"questions"`
	States       map[string]QuestionState `json:"states"`
	CurrentIndex int                      `json:"currentIndex"`
	Active       bool                     `json:"active"`
}

// NewSession builds a fresh session over the given questions with every
// state initialized to an empty pending answer.
func NewSession(questions []Question) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Questions: questions,
		States:    make(map[string]QuestionState, len(questions)),
	}
	for _, q := range questions {
		s.States[q.ID] = QuestionState{Status: StatusPending}
	}
	return s
}

// Current returns the question at CurrentIndex, or false when the list is
// empty.
func (s *Session) Current() (Question, bool) {
	if len(s.Questions) == 0 || s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// StateOf returns the state for the given question id, falling back to an
// empty pending state if the id is unknown.
func (s *Session) StateOf(id string) QuestionState {
	if st, ok := s.States[id]; ok {
		return st
	}
	return QuestionState{Status: StatusPending}
}

// Clone returns a deep copy of the session. The turn machine works on a
// copy and writes back through the store, never sharing the stored value.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Questions = make([]Question, len(s.Questions))
	copy(cp.Questions, s.Questions)
	cp.States = make(map[string]QuestionState, len(s.States))
	for id, st := range s.States {
		cp.States[id] = st
	}
	return &cp
}

// Summary holds progress counts across the whole question list.
type Summary struct {
	TotalQuestions int `json:"totalQuestions"`
	Answered       int `json:"answered"`
	Skipped        int `json:"skipped"`
	Pending        int `json:"pending"`
}

// Summarize computes progress counts from the per-question states.
func (s *Session) Summarize() Summary {
	sum := Summary{TotalQuestions: len(s.Questions)}
	for _, q := range s.Questions {
		switch s.StateOf(q.ID).Status {
		case StatusAnswered:
			sum.Answered++
		case StatusSkipped:
			sum.Skipped++
		default:
			sum.Pending++
		}
	}
	return sum
}
