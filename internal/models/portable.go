package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors returned while parsing an import document.
var (
	ErrEmptyImport   = errors.New("import contains no questions")
	ErrMissingText   = errors.New("question text is required")
	ErrDuplicateID   = errors.New("duplicate question id")
	ErrUnknownFormat = errors.New("unrecognized import format")
)

// Keys with a fixed meaning in question objects. Everything else is opaque
// context echoed back on export.
var reservedKeys = map[string]bool{
	"question": true,
	"id":       true,
	"answer":   true,
	"status":   true,
}

// ImportResult is the outcome of parsing an import document: the question
// list plus the per-question states (pending for a plain import, carried
// over for a session continuation).
type ImportResult struct {
	Questions []Question
	States    map[string]QuestionState
}

// ParseImport decodes either a plain question array or a previously
// exported session document (used to continue a session).
func ParseImport(data []byte) (*ImportResult, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse import: %w", err)
	}

	trimmed := firstByte(probe)
	switch trimmed {
	case '[':
		var raw []map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse import: %w", err)
		}
		return fromQuestionObjects(raw)
	case '{':
		var doc struct {
			Questions []map[string]json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse import: %w", err)
		}
		if doc.Questions == nil {
			return nil, ErrUnknownFormat
		}
		return fromQuestionObjects(doc.Questions)
	default:
		return nil, ErrUnknownFormat
	}
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func fromQuestionObjects(raw []map[string]json.RawMessage) (*ImportResult, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImport
	}

	res := &ImportResult{
		Questions: make([]Question, 0, len(raw)),
		States:    make(map[string]QuestionState, len(raw)),
	}
	seen := make(map[string]bool, len(raw))

	for i, obj := range raw {
		var text string
		if err := unmarshalOptional(obj["question"], &text); err != nil || text == "" {
			return nil, fmt.Errorf("question %d: %w", i+1, ErrMissingText)
		}

		var id string
		if err := unmarshalOptional(obj["id"], &id); err != nil {
			return nil, fmt.Errorf("question %d: bad id: %w", i+1, err)
		}
		if id == "" {
			id = fmt.Sprintf("q-%d", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("question %d (%s): %w", i+1, id, ErrDuplicateID)
		}
		seen[id] = true

		q := Question{ID: id, Text: text}
		for k, v := range obj {
			if reservedKeys[k] {
				continue
			}
			if q.Context == nil {
				q.Context = make(map[string]json.RawMessage)
			}
			q.Context[k] = v
		}
		res.Questions = append(res.Questions, q)

		st := QuestionState{Status: StatusPending}
		var answer string
		if err := unmarshalOptional(obj["answer"], &answer); err == nil {
			st.Answer = answer
		}
		var status Status
		if err := unmarshalOptional(obj["status"], &status); err == nil && status.Valid() {
			st.Status = status
		}
		res.States[id] = st
	}
	return res, nil
}

func unmarshalOptional(raw json.RawMessage, v any) error {
	if raw == nil {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// SessionInfo identifies the exported session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
}

// ExportDocument is the on-disk export format. Question context fields are
// flattened back into each question object.
type ExportDocument struct {
	ExportedAt  time.Time         `json:"exportedAt"`
	SessionInfo SessionInfo       `json:"sessionInfo"`
	Questions   []json.RawMessage `json:"questions"`
	Summary     Summary           `json:"summary"`
}

// Export builds the export document for a session. Re-importing the result
// with ParseImport reproduces identical answers and statuses per id.
func Export(s *Session, title string) (*ExportDocument, error) {
	doc := &ExportDocument{
		ExportedAt: time.Now().UTC(),
		SessionInfo: SessionInfo{
			ID:        s.ID,
			Timestamp: s.Timestamp,
			Title:     title,
			Date:      s.Timestamp.Format("2006-01-02"),
		},
		Questions: make([]json.RawMessage, 0, len(s.Questions)),
		Summary:   s.Summarize(),
	}

	for _, q := range s.Questions {
		st := s.StateOf(q.ID)
		obj := make(map[string]json.RawMessage, len(q.Context)+4)
		for k, v := range q.Context {
			obj[k] = v
		}
		var err error
		if obj["id"], err = json.Marshal(q.ID); err != nil {
			return nil, err
		}
		if obj["question"], err = json.Marshal(q.Text); err != nil {
			return nil, err
		}
		if obj["answer"], err = json.Marshal(st.Answer); err != nil {
			return nil, err
		}
		if obj["status"], err = json.Marshal(st.Status); err != nil {
			return nil, err
		}
		enc, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		doc.Questions = append(doc.Questions, enc)
	}
	return doc, nil
}

// MarshalJSON for Question keeps the persisted session snapshot in the same
// shape as the import format (context fields flattened).
func (q Question) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(q.Context)+2)
	for k, v := range q.Context {
		obj[k] = v
	}
	var err error
	if obj["id"], err = json.Marshal(q.ID); err != nil {
		return nil, err
	}
	if obj["question"], err = json.Marshal(q.Text); err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (q *Question) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if err := unmarshalOptional(obj["id"], &q.ID); err != nil {
		return err
	}
	if err := unmarshalOptional(obj["question"], &q.Text); err != nil {
		return err
	}
	q.Context = nil
	for k, v := range obj {
		if reservedKeys[k] {
			continue
		}
		if q.Context == nil {
			q.Context = make(map[string]json.RawMessage)
		}
		q.Context[k] = v
	}
	return nil
}
