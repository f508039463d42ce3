package models

// AnswerCaptured is emitted when a capture resolves with usable answer text
// for the current question.
type AnswerCaptured struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	Merged     bool   `json:"merged"`
	Timestamp  int64  `json:"timestamp"`
}

// CommandRecognized is emitted when a transcript carried a voice command.
type CommandRecognized struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Kind       string `json:"kind"`
	Argument   int    `json:"argument,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// SessionSaved is emitted after every successful store write.
type SessionSaved struct {
	EventType    string `json:"eventType"`
	SessionID    string `json:"sessionId"`
	CurrentIndex int    `json:"currentIndex"`
	Active       bool   `json:"active"`
	Answered     int    `json:"answered"`
	Skipped      int    `json:"skipped"`
	Pending      int    `json:"pending"`
	Timestamp    int64  `json:"timestamp"`
}
