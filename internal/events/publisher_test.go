package events

import (
	"context"
	"testing"

	"voice-qa-session/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"nil brokers", &Config{Enabled: true, Brokers: nil}},
		{"nil config", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerTranscripts != nil {
				t.Error("expected nil transcripts writer when disabled")
			}
			if p.writerSession != nil {
				t.Error("expected nil session writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:          false,
		Brokers:          []string{"localhost:9092"},
		TopicTranscripts: "voiceqa.transcripts",
		TopicSession:     "voiceqa.sessions",
		Principal:        "voice-qa-session",
	}

	p := New(cfg)

	if p.principal != "voice-qa-session" {
		t.Errorf("expected principal 'voice-qa-session', got %s", p.principal)
	}
	if p.topicTranscripts != "voiceqa.transcripts" {
		t.Errorf("expected transcripts topic 'voiceqa.transcripts', got %s", p.topicTranscripts)
	}
	if p.topicSession != "voiceqa.sessions" {
		t.Errorf("expected session topic 'voiceqa.sessions', got %s", p.topicSession)
	}
}

func TestPublisher_PublishAnswerCaptured_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicTranscripts: "voiceqa.transcripts"})

	ev := models.AnswerCaptured{
		EventType:  "answer.captured",
		SessionID:  "sess-1",
		QuestionID: "q-1",
		Text:       "blue whales",
	}
	if err := p.PublishAnswerCaptured(context.Background(), ev); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishCommandRecognized_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicTranscripts: "voiceqa.transcripts"})

	ev := models.CommandRecognized{
		EventType: "command.recognized",
		SessionID: "sess-1",
		Kind:      "jump",
		Argument:  3,
	}
	if err := p.PublishCommandRecognized(context.Background(), ev); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishSessionSaved_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicSession: "voiceqa.sessions"})

	ev := models.SessionSaved{
		EventType:    "session.saved",
		SessionID:    "sess-1",
		CurrentIndex: 2,
		Active:       true,
		Answered:     2,
		Pending:      1,
	}
	if err := p.PublishSessionSaved(context.Background(), ev); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilWriters(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
