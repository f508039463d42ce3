// Package events publishes session events to Kafka, or logs them when
// Kafka is disabled.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-qa-session/internal/models"
	"voice-qa-session/internal/observability/metrics"
)

// Publisher publishes session events to separate Kafka topics: per-turn
// transcript events (answers, commands) and session snapshot events.
type Publisher struct {
	writerTranscripts *kafka.Writer
	writerSession     *kafka.Writer
	principal         string
	topicTranscripts  string
	topicSession      string
	enabled           bool
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicTranscripts string
	TopicSession     string
	Principal        string
	Enabled          bool
}

// New creates a Kafka event publisher. With Kafka disabled or no brokers
// configured it runs in log-only mode: publishes succeed and are logged
// but nothing leaves the process.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicTranscripts: cfg.TopicTranscripts,
			topicSession:     cfg.TopicSession,
			enabled:          false,
			metrics:          m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerTranscripts := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranscripts,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSession := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSession,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscripts", cfg.TopicTranscripts).
		Str("topicSession", cfg.TopicSession).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscripts: writerTranscripts,
		writerSession:     writerSession,
		principal:         cfg.Principal,
		topicTranscripts:  cfg.TopicTranscripts,
		topicSession:      cfg.TopicSession,
		enabled:           true,
		metrics:           m,
	}
}

// PublishAnswerCaptured publishes an answer event to the transcripts topic.
func (p *Publisher) PublishAnswerCaptured(ctx context.Context, ev models.AnswerCaptured) error {
	return p.publish(ctx, p.writerTranscripts, p.topicTranscripts, ev.EventType, ev.SessionID, ev)
}

// PublishCommandRecognized publishes a command event to the transcripts topic.
func (p *Publisher) PublishCommandRecognized(ctx context.Context, ev models.CommandRecognized) error {
	return p.publish(ctx, p.writerTranscripts, p.topicTranscripts, ev.EventType, ev.SessionID, ev)
}

// PublishSessionSaved publishes a snapshot event to the session topic.
func (p *Publisher) PublishSessionSaved(ctx context.Context, ev models.SessionSaved) error {
	return p.publish(ctx, p.writerSession, p.topicSession, ev.EventType, ev.SessionID, ev)
}

// publish writes one event to a specific Kafka writer, keyed by session
// id so events for one session stay ordered within a partition.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscripts != nil {
		if e := p.writerTranscripts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcripts writer")
			err = e
		}
	}
	if p.writerSession != nil {
		if e := p.writerSession.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing session writer")
			err = e
		}
	}
	return err
}
