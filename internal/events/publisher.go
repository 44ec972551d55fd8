// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speako/internal/models"
	"speako/internal/observability/metrics"
	"speako/internal/schema"
)

// Publisher publishes transcript events to separate Kafka topics.
//
// Writers are asynchronous: publishing never blocks the session thread.
// Delivery results are reported to metrics and the log.
type Publisher struct {
	writerInterim *kafka.Writer
	writerFinal   *kafka.Writer
	principal     string
	topicInterim  string
	topicFinal    string
	enabled       bool
	validator     *schema.Validator
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicInterim string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// New creates a new Kafka event publisher with separate topics for interim and final transcripts.
// A nil m uses metrics.DefaultMetrics.
func New(cfg *Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			validator: schema.New(),
			metrics:   m,
		}
	}

	p := &Publisher{
		principal:    cfg.Principal,
		topicInterim: cfg.TopicInterim,
		topicFinal:   cfg.TopicFinal,
		validator:    schema.New(),
		metrics:      m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerInterim = p.newWriter(cfg.Brokers, cfg.TopicInterim, models.EventTypeInterim, transport)
	p.writerFinal = p.newWriter(cfg.Brokers, cfg.TopicFinal, models.EventTypeFinal, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicInterim", cfg.TopicInterim).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func (p *Publisher) newWriter(brokers []string, topic, eventType string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			p.complete(topic, eventType, messages, err)
		},
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishInterim publishes an interim transcript event to the interim topic.
func (p *Publisher) PublishInterim(ctx context.Context, event models.TranscriptInterim) error {
	return p.publish(ctx, p.writerInterim, p.topicInterim, models.EventTypeInterim, event.SessionID, event)
}

// PublishFinal publishes a final transcript event to the final topic.
func (p *Publisher) PublishFinal(ctx context.Context, event models.TranscriptFinal) error {
	return p.publish(ctx, p.writerFinal, p.topicFinal, models.EventTypeFinal, event.SessionID, event)
}

// publish validates, encodes and hands one event to a writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Event failed schema validation")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

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
		Time:  start,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	// Async writer: errors arrive in complete.
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to enqueue Kafka message")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}
	return nil
}

// complete records delivery of an async batch.
func (p *Publisher) complete(topic, eventType string, messages []kafka.Message, err error) {
	for _, m := range messages {
		latency := time.Since(m.Time).Seconds()
		p.metrics.RecordKafkaPublish(topic, eventType, err, latency)
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Int("messages", len(messages)).
			Msg("Failed to write to Kafka")
	}
}

// Close flushes and closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerInterim != nil {
		if e := p.writerInterim.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing interim writer")
			err = e
		}
	}
	if p.writerFinal != nil {
		if e := p.writerFinal.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing final writer")
			err = e
		}
	}
	return err
}
