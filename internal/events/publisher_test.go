package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"speako/internal/models"
	"speako/internal/observability/metrics"
	"speako/internal/schema"
)

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func finalEvent() models.TranscriptFinal {
	return models.TranscriptFinal{
		EventType: models.EventTypeFinal,
		SessionID: "sess-123",
		AttemptID: "sess-123-attempt-1",
		Language:  "en-US",
		Timestamp: time.Now().UnixMilli(),
		Text:      "hello world",
		Sequence:  1,
	}
}

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, testMetrics())
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writerInterim != nil {
				t.Error("expected nil interim writer when disabled")
			}
			if p.writerFinal != nil {
				t.Error("expected nil final writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicInterim: "test.interim",
		TopicFinal:   "test.final",
		Principal:    "test-principal",
	}, testMetrics())

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicInterim != "test.interim" {
		t.Errorf("expected topic interim 'test.interim', got %s", p.topicInterim)
	}
	if p.topicFinal != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.topicFinal)
	}
}

func TestNew_EnabledBuildsAsyncWriters(t *testing.T) {
	p := New(&Config{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		TopicInterim: "speako.interim",
		TopicFinal:   "speako.final",
	}, testMetrics())
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled")
	}
	if !p.writerInterim.Async || !p.writerFinal.Async {
		t.Error("expected async writers")
	}
	if p.writerInterim.Topic != "speako.interim" || p.writerFinal.Topic != "speako.final" {
		t.Errorf("unexpected topics %s / %s", p.writerInterim.Topic, p.writerFinal.Topic)
	}
}

func TestPublisher_PublishFinal_Disabled(t *testing.T) {
	m := testMetrics()
	p := New(&Config{Enabled: false, TopicFinal: "test.final"}, m)

	if err := p.PublishFinal(context.Background(), finalEvent()); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
	got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("test.final", models.EventTypeFinal))
	if got != 1 {
		t.Errorf("expected 1 recorded publish, got %v", got)
	}
}

func TestPublisher_PublishInterim_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false}, testMetrics())

	err := p.PublishInterim(context.Background(), models.TranscriptInterim{
		EventType: models.EventTypeInterim,
		SessionID: "sess-123",
		AttemptID: "sess-123-attempt-1",
		Timestamp: time.Now().UnixMilli(),
		Text:      "hel",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvent(t *testing.T) {
	m := testMetrics()
	p := New(&Config{Enabled: false, TopicFinal: "test.final"}, m)

	ev := finalEvent()
	ev.SessionID = ""
	err := p.PublishFinal(context.Background(), ev)

	if !errors.Is(err, schema.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
	got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("test.final", models.EventTypeFinal))
	if got != 1 {
		t.Errorf("expected 1 publish error, got %v", got)
	}
}

func TestPublisher_CompleteRecordsDelivery(t *testing.T) {
	m := testMetrics()
	p := New(&Config{Enabled: false}, m)

	msgs := []kafka.Message{{Time: time.Now()}, {Time: time.Now()}}
	p.complete("t", models.EventTypeFinal, msgs, nil)
	p.complete("t", models.EventTypeFinal, msgs[:1], errors.New("broker down"))

	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("t", models.EventTypeFinal)); got != 3 {
		t.Errorf("expected 3 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("t", models.EventTypeFinal)); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false}, testMetrics())

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
