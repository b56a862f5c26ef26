package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// messageWriter mirrors the subset of kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alerts to a Kafka topic keyed by identity, so all
// alerts of one person land on the same partition in order.
type KafkaPublisher struct {
	writer  messageWriter
	metrics *metrics.AlertMetrics
}

// NewKafkaPublisher creates a publisher for the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, m *metrics.AlertMetrics) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, metrics: m}
}

// Publish writes the alert.
func (p *KafkaPublisher) Publish(ctx context.Context, alert Alert) (err error) {
	start := time.Now()
	defer func() { p.metrics.ObservePublish("kafka", start, err) }()

	payload, err := alert.Payload()
	if err != nil {
		return fmt.Errorf("kafka: encode alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(alert.Identity),
		Value: payload,
		Time:  alert.DetectedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write alert: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
