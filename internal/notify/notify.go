// Package notify publishes watchlist match alerts to message brokers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/metrics"
)

// Alert is the message published for every persisted watchlist match.
type Alert struct {
	EventID    int64     `json:"event_id"`
	Identity   string    `json:"identity"`
	Confidence float64   `json:"confidence"`
	Channel    string    `json:"channel"`
	ImageRef   string    `json:"image_ref"`
	DetectedAt time.Time `json:"detected_at"`
}

// AlertFromEvent builds the alert for a persisted event.
func AlertFromEvent(ev database.MatchEvent) Alert {
	return Alert{
		EventID:    ev.ID,
		Identity:   ev.Label,
		Confidence: ev.Confidence,
		Channel:    string(ev.Channel),
		ImageRef:   ev.ImageRef,
		DetectedAt: ev.CreatedAt,
	}
}

// Payload returns the JSON encoding of the alert.
func (a Alert) Payload() ([]byte, error) {
	return json.Marshal(a)
}

// Publisher delivers alerts.
type Publisher interface {
	Publish(ctx context.Context, alert Alert) error
	Close() error
}

// Nop discards alerts.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Alert) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Multi fans an alert out to several publishers. Every publisher is tried;
// the errors are joined.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, alert Alert) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the publisher for the configured brokers. Without any broker
// configured it returns Nop.
func New(ctx context.Context, cfg *config.Config, m *metrics.AlertMetrics, logger *slog.Logger) (Publisher, error) {
	var pubs Multi

	if cfg.MQTT.Broker != "" {
		p, err := NewMQTTPublisher(ctx, cfg.MQTT, m, logger)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pubs = append(pubs, NewKafkaPublisher(cfg.Kafka, m))
	}

	switch len(pubs) {
	case 0:
		return Nop{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}
