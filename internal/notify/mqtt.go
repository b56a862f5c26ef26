package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/logging"
	"github.com/kozaktomas/facewatch/internal/metrics"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttPublishTimeout = 10 * time.Second
)

// mqttClient is the subset of mqtt.Client used by the publisher.
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes alerts as JSON to an MQTT topic.
type MQTTPublisher struct {
	client  mqttClient
	topic   string
	metrics *metrics.AlertMetrics
}

// NewMQTTPublisher connects to the broker. The paho client reconnects on its
// own after the initial connection.
func NewMQTTPublisher(ctx context.Context, cfg config.MQTTConfig, m *metrics.AlertMetrics, logger *slog.Logger) (*MQTTPublisher, error) {
	logger = logging.Component(logger, "mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection to MQTT broker lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mqttConnectTimeout):
		return nil, fmt.Errorf("mqtt: connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connection error: %w", err)
	}

	return newMQTTPublisher(client, cfg.Topic, m), nil
}

func newMQTTPublisher(client mqttClient, topic string, m *metrics.AlertMetrics) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, metrics: m}
}

// Publish sends the alert with QoS 1.
func (p *MQTTPublisher) Publish(ctx context.Context, alert Alert) (err error) {
	start := time.Now()
	defer func() { p.metrics.ObservePublish("mqtt", start, err) }()

	if !p.client.IsConnected() {
		return errors.New("mqtt: not connected to broker")
	}
	payload, err := alert.Payload()
	if err != nil {
		return fmt.Errorf("mqtt: encode alert: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return errors.New("mqtt: publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
