package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/network"
)

const (
	defaultTopic   = "dronesim/pose"
	publishTimeout = 2 * time.Second
	disconnectMS   = 250
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// MQTTPublisher publishes samples as JSON to a single topic at QoS 0. Every
// publish goes through a circuit breaker.
type MQTTPublisher struct {
	client   mqtt.Client
	topic    string
	retained bool
	breaker  *network.Breaker
	logger   *logging.Logger

	mu     sync.Mutex
	closed bool
}

// DialMQTT connects to cfg.Broker and returns a publisher for cfg.Topic.
func DialMQTT(ctx context.Context, cfg config.MQTTConfig, breaker *network.Breaker, logger *logging.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker address is empty")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	if logger != nil {
		logger.Info(ctx, "connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)
	}
	return NewMQTTPublisher(client, cfg, breaker, logger), nil
}

// NewMQTTPublisher wraps an already connected client. A nil breaker gets a
// default one.
func NewMQTTPublisher(client mqtt.Client, cfg config.MQTTConfig, breaker *network.Breaker, logger *logging.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	if breaker == nil {
		breaker = network.NewBreaker("mqtt", config.DefaultConfig().Telemetry.Breaker, logger)
	}
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	return &MQTTPublisher{
		client:   client,
		topic:    topic,
		retained: cfg.Retained,
		breaker:  breaker,
		logger:   logger,
	}
}

// Topic returns the topic samples are published to.
func (p *MQTTPublisher) Topic() string {
	return p.topic
}

// Publish encodes s and sends it to the broker.
func (p *MQTTPublisher) Publish(ctx context.Context, s Sample) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	return p.breaker.Execute(ctx, func() error {
		token := p.client.Publish(p.topic, 0, p.retained, payload)
		if !token.WaitTimeout(publishTimeout) {
			return errPublishTimeout
		}
		return token.Error()
	})
}

// Connected reports whether the underlying client has a live connection.
func (p *MQTTPublisher) Connected() bool {
	return p.client.IsConnected()
}

// Breaker exposes the breaker guarding publishes.
func (p *MQTTPublisher) Breaker() *network.Breaker {
	return p.breaker
}

// Close disconnects from the broker. It is safe to call more than once.
func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.client.Disconnect(disconnectMS)
	return nil
}
