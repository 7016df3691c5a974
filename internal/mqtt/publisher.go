// Package mqtt implements the confirmation dispatcher on an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/zenorc/zenorc/internal/common"
	"github.com/zenorc/zenorc/internal/service"
)

// Config holds the configuration for the MQTT publisher.
type Config struct {
	Broker         string
	Username       string
	Password       string
	Topic          string
	Payload        string
	ClientIDPrefix string
	Port           int
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	UseTLS         bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Broker:         "localhost",
		Port:           8883,
		Topic:          "Zenorc",
		Payload:        "paid",
		ClientIDPrefix: "zenorc",
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 10 * time.Second,
		UseTLS:         true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker address is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid broker port %d", c.Port)
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	return nil
}

// BrokerURL returns the broker address in paho's scheme://host:port form.
func (c *Config) BrokerURL() string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker, c.Port)
}

// Publisher implements the service.Dispatcher interface over MQTT. Every
// attempt uses a fresh connection: connect with a bounded acknowledgement
// wait, publish at QoS 1, disconnect. Nothing is reused between attempts.
type Publisher struct {
	newClient func(opts *pahomqtt.ClientOptions) pahomqtt.Client
	logger    *slog.Logger
	clientID  string
	config    Config
}

var _ service.Dispatcher = (*Publisher)(nil)

// NewPublisher creates an MQTT publisher. The client id is the configured
// prefix plus a random suffix, generated once per process.
func NewPublisher(config Config, logger *slog.Logger) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		config:    config,
		clientID:  fmt.Sprintf("%s-%.8s", config.ClientIDPrefix, uuid.NewString()),
		logger:    logger,
		newClient: pahomqtt.NewClient,
	}, nil
}

// Publish sends the confirmation payload to the configured topic, retrying
// up to the configured bound with a fixed inter-attempt delay on any
// failure class. A non-nil return means every attempt was exhausted.
func (p *Publisher) Publish(ctx context.Context) error {
	retryOpts := service.RetryOptions{
		MaxAttempts:  p.config.MaxRetries,
		InitialDelay: p.config.RetryDelay,
		MaxDelay:     p.config.RetryDelay,
		Multiplier:   1.0,
	}

	return common.WithRetry(ctx, func() error {
		return p.attempt()
	}, retryOpts)
}

// attempt performs one full connect → publish → disconnect cycle.
func (p *Publisher) attempt() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(p.config.BrokerURL()).
		SetClientID(p.clientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetKeepAlive(20 * time.Second).
		SetConnectTimeout(p.config.ConnectTimeout)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	client := p.newClient(opts)
	defer client.Disconnect(250)

	connect := client.Connect()
	if !connect.WaitTimeout(p.config.ConnectTimeout) {
		return common.ErrConnectTimeout
	}
	if err := connect.Error(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	publish := client.Publish(p.config.Topic, 1, false, p.config.Payload)
	if !publish.WaitTimeout(p.config.PublishTimeout) {
		return common.ErrPublishRejected
	}
	if err := publish.Error(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPublishRejected, err)
	}

	p.logger.Debug("published confirmation", "topic", p.config.Topic, "client_id", p.clientID)
	return nil
}
