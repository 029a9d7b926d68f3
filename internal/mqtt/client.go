package mqtt

import (
	"context"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// pahoClient implements Client on top of paho. paho reconnects on its own
// once the first connection succeeded.
type pahoClient struct {
	config  Config
	metrics Metrics

	mu          sync.Mutex
	conn        paho.Client
	lastAttempt time.Time
}

// NewClient creates an MQTT client. Zero timeouts take DefaultConfig values
// and metrics may be nil.
func NewClient(config Config, metrics Metrics) Client {
	defaults := DefaultConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}
	if config.DisconnectTimeout <= 0 {
		config.DisconnectTimeout = defaults.DisconnectTimeout
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &pahoClient{config: config, metrics: metrics}
}

func (c *pahoClient) options() *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(c.config.Broker).
		SetClientID(c.config.ClientID).
		SetUsername(c.config.Username).
		SetPassword(c.config.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(paho.Client) {
			GetLogger().Info("connected to broker", logger.String("broker", c.config.Broker))
			c.metrics.UpdateConnectionStatus(true)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			GetLogger().Warn("broker connection lost", logger.String("broker", c.config.Broker), logger.Error(err))
			c.metrics.UpdateConnectionStatus(false)
		})
}

// Connect dials the broker. Attempts closer together than ReconnectCooldown
// are refused.
func (c *pahoClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("last connection attempt was %v ago", since.Round(time.Millisecond)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastAttempt = time.Now()

	// paho retries unparsable brokers forever with ConnectRetry set
	if _, err := url.Parse(c.config.Broker); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", c.config.Broker).
			Build()
	}

	c.conn = paho.NewClient(c.options())
	if err := await(ctx, c.conn.Connect(), c.config.ConnectTimeout); err != nil {
		c.metrics.UpdateConnectionStatus(false)
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}
	return nil
}

// Publish sends payload to topic with the configured QoS and retain flag.
func (c *pahoClient) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected() {
		return errors.Newf("not connected to broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}

	start := time.Now()
	if err := await(ctx, c.conn.Publish(topic, c.config.QoS, c.config.Retain, payload), c.config.PublishTimeout); err != nil {
		c.metrics.PublishFailed(topic)
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	c.metrics.MessageDelivered(topic, len(payload), time.Since(start))
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *pahoClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected()
}

func (c *pahoClient) connected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Disconnect closes the broker link if one is open.
func (c *pahoClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected() {
		c.conn.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
}

// await blocks until token completes, timeout passes or ctx is done.
func await(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.NewStd("timed out after " + timeout.String())
	case <-ctx.Done():
		return ctx.Err()
	}
}
