package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// Publisher is an events.Consumer that forwards every event to
// <prefix>/<event type> as JSON.
type Publisher struct {
	client          Client
	prefix          string
	timeout         time.Duration
	includeEvidence bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithEvidence keeps the base64 evidence frame in violation payloads.
// It is stripped by default to keep messages small.
func WithEvidence() PublisherOption {
	return func(p *Publisher) { p.includeEvidence = true }
}

// NewPublisher creates a publisher on client under topic prefix.
func NewPublisher(client Client, prefix string, timeout time.Duration, opts ...PublisherOption) *Publisher {
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	p := &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements events.Consumer.
func (p *Publisher) Name() string { return "mqtt" }

// Topic returns the topic an event type is published to.
func (p *Publisher) Topic(t events.Type) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "/" + string(t)
}

// ProcessEvent implements events.Consumer.
func (p *Publisher) ProcessEvent(e events.Event) error {
	if !p.client.IsConnected() {
		GetLogger().Debug("dropping event, broker not connected", logger.String("type", string(e.Type)))
		return nil
	}

	payload, err := p.encode(e)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryMQTTPublish).
			Context("type", string(e.Type)).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.client.Publish(ctx, p.Topic(e.Type), payload)
}

func (p *Publisher) encode(e events.Event) ([]byte, error) {
	if !p.includeEvidence {
		e = e.WithoutEvidence()
	}
	return json.Marshal(e)
}
