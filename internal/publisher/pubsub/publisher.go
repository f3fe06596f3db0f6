// Package pubsub publishes crawl notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"
)

// Publisher publishes JSON payloads to Pub/Sub topics. A topic name passed to
// Publish overrides the default topic; handles are cached per topic.
type Publisher struct {
	client       *pubsub.Client
	defaultTopic string
	ownsClient   bool

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *pubsub.Client, defaultTopic string) *Publisher {
	return &Publisher{client: client, defaultTopic: defaultTopic, topics: make(map[string]*pubsub.Topic)}
}

// Open dials Pub/Sub for projectID. Close releases the client.
func Open(ctx context.Context, projectID, defaultTopic string, opts ...option.ClientOption) (*Publisher, error) {
	if projectID == "" {
		return nil, errors.New("pubsub project id is required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p := New(client, defaultTopic)
	p.ownsClient = true
	return p, nil
}

// Publish marshals payload to JSON, injects the trace context into the
// message attributes, and waits for the server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p == nil || p.client == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	if topic == "" {
		topic = p.defaultTopic
	}
	if topic == "" {
		return "", errors.New("pubsub topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: map[string]string{"content_type": "application/json"}}
	otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(msg.Attributes))

	id, err := p.topic(topic).Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return id, nil
}

func (p *Publisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

// Close flushes pending publishes and, for publishers created by Open, closes
// the client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	for name, t := range p.topics {
		t.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	if p.ownsClient && p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}

// attributeCarrier adapts message attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string { return c[key] }

func (c attributeCarrier) Set(key, value string) { c[key] = value }

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
