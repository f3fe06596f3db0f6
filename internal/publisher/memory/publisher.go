// Package memory provides an in-process publisher that records messages for
// inspection. It backs local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Message is one recorded publish.
type Message struct {
	ID          string
	Topic       string
	Data        []byte
	PublishedAt time.Time
}

// Decode unmarshals the message body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Publisher keeps every published message in memory, JSON encoded the same way
// the Pub/Sub publisher encodes them.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	limit    int
	seq      int
}

// New returns an empty Publisher that keeps every message.
func New() *Publisher {
	return &Publisher{}
}

// NewCapped returns a Publisher that keeps only the newest limit messages.
func NewCapped(limit int) *Publisher {
	return &Publisher{limit: limit}
}

// Publish encodes payload and records it under topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Data: data, PublishedAt: time.Now().UTC()})
	if p.limit > 0 && len(p.messages) > p.limit {
		p.messages = append([]Message(nil), p.messages[len(p.messages)-p.limit:]...)
	}
	return id, nil
}

// Messages returns a copy of the recorded messages, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Message(nil), p.messages...)
}

// Topic returns the recorded messages published to topic.
func (p *Publisher) Topic(topic string) []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Message
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
