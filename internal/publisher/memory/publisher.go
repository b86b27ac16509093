// Package memory contains an in-memory publisher for tests and for
// running without a Pub/Sub project.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pricehound/pricehound/internal/crawler"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// PriceDrops returns only the recorded price-drop events, in publish
// order. Payloads of other types are skipped.
func (p *Publisher) PriceDrops() []crawler.PriceDropEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []crawler.PriceDropEvent
	for _, m := range p.messages {
		if event, ok := m.Payload.(crawler.PriceDropEvent); ok {
			out = append(out, event)
		}
	}
	return out
}
