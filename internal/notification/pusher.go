package notification

import (
	"context"
	"encoding/json"
	"fmt"
)

// Pusher hands an event to the push delivery channel
type Pusher interface {
	Push(ctx context.Context, event Event) error
}

// NoopPusher drops every event. Used when no broker is configured.
type NoopPusher struct{}

func (NoopPusher) Push(context.Context, Event) error { return nil }

// Publisher is the subset of the RabbitMQ client used for push events
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// QueuePusher publishes events as JSON for the push relay
type QueuePusher struct {
	publisher Publisher
}

// NewQueuePusher creates a pusher over a message broker publisher
func NewQueuePusher(publisher Publisher) *QueuePusher {
	return &QueuePusher{publisher: publisher}
}

func (p *QueuePusher) Push(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal push event: %w", err)
	}

	if err := p.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish push event: %w", err)
	}
	return nil
}
