package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/primebets/advisor/internal/notification"
)

func (r *Relay) setupConsumer() (<-chan amqp.Delivery, error) {
	if err := r.source.Qos(r.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := r.source.Consume(r.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	r.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", r.consumerTag),
		slog.Int("prefetch_count", r.prefetchCount),
	)
	return deliveries, nil
}

// dispatch decodes deliveries and hands them to the pool. Events that can
// never be delivered are rejected here without a requeue.
func (r *Relay) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				r.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			event, err := decode(delivery.Body)
			if err != nil {
				r.logger.Error("Dropping malformed push event",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					r.logger.Error("Failed to NACK malformed event",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case r.messages <- &message{event: event, delivery: delivery}:
			case <-ctx.Done():
				r.logger.Info("Dispatcher stopped while handing off an event")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					r.logger.Error("Failed to NACK event on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}

func decode(body []byte) (notification.Event, error) {
	var event notification.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if _, err := uuid.Parse(event.NotificationID); err != nil {
		return event, fmt.Errorf("%w: notification_id %q is not a UUID", ErrInvalidEvent, event.NotificationID)
	}
	if event.UserID == "" {
		return event, fmt.Errorf("%w: missing user_id", ErrInvalidEvent)
	}
	return event, nil
}
