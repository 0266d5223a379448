package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

func (r *Relay) spawnPool(ctx context.Context) {
	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i)
	}
}

func (r *Relay) workerLoop(ctx context.Context, num int) {
	defer r.wg.Done()

	name := fmt.Sprintf("%s-%d", r.consumerTag, num)

	for msg := range r.messages {
		err := r.deliver(ctx, msg)
		if err == nil {
			if ackErr := msg.delivery.Ack(false); ackErr != nil {
				r.logger.Error("Failed to ACK event",
					slog.String("worker_name", name),
					slog.String("notification_id", msg.event.NotificationID),
					slog.String("error", ackErr.Error()),
				)
			}
			continue
		}

		if errors.Is(err, ErrPushDisabled) {
			r.logger.Debug("Push disabled, dropping event",
				slog.String("worker_name", name),
				slog.String("notification_id", msg.event.NotificationID),
				slog.String("user_id", msg.event.UserID),
			)
			if ackErr := msg.delivery.Ack(false); ackErr != nil {
				r.logger.Error("Failed to ACK event",
					slog.String("worker_name", name),
					slog.String("error", ackErr.Error()),
				)
			}
			continue
		}

		requeue := shouldRequeue(err)
		r.logger.Error("Push delivery failed",
			slog.String("worker_name", name),
			slog.String("notification_id", msg.event.NotificationID),
			slog.String("user_id", msg.event.UserID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
		if nackErr := msg.delivery.Nack(false, requeue); nackErr != nil {
			r.logger.Error("Failed to NACK event",
				slog.String("worker_name", name),
				slog.String("error", nackErr.Error()),
			)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, msg *message) error {
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.deliveryTimeout)
	defer cancel()

	return r.deliverer.Deliver(deliverCtx, msg.event)
}

// shouldRequeue reports whether a failed delivery is worth another attempt
func shouldRequeue(err error) bool {
	if errors.Is(err, ErrInvalidEvent) {
		return false
	}

	var retryable *RetryableError
	return errors.As(err, &retryable)
}
