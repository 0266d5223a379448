package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/primebets/advisor/internal/notification"
)

// Deliverer sends a push event to the user's devices
type Deliverer interface {
	Deliver(ctx context.Context, event notification.Event) error
}

// SettingsSource reads a user's current push preference
type SettingsSource interface {
	PushSettings(ctx context.Context, userID string) (notification.PushSettings, error)
}

// outboxLimit bounds how many undelivered pushes a device queue keeps
const outboxLimit = 100

// Outbox delivers events onto a per-user Redis list that device gateways drain
type Outbox struct {
	logger   *slog.Logger
	rdb      redis.UniversalClient
	settings SettingsSource
	prefix   string
}

// NewOutbox creates an outbox deliverer. settings may be nil, in which case
// every event is delivered.
func NewOutbox(logger *slog.Logger, rdb redis.UniversalClient, settings SettingsSource, prefix string) *Outbox {
	if prefix == "" {
		prefix = "push:outbox:"
	}
	return &Outbox{
		logger:   logger,
		rdb:      rdb,
		settings: settings,
		prefix:   prefix,
	}
}

// Key returns the list a user's pushes are written to
func (o *Outbox) Key(userID string) string {
	return o.prefix + userID
}

func (o *Outbox) Deliver(ctx context.Context, event notification.Event) error {
	if o.settings != nil {
		settings, err := o.settings.PushSettings(ctx, event.UserID)
		if err != nil {
			return NewRetryableError(fmt.Errorf("failed to load push settings: %w", err))
		}
		if !settings.Enabled {
			return ErrPushDisabled
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	key := o.Key(event.UserID)
	_, err = o.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, body)
		pipe.LTrim(ctx, key, 0, outboxLimit-1)
		return nil
	})
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to write push outbox: %w", err))
	}

	o.logger.Info("Push delivered",
		slog.String("notification_id", event.NotificationID),
		slog.String("user_id", event.UserID),
		slog.String("type", string(event.Type)),
	)
	return nil
}
