package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/primebets/advisor/internal/notification"
)

// Source is the broker side of the relay
type Source interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds relay configuration
type Config struct {
	Logger          *slog.Logger
	Source          Source
	Deliverer       Deliverer
	ConsumerTag     string
	Concurrency     int
	PrefetchCount   int
	DeliveryTimeout time.Duration
}

// message pairs a decoded event with the delivery it came from
type message struct {
	event    notification.Event
	delivery amqp.Delivery
}

// Relay consumes push events from the broker and hands them to a Deliverer
type Relay struct {
	logger          *slog.Logger
	source          Source
	deliverer       Deliverer
	consumerTag     string
	concurrency     int
	prefetchCount   int
	deliveryTimeout time.Duration

	messages chan *message
	wg       sync.WaitGroup
}

// New creates a relay. Zero values fall back to one worker, a prefetch of
// twice the concurrency and a 10s delivery timeout.
func New(cfg *Config) *Relay {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency * 2
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tag := cfg.ConsumerTag
	if tag == "" {
		tag = "push-relay"
	}

	return &Relay{
		logger:          cfg.Logger,
		source:          cfg.Source,
		deliverer:       cfg.Deliverer,
		consumerTag:     tag,
		concurrency:     concurrency,
		prefetchCount:   prefetch,
		deliveryTimeout: timeout,
		messages:        make(chan *message),
	}
}

// Run consumes until ctx is cancelled or the broker closes the delivery
// channel. In-flight deliveries are finished before Run returns.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("Starting push relay",
		slog.String("consumer_tag", r.consumerTag),
		slog.Int("concurrency", r.concurrency),
		slog.Duration("delivery_timeout", r.deliveryTimeout),
	)

	deliveries, err := r.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	r.spawnPool(ctx)
	r.dispatch(ctx, deliveries)

	close(r.messages)
	r.wg.Wait()

	r.logger.Info("Push relay stopped")
	return nil
}
