// Package app holds the wiring shared by the advisor service and the push relay
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/primebets/advisor/internal/config"
	"github.com/primebets/advisor/internal/kv"
	"github.com/primebets/advisor/shared/logger"
	"github.com/primebets/advisor/shared/postgresql"
	"github.com/primebets/advisor/shared/rabbitmq"
	"github.com/primebets/advisor/shared/redis"
)

// NewLogger initializes and configures the application logger
func NewLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// OpenStore opens the configured key-value backend. The returned close
// function releases the store and any connection it owns.
func OpenStore(ctx context.Context, cfg *config.StoreConfig, log *slog.Logger) (kv.Store, func(), error) {
	log.Info("Opening store", slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory, "":
		s := kv.NewMemoryStore()
		return s, func() { s.Close() }, nil

	case config.BackendBadger:
		s, err := kv.NewBadgerStore(kv.BadgerConfig{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			GCInterval: cfg.Badger.GCInterval,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error("Failed to close badger store", slog.Any("error", err))
			}
		}, nil

	case config.BackendRedis:
		client, err := NewRedis(&cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(client.Client, cfg.Redis.Namespace), func() { client.Close() }, nil

	case config.BackendPostgres:
		client, err := NewPostgreSQL(&cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		s := kv.NewPostgresStore(client.DB())
		if err := s.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return s, func() { client.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// NewRedis connects to Redis
func NewRedis(cfg *config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	return redis.NewClient(&redis.Config{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}, log)
}

// NewPostgreSQL initializes the PostgreSQL database client
func NewPostgreSQL(cfg *config.DatabaseConfig, log *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, log)
}

// NewRabbitMQ initializes the RabbitMQ client
func NewRabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, log)
}
