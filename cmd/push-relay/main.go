package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/app"
	"github.com/primebets/advisor/internal/config"
	"github.com/primebets/advisor/internal/notification"
	"github.com/primebets/advisor/internal/relay"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("PUSH_RELAY_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/push-relay/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateRelayConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := app.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting push relay",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Push preferences live in the advisor's store
	store, closeStore, err := app.OpenStore(ctx, &cfg.Store, appLogger.Component("store"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	settings := notification.NewSink(notification.Config{
		Store:  store,
		Clock:  clockwork.NewRealClock(),
		Logger: appLogger.Component("notification"),
	})

	outboxClient, err := app.NewRedis(&cfg.Relay.Outbox, appLogger.Component("outbox"))
	if err != nil {
		return fmt.Errorf("failed to initialize outbox: %w", err)
	}
	defer outboxClient.Close()

	rabbitClient, err := app.NewRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	r := relay.New(&relay.Config{
		Logger:          appLogger.Component("relay"),
		Source:          rabbitClient,
		Deliverer:       relay.NewOutbox(appLogger.Component("outbox"), outboxClient.Client, settings, cfg.Relay.OutboxPrefix),
		ConsumerTag:     cfg.RabbitMQ.Consumer.Tag,
		Concurrency:     cfg.Relay.Concurrency,
		PrefetchCount:   cfg.RabbitMQ.Consumer.PrefetchCount,
		DeliveryTimeout: cfg.Relay.DeliveryTimeout,
	})

	errChan := make(chan error, 1)
	go func() { errChan <- r.Run(ctx) }()

	select {
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Push relay error", slog.Any("error", err))
			return err
		}
		appLogger.Warn("Push relay stopped: broker closed the delivery channel")
		return nil
	case <-ctx.Done():
		appLogger.Info("Received signal, shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer cancel()

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
		appLogger.Info("Push relay shutdown complete")
	case <-shutdownCtx.Done():
		appLogger.Warn("Push relay shutdown timeout exceeded, forcing exit")
	}
	return nil
}
