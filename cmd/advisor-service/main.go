package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/primebets/advisor/internal/advisor"
	"github.com/primebets/advisor/internal/api/handler"
	"github.com/primebets/advisor/internal/api/router"
	"github.com/primebets/advisor/internal/app"
	"github.com/primebets/advisor/internal/automation"
	"github.com/primebets/advisor/internal/config"
	"github.com/primebets/advisor/internal/history"
	"github.com/primebets/advisor/internal/notification"
	"github.com/primebets/advisor/internal/payment"
	"github.com/primebets/advisor/internal/scheduler"
	"github.com/primebets/advisor/internal/subscription"
	"github.com/primebets/advisor/internal/user"
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

	defaultConfigPath := os.Getenv("ADVISOR_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/advisor-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAdvisorConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := app.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting advisor service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, &cfg.Store, appLogger.Component("store"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	var pusher notification.Pusher = notification.NoopPusher{}
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := app.NewRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		pusher = notification.NewQueuePusher(rabbitClient)
	}

	clock := clockwork.NewRealClock()
	rnd := advisor.NewRandom(cfg.Automation.Seed)

	sink := notification.NewSink(notification.Config{
		Store:  store,
		Pusher: pusher,
		Clock:  clock,
		Logger: appLogger.Component("notification"),
	})

	deps := &handler.Dependencies{
		Logger:  appLogger.Component("api"),
		Clock:   clock,
		Users:   user.NewDirectory(store, clock, appLogger.Component("user")),
		Advisor: advisor.NewRepository(store),
		Ledger:  subscription.NewLedger(store, clock, appLogger.Component("subscription")),
		Gateway: payment.NewSimulated(store, clock, appLogger.Component("payment"), payment.SimulatedConfig{
			SuccessRate: cfg.Payment.SuccessRate,
			Delay:       cfg.Payment.Delay,
			Seed:        cfg.Automation.Seed,
		}),
		Sink:    sink,
		Bets:    history.NewBook(store, clock, appLogger.Component("history")),
		Reports: history.NewReports(store),
		Markets: rnd,
	}

	sched := scheduler.New(scheduler.Config{
		Clock:      clock,
		Logger:     appLogger.Component("scheduler"),
		JobTimeout: cfg.Automation.JobTimeout,
	})

	automationLogger := appLogger.Component("automation")
	handlers := automation.NewHandlers(automation.Deps{
		Users:     deps.Users,
		Advisor:   deps.Advisor,
		Generator: advisor.NewGenerator(rnd, nil),
		Markets:   rnd,
		Feed:      advisor.NewSimulatedFeed(rnd, clock.Now),
		Ledger:    deps.Ledger,
		Gateway:   deps.Gateway,
		Sink:      sink,
		Bets:      deps.Bets,
		Reports:   deps.Reports,
		Clock:     clock,
		Logger:    automationLogger,
	})
	deps.Automations = automation.NewManager(sched, handlers, automation.NewConfigStore(store, automationLogger), automationLogger)

	if err := deps.Automations.InitializeAll(ctx); err != nil {
		return fmt.Errorf("failed to initialize automations: %w", err)
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.SetupRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down advisor service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
		if err := sched.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler forced to shutdown: %w", err))
		}
		if err := sink.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("pending pushes abandoned: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Advisor service stopped with error", slog.Any("error", err))
		return err
	}

	appLogger.Info("Advisor service shutdown complete")
	return nil
}
