// Package main provides the ClubFlow API server implementation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dukex/clubflow/pkg/channels/kafka"
	"github.com/dukex/clubflow/pkg/cmd"
	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/dukex/clubflow/pkg/notification"
	"github.com/dukex/clubflow/pkg/otelhelper"
	"github.com/dukex/clubflow/pkg/reminder"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/subscription"
	"github.com/dukex/clubflow/pkg/web"
	"github.com/dukex/clubflow/pkg/web/notify"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

const serviceName = "clubflow-api"

// Config holds the resolved command line flags.
type Config struct {
	Port             int
	NotifyPort       int
	DatabaseURL      string
	EventBus         string
	KafkaBrokers     string
	RedisURL         string
	ReminderSchedule string
	OutboxSize       int
	OTEL             bool
}

type API struct {
	logger        *slog.Logger
	establishment *services.Establishment
	validate      *validator.Validate
}

func NewAPI(logger *slog.Logger, establishment *services.Establishment) *API {
	return &API{
		logger:        logger,
		establishment: establishment,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.establishment, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.establishment.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ClubFlow API")
	})

	handlers.Register(app)

	return app
}

// Start serves the API until ctx is done.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.ShutdownWithContext(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("Failed to stop API server", "error", err)
		}
	}()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func run(parent context.Context, logger *slog.Logger, cfg Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := make([]services.Option, 0, 1)

	if cfg.OTEL {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
			}
		}()

		opts = append(opts, services.WithTracer(tracer))
	}

	persistence, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	bus, err := cmd.NewEventBus(cfg.EventBus, logger, kafka.ParseBrokers(cfg.KafkaBrokers))
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	establishment := services.NewEstablishment(persistence, bus, logger, opts...)

	registry := subscription.NewRegistry(cfg.OutboxSize, logger)
	if err := startNotifications(ctx, bus, registry, logger); err != nil {
		return err
	}

	notifyServer := notify.NewServer(cfg.NotifyPort, registry, logger)
	if err := notifyServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notification server: %w", err)
	}

	ledger, err := cmd.NewLedger(ctx, logger, cfg.RedisURL)
	if err != nil {
		return err
	}

	defer func() {
		if err := ledger.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close reminder ledger", "error", err)
		}
	}()

	defenses := reminder.New(establishment, bus, ledger, cfg.ReminderSchedule, logger)
	if err := defenses.Start(ctx); err != nil {
		return fmt.Errorf("failed to start defense reminder: %w", err)
	}

	defer defenses.Stop()

	logger.InfoContext(ctx, "ClubFlow API listening", "port", cfg.Port, "notify_port", cfg.NotifyPort, "event_bus", cfg.EventBus)

	err = NewAPI(logger, establishment).Start(ctx, cfg.Port)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// startNotifications attaches the hub to the bus and begins consuming events.
func startNotifications(ctx context.Context, bus eventbus.EventBus, registry *subscription.Registry, logger *slog.Logger) error {
	hub := notification.NewHub(registry, logger)

	if err := hub.Attach(bus); err != nil {
		return fmt.Errorf("failed to attach notification hub: %w", err)
	}

	if err := bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	return nil
}
