package main

import (
	"context"
	"os"

	"github.com/dukex/clubflow/pkg/log"
	"github.com/dukex/clubflow/pkg/reminder"
	"github.com/dukex/clubflow/pkg/subscription"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort       = 9091
	defaultNotifyPort = 9092
)

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "clubflow-api",
		Usage:                 "Run the club establishment workflow API and notification server",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.IntFlag{
				Name:    "notify-port",
				Usage:   "Port to run the websocket notification server on",
				Value:   defaultNotifyPort,
				Sources: cli.EnvVars("NOTIFY_PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers, used with --event-bus=kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the defense reminder ledger, in-memory when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "reminder-schedule",
				Usage:   "Cron expression for the defense-due check",
				Value:   reminder.DefaultSchedule,
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "outbox-size",
				Usage:   "Messages buffered per websocket subscriber before drops",
				Value:   subscription.DefaultOutboxSize,
				Sources: cli.EnvVars("OUTBOX_SIZE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing ClubFlow API")

			return run(ctx, logger, Config{
				Port:             command.Int("port"),
				NotifyPort:       command.Int("notify-port"),
				DatabaseURL:      command.String("database-url"),
				EventBus:         command.String("event-bus"),
				KafkaBrokers:     command.String("kafka-brokers"),
				RedisURL:         command.String("redis-url"),
				ReminderSchedule: command.String("reminder-schedule"),
				OutboxSize:       command.Int("outbox-size"),
				OTEL:             command.Bool("otel"),
			})
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("ClubFlow API exited", "error", err)
		os.Exit(1)
	}
}
