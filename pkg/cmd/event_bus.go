package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/clubflow/pkg/channels/gochannel"
	"github.com/dukex/clubflow/pkg/channels/kafka"
	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/google/uuid"
)

const serviceName = "clubflow"

// NewEventBus creates the domain event bus: "gochannel" keeps events in
// process, "kafka" publishes them to the given brokers.
func NewEventBus(provider string, logger *slog.Logger, brokers []string) (eventbus.EventBus, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wlogger, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	case "kafka":
		// Every replica consumes the whole stream to reach its own subscribers.
		pub, sub, err := kafka.CreateChannel(wlogger, serviceName+"-"+instanceID(), brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}

	return host
}
