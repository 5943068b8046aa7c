package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/clubflow/pkg/reminder"
	"github.com/jonboulle/clockwork"
)

// NewLedger returns a Redis ledger when redisURL is set, otherwise an in-memory one.
func NewLedger(ctx context.Context, logger *slog.Logger, redisURL string) (reminder.Ledger, error) {
	if redisURL == "" {
		return reminder.NewMemoryLedger(reminder.DefaultLedgerTTL, clockwork.NewRealClock()), nil
	}

	ledger, err := reminder.NewRedisLedger(ctx, redisURL, reminder.DefaultLedgerTTL)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Using Redis reminder ledger")

	return ledger, nil
}
