// Package reminder announces approved defenses whose window has ended and
// still wait for an outcome.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule is how often due defenses are looked for.
const DefaultSchedule = "@every 1m"

// Source lists the defenses that are due.
type Source interface {
	DueDefenses(ctx context.Context) ([]services.DueDefense, error)
}

// Reminder publishes one DefenseDue event per request and schedule version.
type Reminder struct {
	source    Source
	publisher eventbus.EventPublisher
	ledger    Ledger
	schedule  string
	clock     clockwork.Clock
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Reminder)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Reminder) {
		r.clock = clock
	}
}

func New(source Source, publisher eventbus.EventPublisher, ledger Ledger, schedule string, logger *slog.Logger, opts ...Option) *Reminder {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	r := &Reminder{
		source:    source,
		publisher: publisher,
		ledger:    ledger,
		schedule:  schedule,
		clock:     clockwork.NewRealClock(),
		logger:    logger.With("module", "defense_reminder"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Validate checks the cron expression.
func (r *Reminder) Validate() error {
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid reminder schedule '%s': %w", r.schedule, err)
	}

	return nil
}

// Start runs Check on the schedule until Stop is called or ctx is done.
func (r *Reminder) Start(ctx context.Context) error {
	if err := r.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return nil
	}

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.Check(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Defense reminder run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Defense reminder started", "schedule", r.schedule, "entry_id", entryID)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (r *Reminder) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	r.logger.Info("Defense reminder stopped")
}

// Check publishes the reminders not sent yet and returns how many were sent.
func (r *Reminder) Check(ctx context.Context) (int, error) {
	due, err := r.source.DueDefenses(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0

	for _, d := range due {
		key := fmt.Sprintf("%s:%d", d.Request.ID, d.Schedule.Version)

		claimed, err := r.ledger.Claim(ctx, key)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to claim reminder", "request_id", d.Request.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		event := events.DefenseDue{
			BaseEvent:       events.NewBaseEvent(events.DefenseDueEvent, d.Request.ID, events.Actor{ID: "system", Name: "Clubflow"}, r.clock.Now().UTC()),
			ScheduleVersion: d.Schedule.Version,
			Request:         d.Request,
		}

		if d.Schedule.EndsAt != nil {
			event.EndsAt = *d.Schedule.EndsAt
		}

		if err := r.publisher.Publish(ctx, d.Request.ID, event); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish defense reminder", "request_id", d.Request.ID, "error", err)

			if err := r.ledger.Release(ctx, key); err != nil {
				r.logger.ErrorContext(ctx, "Failed to release reminder", "request_id", d.Request.ID, "error", err)
			}

			continue
		}

		sent++

		r.logger.InfoContext(ctx, "Defense reminder published",
			"request_id", d.Request.ID,
			"schedule_version", d.Schedule.Version)
	}

	return sent, nil
}
