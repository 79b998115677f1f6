// Package worker turns record events into spreadsheet rows.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"fareboard/internal/amqp"
	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"
	"fareboard/internal/sheets"
)

// MirrorWorker copies appended records into a sheets.Mirror. Writes are
// paced by a token bucket to stay under the spreadsheet API quota.
type MirrorWorker struct {
	mirror  sheets.Mirror
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewMirrorWorker builds a worker allowing perMinute writes. perMinute <= 0
// disables pacing.
func NewMirrorWorker(mirror sheets.Mirror, perMinute int, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &MirrorWorker{
		mirror:  mirror,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecordEvent mirrors one event. A returned error makes the consumer
// requeue the message.
func (w *MirrorWorker) HandleRecordEvent(ctx context.Context, evt *amqp.RecordEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for mirror quota: %w", err)
	}

	var err error
	switch evt.Kind {
	case amqp.KindJourney:
		err = w.mirror.AppendJourney(ctx, evt.Owner, *evt.Journey)
	case amqp.KindExpense:
		err = w.mirror.AppendExpense(ctx, evt.Owner, *evt.Expense)
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror record",
			log.FieldOperation, log.OpMirror,
			log.FieldEventKind, evt.Kind,
			log.FieldOwner, evt.Owner,
			log.FieldError, err)
		return fmt.Errorf("mirror %s: %w", evt.Kind, err)
	}

	w.logger.InfoContext(ctx, "Mirrored record",
		log.FieldEventKind, evt.Kind,
		log.FieldOwner, evt.Owner,
		"published_at", evt.Timestamp)
	return nil
}

// BackfillResult counts what Backfill copied.
type BackfillResult struct {
	Journeys int
	Expenses int
	Errors   int
}

// Backfill copies every stored record of the given owners into the mirror.
// It is meant for an empty spreadsheet; rows already mirrored are appended
// again. Individual write failures are counted and skipped.
func (w *MirrorWorker) Backfill(ctx context.Context, reader records.Reader, owners []core.OwnerID) (BackfillResult, error) {
	var res BackfillResult
	if err := w.mirror.EnsureHeaders(ctx); err != nil {
		return res, fmt.Errorf("ensure headers: %w", err)
	}
	for _, owner := range owners {
		journeys, err := reader.ReadJourneys(ctx, owner)
		if err != nil {
			return res, fmt.Errorf("read journeys for %s: %w", owner, err)
		}
		for _, j := range journeys {
			if err := w.HandleRecordEvent(ctx, amqp.NewJourneyEvent(owner, j)); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Errors++
				continue
			}
			res.Journeys++
		}

		expenses, err := reader.ReadExpenses(ctx, owner)
		if err != nil {
			return res, fmt.Errorf("read expenses for %s: %w", owner, err)
		}
		for _, e := range expenses {
			if err := w.HandleRecordEvent(ctx, amqp.NewExpenseEvent(owner, e)); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Errors++
				continue
			}
			res.Expenses++
		}
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		"owners", len(owners),
		"journeys", res.Journeys,
		"expenses", res.Expenses,
		"errors", res.Errors)
	return res, nil
}
