package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-checkout/core"
)

// Sweeper re-sends deliveries whose retry time has come. It does not guard
// against overlapping runs; callers hold a lock around Sweep.
type Sweeper struct {
	dispatcher *Dispatcher
}

func NewSweeper(dispatcher *Dispatcher) (*Sweeper, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("outbound: dispatcher is required")
	}
	return &Sweeper{dispatcher: dispatcher}, nil
}

// Sweep processes up to limit due deliveries ordered by next_retry_at.
// The stored payload is re-signed with the subscription's current secret.
func (s *Sweeper) Sweep(ctx context.Context, limit int) (core.DispatchStats, error) {
	var stats core.DispatchStats
	if s == nil || s.dispatcher == nil {
		return stats, fmt.Errorf("outbound: sweeper is not configured")
	}
	d := s.dispatcher
	startedAt := time.Now()
	if limit <= 0 {
		limit = core.DefaultSweepBatchSize
	}

	due, err := d.deliveries.ListDue(ctx, d.now(), limit)
	if err != nil {
		d.observer.Observe(ctx, startedAt, "sweep", err, nil)
		return stats, err
	}

	var errs []error
	for _, delivery := range due {
		stats.Matched++
		sub, err := d.subscriptions.Get(ctx, delivery.WebhookID)
		switch {
		case err != nil && !core.IsNotFound(err):
			errs = append(errs, err)
			continue
		case err != nil || !sub.Active:
			if err := s.abandon(ctx, delivery); err != nil {
				errs = append(errs, err)
				continue
			}
			stats.Failed++
			continue
		}
		attempt, err := d.deliver(ctx, sub, delivery)
		if err != nil {
			errs = append(errs, err)
		}
		stats = stats.Add(statsFor(attempt.Status))
	}

	joined := errors.Join(errs...)
	d.observer.Observe(ctx, startedAt, "sweep", joined, map[string]any{
		"due":       len(due),
		"delivered": stats.Delivered,
		"retried":   stats.Retried,
		"failed":    stats.Failed,
	})
	return stats, joined
}

// abandon closes a delivery whose subscription is gone or disabled.
func (s *Sweeper) abandon(ctx context.Context, delivery core.Delivery) error {
	d := s.dispatcher
	err := d.deliveries.RecordAttempt(ctx, delivery.ID, core.DeliveryAttempt{
		Status:         core.DeliveryStatusFailed,
		Attempts:       delivery.Attempts,
		AttemptedAt:    d.now(),
		ResponseStatus: delivery.ResponseStatus,
		ResponseBody:   delivery.ResponseBody,
		ErrorMessage:   "webhook subscription inactive or deleted",
	})
	if err != nil {
		return fmt.Errorf("outbound: close delivery %s: %w", delivery.ID, err)
	}
	d.observer.Warn(ctx, "webhook delivery dropped", map[string]any{
		"delivery_id": delivery.ID,
		"webhook_id":  delivery.WebhookID,
	})
	return nil
}
