package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
)

const DefaultAbandonThreshold = 30 * time.Minute

// Heartbeat marks the session as seen now. It reports false when the
// session is no longer active.
func (s *Service) Heartbeat(ctx context.Context, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, core.ValidationError("session_id", "session id is required")
	}
	return s.deps.Sessions.Touch(ctx, sessionID, s.now())
}

type AbandonStats struct {
	Scanned   int `json:"scanned"`
	Abandoned int `json:"abandoned"`
	Converted int `json:"converted"`
}

// SweepAbandoned closes active sessions that stopped sending heartbeats.
// Orders still PENDING become ABANDONED; sessions whose order already moved
// on are marked converted.
func (s *Service) SweepAbandoned(ctx context.Context, limit int) (AbandonStats, error) {
	startedAt := time.Now()
	var stats AbandonStats
	if limit <= 0 {
		limit = core.DefaultSweepBatchSize
	}
	now := s.now()
	stale, err := s.deps.Sessions.ListStale(ctx, now.Add(-s.config.AbandonThreshold), limit)
	if err != nil {
		s.observer.Observe(ctx, startedAt, "sweep_abandoned", err, nil)
		return stats, err
	}

	var errs []error
	for _, session := range stale {
		stats.Scanned++
		abandoned, err := s.abandonSession(ctx, session, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if abandoned {
			stats.Abandoned++
		} else {
			stats.Converted++
		}
	}

	joined := errors.Join(errs...)
	s.observer.Observe(ctx, startedAt, "sweep_abandoned", joined, map[string]any{
		"scanned":   stats.Scanned,
		"abandoned": stats.Abandoned,
		"converted": stats.Converted,
	})
	return stats, joined
}

// abandonSession moves a PENDING order to ABANDONED, then records the
// ledger event, closes the session and dispatches checkout_abandoned. An
// order already ABANDONED while its session is still active is a sweep that
// failed after the order update; it is finished here.
func (s *Service) abandonSession(ctx context.Context, session core.CheckoutSession, now time.Time) (bool, error) {
	order, err := s.deps.Orders.Get(ctx, session.OrderID)
	if err != nil {
		return false, fmt.Errorf("orders: load order %s for session %s: %w", session.OrderID, session.ID, err)
	}
	if order.Status != core.OrderStatusAbandoned {
		next, ok := core.NextStatus(core.EventCheckoutAbandoned, order.Status)
		if !ok {
			return false, s.deps.Sessions.UpdateStatus(ctx, session.ID, core.SessionStatusConverted)
		}
		changed, err := s.deps.Orders.UpdateStatus(ctx, order.ID, order.Status, next, now)
		if err != nil {
			return false, err
		}
		if !changed {
			return false, s.deps.Sessions.UpdateStatus(ctx, session.ID, core.SessionStatusConverted)
		}
		order.Status = next
		order.UpdatedAt = now
	}

	data := map[string]any{
		"reason":            "inactivity",
		"threshold_minutes": int(s.config.AbandonThreshold / time.Minute),
	}
	payload, _ := json.Marshal(data)
	if _, err := s.deps.Ledger.RecordIfNew(ctx, core.GatewayEventInput{
		GatewayEventID: fmt.Sprintf("abandoned-%s-%d", order.ID, now.Unix()),
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		Type:           core.EventCheckoutAbandoned,
		Payload:        payload,
		OccurredAt:     now,
	}); err != nil {
		return false, fmt.Errorf("orders: record abandonment of %s: %w", order.ID, err)
	}
	if err := s.deps.Sessions.UpdateStatus(ctx, session.ID, core.SessionStatusAbandoned); err != nil {
		return false, err
	}

	if eventName, ok := core.OutboundEventForStatus(order.Status); ok {
		s.deps.Notifier.Notify(ctx, core.OrderEvent{
			Order:      order,
			EventName:  eventName,
			OccurredAt: now,
			Data:       data,
		})
	}
	return true, nil
}
