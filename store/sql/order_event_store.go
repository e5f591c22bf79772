package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OrderEventStore is the gateway event ledger. The unique index on
// gateway_event_id is the only dedup mechanism.
type OrderEventStore struct {
	db   *bun.DB
	repo repository.Repository[*orderEventRecord]
}

func NewOrderEventStore(db *bun.DB) (*OrderEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderEventRecord](db, orderEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order event repository wiring: %w", err)
		}
	}
	return &OrderEventStore{db: db, repo: repo}, nil
}

// RecordIfNew inserts the event and reports false without error when the
// gateway event id was already recorded.
func (s *OrderEventStore) RecordIfNew(ctx context.Context, input core.GatewayEventInput) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: order event store is not configured")
	}
	input.GatewayEventID = strings.TrimSpace(input.GatewayEventID)
	input.OrderID = strings.TrimSpace(input.OrderID)
	if input.GatewayEventID == "" || input.OrderID == "" {
		return false, fmt.Errorf("sqlstore: gateway event id and order id are required")
	}
	now := time.Now().UTC()
	occurredAt := input.OccurredAt.UTC()
	if input.OccurredAt.IsZero() {
		occurredAt = now
	}
	payload := strings.TrimSpace(string(input.Payload))
	if payload == "" {
		payload = "{}"
	}
	record := &orderEventRecord{
		ID:             uuid.NewString(),
		GatewayEventID: input.GatewayEventID,
		OrderID:        input.OrderID,
		VendorID:       strings.TrimSpace(input.VendorID),
		Type:           strings.TrimSpace(input.Type),
		Payload:        payload,
		OccurredAt:     occurredAt,
		CreatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *OrderEventStore) ListByOrder(ctx context.Context, orderID string) ([]core.GatewayEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: order event store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("order_id", "=", strings.TrimSpace(orderID)),
		repository.OrderBy("occurred_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.GatewayEvent, 0, len(records))
	for _, record := range records {
		out = append(out, core.GatewayEvent{
			ID:             record.ID,
			GatewayEventID: record.GatewayEventID,
			OrderID:        record.OrderID,
			VendorID:       record.VendorID,
			Type:           record.Type,
			Payload:        []byte(record.Payload),
			OccurredAt:     record.OccurredAt.UTC(),
			CreatedAt:      record.CreatedAt.UTC(),
		})
	}
	return out, nil
}
