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

const defaultDueLimit = core.DefaultSweepBatchSize

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{db: db, repo: repo}, nil
}

func (s *DeliveryStore) Create(ctx context.Context, delivery core.Delivery) (core.Delivery, error) {
	if s == nil || s.repo == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	delivery.WebhookID = strings.TrimSpace(delivery.WebhookID)
	delivery.EventType = strings.TrimSpace(delivery.EventType)
	if delivery.WebhookID == "" || delivery.EventType == "" {
		return core.Delivery{}, fmt.Errorf("sqlstore: webhook id and event type are required")
	}
	now := time.Now().UTC()
	record := &webhookDeliveryRecord{
		ID:             strings.TrimSpace(delivery.ID),
		WebhookID:      delivery.WebhookID,
		OrderID:        stringPointer(delivery.OrderID),
		EventType:      delivery.EventType,
		Payload:        string(delivery.Payload),
		Status:         string(delivery.Status),
		Attempts:       delivery.Attempts,
		LastAttemptAt:  cloneTime(delivery.LastAttemptAt),
		NextRetryAt:    cloneTime(delivery.NextRetryAt),
		ResponseStatus: delivery.ResponseStatus,
		ResponseBody:   delivery.ResponseBody,
		ErrorMessage:   delivery.ErrorMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = string(core.DeliveryStatusPending)
	}
	if strings.TrimSpace(record.Payload) == "" {
		record.Payload = "{}"
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Delivery{}, err
	}
	return created.toDomain(), nil
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.Delivery, error) {
	if s == nil || s.repo == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Delivery{}, err
	}
	if len(records) == 0 {
		return core.Delivery{}, core.NotFoundError("delivery", id)
	}
	return records[0].toDomain(), nil
}

// RecordAttempt writes the outcome of one delivery try. next_retry_at is
// cleared for every status other than pending_retry.
func (s *DeliveryStore) RecordAttempt(ctx context.Context, id string, attempt core.DeliveryAttempt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: delivery id is required")
	}
	attemptedAt := attempt.AttemptedAt.UTC()
	if attempt.AttemptedAt.IsZero() {
		attemptedAt = time.Now().UTC()
	}
	var nextRetryAt *time.Time
	if attempt.Status == core.DeliveryStatusPendingRetry {
		nextRetryAt = cloneTime(attempt.NextRetryAt)
		if nextRetryAt == nil {
			return fmt.Errorf("sqlstore: pending_retry requires next_retry_at")
		}
	}

	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", string(attempt.Status)).
		Set("attempts = ?", attempt.Attempts).
		Set("last_attempt_at = ?", attemptedAt).
		Set("next_retry_at = ?", nextRetryAt).
		Set("response_status = ?", attempt.ResponseStatus).
		Set("response_body = ?", attempt.ResponseBody).
		Set("error_message = ?", attempt.ErrorMessage).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.NotFoundError("delivery", id)
	}
	return nil
}

// ListDue returns pending and pending_retry deliveries whose next_retry_at
// has passed, oldest first. On a pending row next_retry_at is the recovery
// deadline of an attempt whose outcome was never recorded.
func (s *DeliveryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.Delivery, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if limit <= 0 {
		limit = defaultDueLimit
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.status IN (?)", bun.In([]string{
					string(core.DeliveryStatusPending),
					string(core.DeliveryStatusPendingRetry),
				})).
				Where("?TableAlias.next_retry_at IS NOT NULL").
				Where("?TableAlias.next_retry_at <= ?", now.UTC())
		}),
		repository.OrderBy("next_retry_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	return deliveriesToDomain(records), nil
}

// ListByWebhook returns the newest deliveries first. limit defaults to 50
// and is capped at 200.
func (s *DeliveryStore) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]core.Delivery, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("webhook_id", "=", strings.TrimSpace(webhookID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(core.ClampDeliveryListLimit(limit), 0),
	)
	if err != nil {
		return nil, err
	}
	return deliveriesToDomain(records), nil
}

func deliveriesToDomain(records []*webhookDeliveryRecord) []core.Delivery {
	out := make([]core.Delivery, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}

func (r *webhookDeliveryRecord) toDomain() core.Delivery {
	return core.Delivery{
		ID:             r.ID,
		WebhookID:      r.WebhookID,
		OrderID:        stringValue(r.OrderID),
		EventType:      r.EventType,
		Payload:        []byte(r.Payload),
		Status:         core.DeliveryStatus(r.Status),
		Attempts:       r.Attempts,
		LastAttemptAt:  cloneTime(r.LastAttemptAt),
		NextRetryAt:    cloneTime(r.NextRetryAt),
		ResponseStatus: r.ResponseStatus,
		ResponseBody:   r.ResponseBody,
		ErrorMessage:   r.ErrorMessage,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}
