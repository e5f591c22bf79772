package sqlstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriptionStore persists vendor outbound webhooks and their product
// allowlists.
type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*outboundWebhookRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*outboundWebhookRecord](db, outboundWebhookHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{db: db, repo: repo}, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	sub.VendorID = strings.TrimSpace(sub.VendorID)
	sub.URL = strings.TrimSpace(sub.URL)
	if sub.VendorID == "" || sub.URL == "" {
		return core.Subscription{}, core.ValidationError("webhook", "vendor id and url are required")
	}
	if len(sub.EncryptedSecret) == 0 {
		return core.Subscription{}, core.ValidationError("secret", "webhook secret is required")
	}
	now := time.Now().UTC()
	record := &outboundWebhookRecord{
		ID:              strings.TrimSpace(sub.ID),
		VendorID:        sub.VendorID,
		Name:            strings.TrimSpace(sub.Name),
		URL:             sub.URL,
		EncryptedSecret: append([]byte(nil), sub.EncryptedSecret...),
		Events:          normalizeList(sub.Events),
		Active:          sub.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	products := normalizeList(sub.ProductIDs)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		rows := make([]*webhookProductRecord, 0, len(products))
		for _, productID := range products {
			rows = append(rows, &webhookProductRecord{WebhookID: record.ID, ProductID: productID})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return core.Subscription{}, err
	}
	return record.toDomain(products), nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.repo == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Subscription{}, err
	}
	if len(records) == 0 {
		return core.Subscription{}, core.NotFoundError("webhook", id)
	}
	products, err := s.loadProducts(ctx, records[0].ID)
	if err != nil {
		return core.Subscription{}, err
	}
	return records[0].toDomain(products[records[0].ID]), nil
}

func (s *SubscriptionStore) ListActive(ctx context.Context, vendorID string, eventName string) ([]core.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	eventName = strings.TrimSpace(eventName)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("vendor_id", "=", strings.TrimSpace(vendorID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.active = ?", true)
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	matched := make([]*outboundWebhookRecord, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if !slices.Contains(record.Events, eventName) {
			continue
		}
		matched = append(matched, record)
		ids = append(ids, record.ID)
	}
	if len(matched) == 0 {
		return nil, nil
	}
	products, err := s.loadProducts(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Subscription, 0, len(matched))
	for _, record := range matched {
		out = append(out, record.toDomain(products[record.ID]))
	}
	return out, nil
}

func (s *SubscriptionStore) SetActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*outboundWebhookRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.NotFoundError("webhook", id)
	}
	return nil
}

func (s *SubscriptionStore) loadProducts(ctx context.Context, webhookIDs ...string) (map[string][]string, error) {
	out := map[string][]string{}
	if len(webhookIDs) == 0 {
		return out, nil
	}
	var rows []webhookProductRecord
	if err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.webhook_id IN (?)", bun.In(webhookIDs)).
		OrderExpr("?TableAlias.product_id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.WebhookID] = append(out[row.WebhookID], row.ProductID)
	}
	return out, nil
}

func (r *outboundWebhookRecord) toDomain(products []string) core.Subscription {
	return core.Subscription{
		ID:              r.ID,
		VendorID:        r.VendorID,
		Name:            r.Name,
		URL:             r.URL,
		EncryptedSecret: append([]byte(nil), r.EncryptedSecret...),
		Events:          append([]string(nil), r.Events...),
		ProductIDs:      append([]string(nil), products...),
		Active:          r.Active,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
