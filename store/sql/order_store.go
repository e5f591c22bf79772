package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type OrderStore struct {
	db   *bun.DB
	repo repository.Repository[*orderRecord]
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	return &OrderStore{db: db, repo: repo}, nil
}

func (s *OrderStore) Create(ctx context.Context, order core.Order) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record := newOrderRecord(order, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Order{}, err
	}
	return created.toDomain(), nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Order{}, err
	}
	if len(records) == 0 {
		return core.Order{}, core.NotFoundError("order", id)
	}
	return records[0].toDomain(), nil
}

func (s *OrderStore) FindByGatewayReference(ctx context.Context, paymentReference string, chargeID string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	paymentReference = strings.TrimSpace(paymentReference)
	chargeID = strings.TrimSpace(chargeID)

	if paymentReference != "" {
		record := &orderRecord{}
		err := s.db.NewSelect().
			Model(record).
			Where("?TableAlias.gateway_payment_id = ?", paymentReference).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return record.toDomain(), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return core.Order{}, err
		}
	}

	if chargeID != "" {
		record := &orderRecord{}
		err := s.db.NewSelect().
			Model(record).
			Join("JOIN payments_map AS pm ON pm.order_id = ?TableAlias.id").
			Where("pm.pix_id = ?", chargeID).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return record.toDomain(), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return core.Order{}, err
		}
	}

	reference := paymentReference
	if reference == "" {
		reference = chargeID
	}
	return core.Order{}, core.OrderNotFoundError(reference)
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, from core.OrderStatus, to core.OrderStatus, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: order store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("sqlstore: order id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	query := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", string(from))
	if to == core.OrderStatusPaid {
		query = query.Set("paid_at = ?", at)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AttachCharge stores the gateway charge id on the order and in the
// payments_map lookup table in one transaction.
func (s *OrderStore) AttachCharge(ctx context.Context, orderID string, chargeID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	chargeID = strings.TrimSpace(chargeID)
	if orderID == "" || chargeID == "" {
		return fmt.Errorf("sqlstore: order id and charge id are required")
	}
	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*orderRecord)(nil)).
			Set("gateway_payment_id = ?", chargeID).
			Set("updated_at = ?", now).
			Where("id = ?", orderID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return core.NotFoundError("order", orderID)
		}
		mapping := &paymentMappingRecord{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			PixID:     chargeID,
			CreatedAt: now,
		}
		if _, err := tx.NewInsert().Model(mapping).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return core.NewError("charge already mapped to an order", goerrors.CategoryConflict, core.ErrorConflict, map[string]any{
					"pix_id": chargeID,
				})
			}
			return err
		}
		return nil
	})
}

func newOrderRecord(order core.Order, now time.Time) *orderRecord {
	record := &orderRecord{
		ID:               strings.TrimSpace(order.ID),
		VendorID:         strings.TrimSpace(order.VendorID),
		ProductID:        strings.TrimSpace(order.ProductID),
		CustomerEmail:    strings.TrimSpace(order.CustomerEmail),
		CustomerName:     strings.TrimSpace(order.CustomerName),
		AmountCents:      order.AmountCents,
		Currency:         strings.TrimSpace(order.Currency),
		PaymentMethod:    strings.TrimSpace(order.PaymentMethod),
		Gateway:          strings.TrimSpace(order.Gateway),
		GatewayPaymentID: stringPointer(order.GatewayPaymentID),
		Status:           string(order.Status),
		PaidAt:           cloneTime(order.PaidAt),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Currency == "" {
		record.Currency = core.DefaultCurrency
	}
	if record.PaymentMethod == "" {
		record.PaymentMethod = core.PaymentMethodPix
	}
	if record.Gateway == "" {
		record.Gateway = core.GatewayPushinPay
	}
	if record.Status == "" {
		record.Status = string(core.OrderStatusPending)
	}
	return record
}

func (r *orderRecord) toDomain() core.Order {
	status, _ := core.ParseOrderStatus(r.Status)
	return core.Order{
		ID:               r.ID,
		VendorID:         r.VendorID,
		ProductID:        r.ProductID,
		CustomerEmail:    r.CustomerEmail,
		CustomerName:     r.CustomerName,
		AmountCents:      r.AmountCents,
		Currency:         r.Currency,
		PaymentMethod:    r.PaymentMethod,
		Gateway:          r.Gateway,
		GatewayPaymentID: stringValue(r.GatewayPaymentID),
		Status:           status,
		PaidAt:           cloneTime(r.PaidAt),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func cloneTime(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}
