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

type SessionStore struct {
	db   *bun.DB
	repo repository.Repository[*checkoutSessionRecord]
}

func NewSessionStore(db *bun.DB) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*checkoutSessionRecord](db, checkoutSessionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid checkout session repository wiring: %w", err)
		}
	}
	return &SessionStore{db: db, repo: repo}, nil
}

func (s *SessionStore) Create(ctx context.Context, session core.CheckoutSession) (core.CheckoutSession, error) {
	if s == nil || s.repo == nil {
		return core.CheckoutSession{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	session.OrderID = strings.TrimSpace(session.OrderID)
	if session.OrderID == "" {
		return core.CheckoutSession{}, fmt.Errorf("sqlstore: session order id is required")
	}
	now := time.Now().UTC()
	lastSeen := session.LastSeenAt.UTC()
	if session.LastSeenAt.IsZero() {
		lastSeen = now
	}
	record := &checkoutSessionRecord{
		ID:         strings.TrimSpace(session.ID),
		OrderID:    session.OrderID,
		VendorID:   strings.TrimSpace(session.VendorID),
		Status:     string(session.Status),
		LastSeenAt: lastSeen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = string(core.SessionStatusActive)
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.CheckoutSession{}, err
	}
	return created.toDomain(), nil
}

// Touch bumps last_seen_at of an active session. It reports false when the
// session is missing or no longer active.
func (s *SessionStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: session store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*checkoutSessionRecord)(nil)).
		Set("last_seen_at = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.SessionStatusActive)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SessionStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]core.CheckoutSession, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: session store is not configured")
	}
	if limit <= 0 {
		limit = defaultDueLimit
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.SessionStatusActive)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.last_seen_at < ?", cutoff.UTC())
		}),
		repository.OrderBy("last_seen_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.CheckoutSession, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *SessionStore) UpdateStatus(ctx context.Context, id string, status core.SessionStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*checkoutSessionRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.NotFoundError("checkout session", id)
	}
	return nil
}

func (r *checkoutSessionRecord) toDomain() core.CheckoutSession {
	return core.CheckoutSession{
		ID:         r.ID,
		OrderID:    r.OrderID,
		VendorID:   r.VendorID,
		Status:     core.SessionStatus(r.Status),
		LastSeenAt: r.LastSeenAt.UTC(),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
