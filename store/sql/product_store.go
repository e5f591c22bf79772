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

type ProductStore struct {
	db   *bun.DB
	repo repository.Repository[*productRecord]
}

func NewProductStore(db *bun.DB) (*ProductStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*productRecord](db, productHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid product repository wiring: %w", err)
		}
	}
	return &ProductStore{db: db, repo: repo}, nil
}

func (s *ProductStore) Create(ctx context.Context, product core.Product) (core.Product, error) {
	if s == nil || s.repo == nil {
		return core.Product{}, fmt.Errorf("sqlstore: product store is not configured")
	}
	product.VendorID = strings.TrimSpace(product.VendorID)
	product.Name = strings.TrimSpace(product.Name)
	if product.VendorID == "" || product.Name == "" {
		return core.Product{}, core.ValidationError("product", "vendor id and name are required")
	}
	now := time.Now().UTC()
	record := &productRecord{
		ID:        strings.TrimSpace(product.ID),
		VendorID:  product.VendorID,
		Name:      product.Name,
		Active:    product.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Product{}, err
	}
	return created.toDomain(), nil
}

func (s *ProductStore) Get(ctx context.Context, id string) (core.Product, error) {
	if s == nil || s.repo == nil {
		return core.Product{}, fmt.Errorf("sqlstore: product store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Product{}, err
	}
	if len(records) == 0 {
		return core.Product{}, core.NotFoundError("product", id)
	}
	return records[0].toDomain(), nil
}

func (r *productRecord) toDomain() core.Product {
	return core.Product{
		ID:        r.ID,
		VendorID:  r.VendorID,
		Name:      r.Name,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
