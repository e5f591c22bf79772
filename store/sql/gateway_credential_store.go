package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type GatewayCredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*gatewayCredentialRecord]
}

func NewGatewayCredentialStore(db *bun.DB) (*GatewayCredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*gatewayCredentialRecord](db, gatewayCredentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid gateway credential repository wiring: %w", err)
		}
	}
	return &GatewayCredentialStore{db: db, repo: repo}, nil
}

func (s *GatewayCredentialStore) Get(ctx context.Context, vendorID string) (core.GatewayCredential, error) {
	if s == nil || s.repo == nil {
		return core.GatewayCredential{}, fmt.Errorf("sqlstore: gateway credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("vendor_id", "=", strings.TrimSpace(vendorID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.GatewayCredential{}, err
	}
	if len(records) == 0 {
		return core.GatewayCredential{}, core.NotFoundError("gateway credential", vendorID)
	}
	record := records[0]
	return core.GatewayCredential{
		VendorID:       record.VendorID,
		EncryptedToken: append([]byte(nil), record.EncryptedToken...),
		Environment:    record.Environment,
		UpdatedAt:      record.UpdatedAt.UTC(),
	}, nil
}

// Upsert keeps one credential row per vendor.
func (s *GatewayCredentialStore) Upsert(ctx context.Context, credential core.GatewayCredential) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: gateway credential store is not configured")
	}
	credential.VendorID = strings.TrimSpace(credential.VendorID)
	if credential.VendorID == "" || len(credential.EncryptedToken) == 0 {
		return core.ValidationError("gateway_credential", "vendor id and encrypted token are required")
	}
	environment := strings.TrimSpace(credential.Environment)
	if environment == "" {
		environment = core.GatewayEnvironmentSandbox
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &gatewayCredentialRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.vendor_id = ?", credential.VendorID).
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if errors.Is(err, sql.ErrNoRows) {
			_, insertErr := tx.NewInsert().Model(&gatewayCredentialRecord{
				ID:             uuid.NewString(),
				VendorID:       credential.VendorID,
				EncryptedToken: append([]byte(nil), credential.EncryptedToken...),
				Environment:    environment,
				CreatedAt:      now,
				UpdatedAt:      now,
			}).Exec(ctx)
			return insertErr
		}
		_, updateErr := tx.NewUpdate().
			Model((*gatewayCredentialRecord)(nil)).
			Set("encrypted_token = ?", credential.EncryptedToken).
			Set("environment = ?", environment).
			Set("updated_at = ?", now).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return updateErr
	})
}
