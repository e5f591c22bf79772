package sqlstore

import (
	"errors"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type identified interface {
	comparable
	recordID() string
	setRecordID(id string)
}

// stringIDHandlers wires go-repository-bun for records keyed by a text uuid.
func stringIDHandlers[T identified](newRecord func() T) repository.ModelHandlers[T] {
	var zero T
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == zero {
				return uuid.Nil
			}
			return parseUUID(record.recordID())
		},
		SetID: func(record T, id uuid.UUID) {
			if record == zero {
				return
			}
			record.setRecordID(id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			if record == zero {
				return ""
			}
			return strings.TrimSpace(record.recordID())
		},
	}
}

func productHandlers() repository.ModelHandlers[*productRecord] {
	return stringIDHandlers(func() *productRecord { return &productRecord{} })
}

func orderHandlers() repository.ModelHandlers[*orderRecord] {
	return stringIDHandlers(func() *orderRecord { return &orderRecord{} })
}

func orderEventHandlers() repository.ModelHandlers[*orderEventRecord] {
	return stringIDHandlers(func() *orderEventRecord { return &orderEventRecord{} })
}

func outboundWebhookHandlers() repository.ModelHandlers[*outboundWebhookRecord] {
	return stringIDHandlers(func() *outboundWebhookRecord { return &outboundWebhookRecord{} })
}

func webhookDeliveryHandlers() repository.ModelHandlers[*webhookDeliveryRecord] {
	return stringIDHandlers(func() *webhookDeliveryRecord { return &webhookDeliveryRecord{} })
}

func checkoutSessionHandlers() repository.ModelHandlers[*checkoutSessionRecord] {
	return stringIDHandlers(func() *checkoutSessionRecord { return &checkoutSessionRecord{} })
}

func gatewayCredentialHandlers() repository.ModelHandlers[*gatewayCredentialRecord] {
	return stringIDHandlers(func() *gatewayCredentialRecord { return &gatewayCredentialRecord{} })
}

func (r *productRecord) recordID() string                { return r.ID }
func (r *productRecord) setRecordID(id string)           { r.ID = id }
func (r *orderRecord) recordID() string                  { return r.ID }
func (r *orderRecord) setRecordID(id string)             { r.ID = id }
func (r *orderEventRecord) recordID() string             { return r.ID }
func (r *orderEventRecord) setRecordID(id string)        { r.ID = id }
func (r *outboundWebhookRecord) recordID() string        { return r.ID }
func (r *outboundWebhookRecord) setRecordID(id string)   { r.ID = id }
func (r *webhookDeliveryRecord) recordID() string        { return r.ID }
func (r *webhookDeliveryRecord) setRecordID(id string)   { r.ID = id }
func (r *checkoutSessionRecord) recordID() string        { return r.ID }
func (r *checkoutSessionRecord) setRecordID(id string)   { r.ID = id }
func (r *gatewayCredentialRecord) recordID() string      { return r.ID }
func (r *gatewayCredentialRecord) setRecordID(id string) { r.ID = id }

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// isUniqueViolation recognizes duplicate-key failures from lib/pq, go-sqlite3
// and, for wrapped drivers, their messages.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

func stringPointer(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
