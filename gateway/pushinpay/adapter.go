// Package pushinpay implements the PushinPay gateway: webhook normalization
// and signature checks, plus the PIX charge API client.
package pushinpay

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway"
)

const Name = core.GatewayPushinPay

const (
	HeaderSignature       = "X-PushinPay-Signature"
	HeaderSignatureLegacy = "X-PushingPay-Signature"
)

// Payload is the webhook body PushinPay posts on charge changes.
type Payload struct {
	ID          string      `json:"id"`
	EventID     string      `json:"event_id,omitempty"`
	Status      string      `json:"status"`
	Value       json.Number `json:"value,omitempty"`
	EndToEndID  string      `json:"end_to_end_id,omitempty"`
	PayerName   string      `json:"payer_name,omitempty"`
	PaymentID   string      `json:"payment_id,omitempty"`
	CreatedAt   string      `json:"created_at,omitempty"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
	PayerTaxID  string      `json:"payer_national_registration,omitempty"`
	WebhookType string      `json:"type,omitempty"`
}

var statusEvents = map[string]string{
	"created":     core.EventPixCreated,
	"paid":        core.EventPixPaid,
	"approved":    core.EventPixPaid,
	"expired":     core.EventPixExpired,
	"canceled":    core.EventPixCanceled,
	"cancelled":   core.EventPixCanceled,
	"refunded":    core.EventRefund,
	"chargeback":  core.EventChargeback,
	"chargedback": core.EventChargeback,
}

type Adapter struct {
	verifier gateway.HMACVerifier
	now      func() time.Time
}

func NewAdapter() *Adapter {
	return &Adapter{
		verifier: gateway.HMACVerifier{Prefix: "sha256=", Encoding: gateway.EncodingHex},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock replaces the clock used when a payload carries no timestamp.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	if a != nil && now != nil {
		a.now = now
	}
	return a
}

func (*Adapter) Name() string {
	return Name
}

func (*Adapter) SignatureHeaders() []string {
	return []string{HeaderSignature, HeaderSignatureLegacy}
}

func (a *Adapter) VerifySignature(rawBody []byte, signature string, secret string) bool {
	if a == nil {
		return false
	}
	return a.verifier.Verify(rawBody, signature, secret)
}

func (a *Adapter) Normalize(raw []byte) (core.CanonicalEvent, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return core.CanonicalEvent{}, core.MalformedPayloadError(nil, "pushinpay: empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload Payload
	if err := decoder.Decode(&payload); err != nil {
		return core.CanonicalEvent{}, core.MalformedPayloadError(err, "pushinpay: payload is not valid json")
	}

	chargeID := strings.TrimSpace(payload.ID)
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if chargeID == "" {
		return core.CanonicalEvent{}, core.MalformedPayloadError(nil, "pushinpay: payload id is required")
	}
	if status == "" {
		return core.CanonicalEvent{}, core.MalformedPayloadError(nil, "pushinpay: payload status is required")
	}

	eventType, ok := statusEvents[status]
	if !ok {
		eventType = "pix." + status
	}
	eventID := strings.TrimSpace(payload.EventID)
	if eventID == "" {
		eventID = chargeID + ":" + status
	}

	reference := strings.TrimSpace(payload.PaymentID)
	if reference == "" {
		reference = chargeID
	}

	return core.CanonicalEvent{
		EventType:        eventType,
		Status:           status,
		GatewayEventID:   eventID,
		PaymentReference: reference,
		ChargeID:         chargeID,
		AmountCents:      parseCents(payload.Value),
		OccurredAt:       a.occurredAt(payload),
		Raw:              append([]byte(nil), raw...),
	}, nil
}

func (a *Adapter) occurredAt(payload Payload) time.Time {
	for _, candidate := range []string{payload.UpdatedAt, payload.CreatedAt} {
		if parsed, ok := parseTimestamp(candidate); ok {
			return parsed
		}
	}
	if a.now == nil {
		return time.Now().UTC()
	}
	return a.now()
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05.000000Z"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseCents(value json.Number) int64 {
	if value == "" {
		return 0
	}
	if cents, err := value.Int64(); err == nil {
		return cents
	}
	if f, err := value.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

var _ gateway.Adapter = (*Adapter)(nil)
