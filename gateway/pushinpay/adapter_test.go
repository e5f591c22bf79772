package pushinpay

import (
	"testing"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway"
)

func TestAdapter_NormalizePaidWebhook(t *testing.T) {
	raw := []byte(`{"id":"pix_1","status":"paid","value":1990,"updated_at":"2026-01-02T10:00:00Z"}`)
	event, err := NewAdapter().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.EventType != core.EventPixPaid {
		t.Fatalf("expected %s, got %s", core.EventPixPaid, event.EventType)
	}
	if event.GatewayEventID != "pix_1:paid" {
		t.Fatalf("expected derived event id, got %q", event.GatewayEventID)
	}
	if event.PaymentReference != "pix_1" || event.ChargeID != "pix_1" {
		t.Fatalf("unexpected references %q %q", event.PaymentReference, event.ChargeID)
	}
	if event.AmountCents != 1990 {
		t.Fatalf("expected 1990 cents, got %d", event.AmountCents)
	}
	if !event.OccurredAt.Equal(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occurred at %s", event.OccurredAt)
	}
}

func TestAdapter_NormalizePrefersExplicitIdentifiers(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	raw := []byte(`{"id":"pix_2","event_id":"evt_9","payment_id":"pay_7","status":"REFUNDED"}`)
	event, err := NewAdapter().WithClock(func() time.Time { return fixed }).Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.EventType != core.EventRefund {
		t.Fatalf("expected refund, got %s", event.EventType)
	}
	if event.GatewayEventID != "evt_9" || event.PaymentReference != "pay_7" || event.ChargeID != "pix_2" {
		t.Fatalf("unexpected identifiers %+v", event)
	}
	if !event.OccurredAt.Equal(fixed) {
		t.Fatalf("expected clock fallback, got %s", event.OccurredAt)
	}
}

func TestAdapter_NormalizeRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"not json":       `{"id":`,
		"missing id":     `{"status":"paid"}`,
		"missing status": `{"id":"pix_1"}`,
	}
	for name, raw := range cases {
		_, err := NewAdapter().Normalize([]byte(raw))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if got := core.MapError(err).TextCode; got != core.ErrorMalformedPayload {
			t.Fatalf("%s: expected malformed payload code, got %s", name, got)
		}
	}
}

func TestAdapter_UnknownStatusKeepsPixPrefix(t *testing.T) {
	event, err := NewAdapter().Normalize([]byte(`{"id":"pix_1","status":"processing"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.EventType != "pix.processing" {
		t.Fatalf("unexpected event type %q", event.EventType)
	}
}

func TestAdapter_VerifySignatureAcceptsPrefixedHex(t *testing.T) {
	body := []byte(`{"id":"pix_1","status":"paid"}`)
	adapter := NewAdapter()
	if !adapter.VerifySignature(body, "sha256="+gateway.SignHex(body, "whsec"), "whsec") {
		t.Fatalf("expected prefixed signature to verify")
	}
	if adapter.VerifySignature(body, gateway.SignHex(body, "other"), "whsec") {
		t.Fatalf("expected wrong secret to fail")
	}
	headers := adapter.SignatureHeaders()
	if len(headers) != 2 || headers[0] != HeaderSignature || headers[1] != HeaderSignatureLegacy {
		t.Fatalf("unexpected signature headers %v", headers)
	}
}
