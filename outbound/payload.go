package outbound

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderTimestamp = "X-Webhook-Timestamp"

	DefaultUserAgent = "go-checkout-webhook/1.0"
)

// Payload is the JSON body vendors receive.
type Payload struct {
	Event         string         `json:"event"`
	OrderID       string         `json:"orderId"`
	VendorID      string         `json:"vendorId"`
	Status        string         `json:"status"`
	CustomerEmail string         `json:"customerEmail,omitempty"`
	CustomerName  string         `json:"customerName,omitempty"`
	Amount        int64          `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	OccurredAt    string         `json:"occurredAt"`
	Data          map[string]any `json:"data,omitempty"`
}

func NewPayload(event core.OrderEvent) Payload {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	order := event.Order
	return Payload{
		Event:         strings.TrimSpace(event.EventName),
		OrderID:       order.ID,
		VendorID:      order.VendorID,
		Status:        strings.ToLower(string(order.Status)),
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Amount:        order.AmountCents,
		Currency:      order.Currency,
		OccurredAt:    occurredAt.UTC().Format(time.RFC3339),
		Data:          event.Data,
	}
}

func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// SignedHeaders returns the request headers for body. The signature is hex
// HMAC-SHA256 over the exact body bytes.
func SignedHeaders(body []byte, secret string, eventName string, userAgent string, at time.Time) map[string]string {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return map[string]string{
		"Content-Type":  "application/json",
		"User-Agent":    userAgent,
		HeaderSignature: gateway.SignHex(body, secret),
		HeaderEvent:     eventName,
		HeaderTimestamp: strconv.FormatInt(at.Unix(), 10),
	}
}

// truncateBody keeps at most limit characters of a response body.
func truncateBody(body []byte, limit int) string {
	if limit <= 0 {
		limit = core.MaxResponseBodyChars
	}
	text := strings.ToValidUTF8(string(body), "")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
