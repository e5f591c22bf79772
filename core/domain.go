package core

import (
	"slices"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "PENDING"
	OrderStatusPaid        OrderStatus = "PAID"
	OrderStatusExpired     OrderStatus = "EXPIRED"
	OrderStatusCanceled    OrderStatus = "CANCELED"
	OrderStatusAbandoned   OrderStatus = "ABANDONED"
	OrderStatusRefunded    OrderStatus = "REFUNDED"
	OrderStatusChargedback OrderStatus = "CHARGEDBACK"
)

// ParseOrderStatus accepts any casing of a known status.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusExpired, OrderStatusCanceled,
		OrderStatusAbandoned, OrderStatusRefunded, OrderStatusChargedback:
		return status, true
	default:
		return "", false
	}
}

const (
	DefaultCurrency      = "BRL"
	PaymentMethodPix     = "pix"
	GatewayPushinPay     = "pushinpay"
	MinOrderAmountCents  = 50
	MaxResponseBodyChars = 1000
)

type Order struct {
	ID               string
	VendorID         string
	ProductID        string
	CustomerEmail    string
	CustomerName     string
	AmountCents      int64
	Currency         string
	PaymentMethod    string
	Gateway          string
	GatewayPaymentID string
	Status           OrderStatus
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Inbound gateway event types, as produced by gateway adapters.
const (
	EventPixCreated        = "pix.created"
	EventPixPaid           = "pix.paid"
	EventPixExpired        = "pix.expired"
	EventPixCanceled       = "pix.canceled"
	EventRefund            = "refund"
	EventChargeback        = "chargeback"
	EventCheckoutAbandoned = "checkout.abandoned"
)

// Outbound event names vendors subscribe to.
const (
	OutboundPixGenerated      = "pix_generated"
	OutboundPurchaseApproved  = "purchase_approved"
	OutboundPurchaseRefused   = "purchase_refused"
	OutboundRefund            = "refund"
	OutboundChargeback        = "chargeback"
	OutboundCheckoutAbandoned = "checkout_abandoned"
)

// CanonicalEvent is the gateway-neutral form of an inbound webhook.
type CanonicalEvent struct {
	EventType        string
	Status           string
	GatewayEventID   string
	PaymentReference string
	ChargeID         string
	AmountCents      int64
	OccurredAt       time.Time
	Raw              []byte
}

type GatewayEventInput struct {
	GatewayEventID string
	OrderID        string
	VendorID       string
	Type           string
	Payload        []byte
	OccurredAt     time.Time
}

type GatewayEvent struct {
	ID             string
	GatewayEventID string
	OrderID        string
	VendorID       string
	Type           string
	Payload        []byte
	OccurredAt     time.Time
	CreatedAt      time.Time
}

type Subscription struct {
	ID              string
	VendorID        string
	Name            string
	URL             string
	EncryptedSecret []byte
	Events          []string
	ProductIDs      []string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Accepts reports whether the subscription wants eventName for productID.
// An empty product allowlist accepts every product.
func (s Subscription) Accepts(eventName string, productID string) bool {
	if !s.Active {
		return false
	}
	eventName = strings.TrimSpace(eventName)
	if eventName == "" || !slices.Contains(s.Events, eventName) {
		return false
	}
	if len(s.ProductIDs) == 0 {
		return true
	}
	return slices.Contains(s.ProductIDs, strings.TrimSpace(productID))
}

type DeliveryStatus string

const (
	DeliveryStatusPending      DeliveryStatus = "pending"
	DeliveryStatusDelivered    DeliveryStatus = "delivered"
	DeliveryStatusFailed       DeliveryStatus = "failed"
	DeliveryStatusPendingRetry DeliveryStatus = "pending_retry"
)

type Delivery struct {
	ID             string
	WebhookID      string
	OrderID        string
	EventType      string
	Payload        []byte
	Status         DeliveryStatus
	Attempts       int
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	ResponseStatus int
	ResponseBody   string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	DefaultDeliveryListLimit = 50
	MaxDeliveryListLimit     = 200
	DefaultSweepBatchSize    = 100
)

// ClampDeliveryListLimit applies the delivery log paging bounds.
func ClampDeliveryListLimit(limit int) int {
	if limit <= 0 {
		return DefaultDeliveryListLimit
	}
	if limit > MaxDeliveryListLimit {
		return MaxDeliveryListLimit
	}
	return limit
}

// DeliveryAttempt is the outcome written back to a delivery row after a try.
type DeliveryAttempt struct {
	Status         DeliveryStatus
	Attempts       int
	AttemptedAt    time.Time
	NextRetryAt    *time.Time
	ResponseStatus int
	ResponseBody   string
	ErrorMessage   string
}

type Product struct {
	ID        string
	VendorID  string
	Name      string
	Active    bool
	CreatedAt time.Time
}

const (
	GatewayEnvironmentSandbox    = "sandbox"
	GatewayEnvironmentProduction = "production"
)

type GatewayCredential struct {
	VendorID       string
	EncryptedToken []byte
	Environment    string
	UpdatedAt      time.Time
}

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusAbandoned SessionStatus = "abandoned"
	SessionStatusConverted SessionStatus = "converted"
)

type CheckoutSession struct {
	ID         string
	OrderID    string
	VendorID   string
	Status     SessionStatus
	LastSeenAt time.Time
	CreatedAt  time.Time
}
