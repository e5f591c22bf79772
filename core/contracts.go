package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type OrderStore interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	// FindByGatewayReference resolves an order by gateway payment id first
	// and by the PIX charge mapping second.
	FindByGatewayReference(ctx context.Context, paymentReference string, chargeID string) (Order, error)
	// UpdateStatus moves the order from -> to and reports whether a row
	// changed. A concurrent writer that already moved the order wins.
	UpdateStatus(ctx context.Context, id string, from OrderStatus, to OrderStatus, at time.Time) (bool, error)
	AttachCharge(ctx context.Context, orderID string, chargeID string) error
}

type EventLedger interface {
	RecordIfNew(ctx context.Context, input GatewayEventInput) (bool, error)
}

type EventReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]GatewayEvent, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub Subscription) (Subscription, error)
	Get(ctx context.Context, id string) (Subscription, error)
	// ListActive returns active subscriptions of vendorID that include
	// eventName. Product allowlists are loaded but not filtered.
	ListActive(ctx context.Context, vendorID string, eventName string) ([]Subscription, error)
}

type DeliveryStore interface {
	Create(ctx context.Context, delivery Delivery) (Delivery, error)
	Get(ctx context.Context, id string) (Delivery, error)
	RecordAttempt(ctx context.Context, id string, attempt DeliveryAttempt) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
	ListByWebhook(ctx context.Context, webhookID string, limit int) ([]Delivery, error)
}

type ProductStore interface {
	Create(ctx context.Context, product Product) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
}

type GatewayCredentialStore interface {
	Get(ctx context.Context, vendorID string) (GatewayCredential, error)
	Upsert(ctx context.Context, credential GatewayCredential) error
}

type SessionStore interface {
	Create(ctx context.Context, session CheckoutSession) (CheckoutSession, error)
	Touch(ctx context.Context, id string, at time.Time) (bool, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]CheckoutSession, error)
	UpdateStatus(ctx context.Context, id string, status SessionStatus) error
}

// OrderEvent is the unit handed to the outbound dispatcher.
type OrderEvent struct {
	Order      Order
	EventName  string
	OccurredAt time.Time
	Data       map[string]any
}

// Notifier receives order events after they are durably recorded.
// Implementations must not block the caller on remote I/O failures.
type Notifier interface {
	Notify(ctx context.Context, event OrderEvent)
}

type NotifierFunc func(ctx context.Context, event OrderEvent)

func (f NotifierFunc) Notify(ctx context.Context, event OrderEvent) {
	if f != nil {
		f(ctx, event)
	}
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, OrderEvent) {}

type DispatchStats struct {
	Matched   int
	Delivered int
	Retried   int
	Failed    int
}

func (s DispatchStats) Add(other DispatchStats) DispatchStats {
	return DispatchStats{
		Matched:   s.Matched + other.Matched,
		Delivered: s.Delivered + other.Delivered,
		Retried:   s.Retried + other.Retried,
		Failed:    s.Failed + other.Failed,
	}
}
