package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MessageOK        = "ok"
	MessageDuplicate = "duplicate"
	MessageNoOrder   = "no-order"
)

type InboundRequest struct {
	Headers map[string]string
	Body    []byte
}

type InboundResult struct {
	StatusCode int
	Message    string
}

type Option func(*Receiver)

func WithNotifier(notifier core.Notifier) Option {
	return func(r *Receiver) {
		if notifier != nil {
			r.notifier = notifier
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(r *Receiver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(r *Receiver) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// WithAckUnknownOrders answers 200 "no-order" instead of 404 when no order
// matches the payment reference, so the gateway stops redelivering.
func WithAckUnknownOrders(enabled bool) Option {
	return func(r *Receiver) {
		r.ackUnknownOrders = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Receiver) {
		if now != nil {
			r.now = now
		}
	}
}

type Receiver struct {
	adapter          gateway.Adapter
	secret           string
	orders           core.OrderStore
	ledger           core.EventLedger
	notifier         core.Notifier
	logger           core.Logger
	metrics          core.MetricsRecorder
	ackUnknownOrders bool
	now              func() time.Time
	observer         core.Observer
}

func NewReceiver(
	adapter gateway.Adapter,
	secret string,
	orders core.OrderStore,
	ledger core.EventLedger,
	opts ...Option,
) (*Receiver, error) {
	if adapter == nil {
		return nil, fmt.Errorf("webhooks: gateway adapter is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("webhooks: order store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("webhooks: event ledger is required")
	}
	r := &Receiver{
		adapter:  adapter,
		secret:   strings.TrimSpace(secret),
		orders:   orders,
		ledger:   ledger,
		notifier: core.NopNotifier{},
		metrics:  core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.observer = core.NewObserver("webhooks", r.logger, r.metrics)
	return r, nil
}

// Handle processes one gateway delivery. The returned result always carries
// the HTTP status to answer with; err is set for every non-2xx outcome.
func (r *Receiver) Handle(ctx context.Context, req InboundRequest) (InboundResult, error) {
	startedAt := time.Now()
	fields := map[string]any{"gateway": r.adapter.Name()}

	signature := gateway.FirstHeader(req.Headers, r.adapter.SignatureHeaders()...)
	if !r.adapter.VerifySignature(req.Body, signature, r.secret) {
		err := core.SignatureError("invalid webhook signature")
		r.observer.Count(ctx, "rejected", 1, map[string]string{"reason": "signature"})
		r.observer.Warn(ctx, "webhook signature rejected", fields)
		return InboundResult{StatusCode: http.StatusUnauthorized}, err
	}

	event, err := r.adapter.Normalize(req.Body)
	if err != nil {
		r.observer.Count(ctx, "rejected", 1, map[string]string{"reason": "malformed"})
		r.observer.Warn(ctx, "webhook payload rejected", withError(fields, err))
		return InboundResult{StatusCode: http.StatusBadRequest}, core.MapError(err)
	}
	fields["gateway_event_id"] = event.GatewayEventID
	fields["event_type"] = event.EventType

	order, err := r.orders.FindByGatewayReference(ctx, event.PaymentReference, event.ChargeID)
	if err != nil {
		if core.IsNotFound(err) {
			fields["payment_reference"] = event.PaymentReference
			if r.ackUnknownOrders {
				r.observer.Warn(ctx, "webhook acknowledged without order", fields)
				return InboundResult{StatusCode: http.StatusOK, Message: MessageNoOrder}, nil
			}
			r.observer.Warn(ctx, "webhook order not found", fields)
			return InboundResult{StatusCode: http.StatusNotFound}, core.OrderNotFoundError(event.PaymentReference)
		}
		return r.fail(ctx, startedAt, err, fields)
	}
	fields["order_id"] = order.ID

	inserted, err := r.ledger.RecordIfNew(ctx, core.GatewayEventInput{
		GatewayEventID: event.GatewayEventID,
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		Type:           event.EventType,
		Payload:        event.Raw,
		OccurredAt:     event.OccurredAt,
	})
	if err != nil {
		return r.fail(ctx, startedAt, err, fields)
	}
	ack := InboundResult{StatusCode: http.StatusOK, Message: MessageOK}
	if !inserted {
		// A redelivery still owes its transition when the first attempt
		// failed after the ledger write; the conditional update below makes
		// it a no-op otherwise.
		ack.Message = MessageDuplicate
		fields["duplicate"] = true
		r.observer.Count(ctx, "duplicate", 1, nil)
		r.observer.Info(ctx, "webhook already processed", fields)
	}

	next, ok := core.NextStatus(event.EventType, order.Status)
	if !ok || next == order.Status {
		fields["order_status"] = string(order.Status)
		r.observer.Observe(ctx, startedAt, "receive", nil, fields)
		return ack, nil
	}

	changed, err := r.orders.UpdateStatus(ctx, order.ID, order.Status, next, r.now())
	if err != nil {
		return r.fail(ctx, startedAt, err, fields)
	}
	fields["from_status"] = string(order.Status)
	fields["to_status"] = string(next)
	if !changed {
		// Another writer moved the order first; its transition owns the
		// notification.
		fields["stale"] = true
		r.observer.Observe(ctx, startedAt, "receive", nil, fields)
		return ack, nil
	}

	if eventName, notify := core.OutboundEventForStatus(next); notify {
		updated := order
		updated.Status = next
		updated.UpdatedAt = r.now()
		if next == core.OrderStatusPaid {
			paidAt := updated.UpdatedAt
			updated.PaidAt = &paidAt
		}
		r.notifier.Notify(ctx, core.OrderEvent{
			Order:      updated,
			EventName:  eventName,
			OccurredAt: event.OccurredAt,
			Data: map[string]any{
				"gateway_event_id": event.GatewayEventID,
				"gateway_status":   event.Status,
			},
		})
	}

	r.observer.Observe(ctx, startedAt, "receive", nil, fields)
	return ack, nil
}

func (r *Receiver) fail(ctx context.Context, startedAt time.Time, err error, fields map[string]any) (InboundResult, error) {
	mapped := core.MapError(err)
	if mapped == nil || mapped.Category != goerrors.CategoryInternal {
		mapped = core.InternalError(err, "webhook processing failed")
	}
	r.observer.Observe(ctx, startedAt, "receive", err, fields)
	return InboundResult{StatusCode: http.StatusInternalServerError}, mapped
}

func withError(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		out[key] = value
	}
	out["error"] = err.Error()
	return out
}
