package outbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/transport"
	goerrors "github.com/goliatone/go-errors"
)

const defaultTimeout = 10 * time.Second

// recoveryGrace is added to the request timeout to form the deadline after
// which an unrecorded attempt becomes due for the sweeper.
const recoveryGrace = time.Minute

type Config struct {
	Timeout         time.Duration
	UserAgent       string
	MaxResponseBody int
	Backoff         core.BackoffSchedule
}

// ConfigFromCore picks the dispatcher settings out of the service config.
func ConfigFromCore(cfg core.Config) Config {
	return Config{
		Timeout:         cfg.Dispatch.Timeout,
		UserAgent:       cfg.Dispatch.UserAgent,
		MaxResponseBody: cfg.Dispatch.MaxResponseBody,
		Backoff:         cfg.BackoffSchedule(),
	}
}

type Option func(*Dispatcher)

func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) {
		if cfg.Timeout > 0 {
			d.config.Timeout = cfg.Timeout
		}
		if strings.TrimSpace(cfg.UserAgent) != "" {
			d.config.UserAgent = strings.TrimSpace(cfg.UserAgent)
		}
		if cfg.MaxResponseBody > 0 {
			d.config.MaxResponseBody = cfg.MaxResponseBody
		}
		if len(cfg.Backoff) > 0 {
			d.config.Backoff = append(core.BackoffSchedule(nil), cfg.Backoff...)
		}
	}
}

func WithHTTP(adapter *transport.RESTAdapter) Option {
	return func(d *Dispatcher) {
		if adapter != nil {
			d.http = adapter
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

type Dispatcher struct {
	subscriptions core.SubscriptionStore
	deliveries    core.DeliveryStore
	secrets       core.SecretProvider
	http          *transport.RESTAdapter
	config        Config
	logger        core.Logger
	metrics       core.MetricsRecorder
	now           func() time.Time
	observer      core.Observer
}

func NewDispatcher(
	subscriptions core.SubscriptionStore,
	deliveries core.DeliveryStore,
	secrets core.SecretProvider,
	opts ...Option,
) (*Dispatcher, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("outbound: subscription store is required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("outbound: delivery store is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("outbound: secret provider is required")
	}
	d := &Dispatcher{
		subscriptions: subscriptions,
		deliveries:    deliveries,
		secrets:       secrets,
		config: Config{
			Timeout:         defaultTimeout,
			UserAgent:       DefaultUserAgent,
			MaxResponseBody: core.MaxResponseBodyChars,
			Backoff:         core.DefaultBackoffSchedule(),
		},
		metrics: core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.http == nil {
		d.http = transport.NewRESTAdapter(nil)
	}
	d.observer = core.NewObserver("outbound", d.logger, d.metrics)
	return d, nil
}

func (*Dispatcher) Name() string {
	return "outbound_webhooks"
}

// Forward lets the dispatcher run as an async notification target.
func (d *Dispatcher) Forward(ctx context.Context, event core.OrderEvent) error {
	_, err := d.Dispatch(ctx, event)
	return err
}

// Dispatch sends event to every active subscription of the order's vendor
// that wants it. Per-subscription delivery failures are recorded and
// counted, not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.OrderEvent) (core.DispatchStats, error) {
	startedAt := time.Now()
	var stats core.DispatchStats
	eventName := strings.TrimSpace(event.EventName)
	if eventName == "" {
		return stats, core.ValidationError("event", "event name is required")
	}
	fields := map[string]any{
		"event":     eventName,
		"order_id":  event.Order.ID,
		"vendor_id": event.Order.VendorID,
	}

	subs, err := d.subscriptions.ListActive(ctx, event.Order.VendorID, eventName)
	if err != nil {
		d.observer.Observe(ctx, startedAt, "dispatch", err, fields)
		return stats, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}
	body, err := NewPayload(event).Encode()
	if err != nil {
		return stats, core.InternalError(err, "outbound: encode payload")
	}

	var errs []error
	for _, sub := range subs {
		if !sub.Accepts(eventName, event.Order.ProductID) {
			continue
		}
		stats.Matched++
		delivery, err := d.deliveries.Create(ctx, core.Delivery{
			WebhookID:   sub.ID,
			OrderID:     event.Order.ID,
			EventType:   eventName,
			Payload:     body,
			Status:      core.DeliveryStatusPending,
			NextRetryAt: d.recoveryDeadline(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("outbound: record delivery for webhook %s: %w", sub.ID, err))
			continue
		}
		attempt, err := d.deliver(ctx, sub, delivery)
		if err != nil {
			errs = append(errs, err)
		}
		stats = stats.Add(statsFor(attempt.Status))
	}

	fields["matched"] = stats.Matched
	fields["delivered"] = stats.Delivered
	fields["retried"] = stats.Retried
	fields["failed"] = stats.Failed
	joined := errors.Join(errs...)
	d.observer.Observe(ctx, startedAt, "dispatch", joined, fields)
	return stats, joined
}

// SendTest posts a synthetic payload to one subscription, ignoring its
// event filter, and records the delivery without an order.
func (d *Dispatcher) SendTest(ctx context.Context, webhookID string, eventName string) (core.Delivery, error) {
	sub, err := d.subscriptions.Get(ctx, strings.TrimSpace(webhookID))
	if err != nil {
		return core.Delivery{}, err
	}
	eventName = strings.TrimSpace(eventName)
	if eventName == "" {
		eventName = core.OutboundPurchaseApproved
	}
	now := d.now()
	body, err := Payload{
		Event:         eventName,
		OrderID:       "test-order",
		VendorID:      sub.VendorID,
		Status:        "test",
		CustomerEmail: "test@example.com",
		CustomerName:  "Test Customer",
		Amount:        1000,
		Currency:      core.DefaultCurrency,
		OccurredAt:    now.Format(time.RFC3339),
		Data:          map[string]any{"test": true},
	}.Encode()
	if err != nil {
		return core.Delivery{}, core.InternalError(err, "outbound: encode test payload")
	}
	delivery, err := d.deliveries.Create(ctx, core.Delivery{
		WebhookID:   sub.ID,
		EventType:   eventName,
		Payload:     body,
		Status:      core.DeliveryStatusPending,
		NextRetryAt: d.recoveryDeadline(),
	})
	if err != nil {
		return core.Delivery{}, err
	}
	attempt, err := d.deliver(ctx, sub, delivery)
	if err != nil {
		return core.Delivery{}, err
	}
	return applyAttempt(delivery, attempt), nil
}

// ListDeliveries returns the delivery log of a webhook, newest first.
func (d *Dispatcher) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]core.Delivery, error) {
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return nil, core.ValidationError("webhook_id", "webhook id is required")
	}
	return d.deliveries.ListByWebhook(ctx, webhookID, core.ClampDeliveryListLimit(limit))
}

// recoveryDeadline is stored on new pending rows. Recording the attempt
// replaces it; a row whose outcome was never recorded is picked up by the
// sweeper once it passes.
func (d *Dispatcher) recoveryDeadline() *time.Time {
	deadline := d.now().Add(d.config.Timeout + recoveryGrace)
	return &deadline
}

// deliver performs one attempt of delivery against sub and persists the
// outcome. The returned error covers persistence only.
func (d *Dispatcher) deliver(ctx context.Context, sub core.Subscription, delivery core.Delivery) (core.DeliveryAttempt, error) {
	attempts := delivery.Attempts + 1
	now := d.now()
	attempt := core.DeliveryAttempt{
		Attempts:    attempts,
		AttemptedAt: now,
	}
	fields := map[string]any{
		"delivery_id": delivery.ID,
		"webhook_id":  sub.ID,
		"event":       delivery.EventType,
		"attempt":     attempts,
	}

	sendErr := d.send(ctx, sub, delivery, now, &attempt)
	if sendErr == nil {
		attempt.Status = core.DeliveryStatusDelivered
	} else {
		attempt.ErrorMessage = sendErr.Error()
		if delay, ok := d.config.Backoff.NextDelay(attempts); ok {
			next := now.Add(delay)
			attempt.Status = core.DeliveryStatusPendingRetry
			attempt.NextRetryAt = &next
		} else {
			attempt.Status = core.DeliveryStatusFailed
			fields["text_code"] = core.ErrorRetriesExhausted
		}
		fields["status"] = string(attempt.Status)
		fields["response_status"] = attempt.ResponseStatus
		fields["error"] = attempt.ErrorMessage
		d.observer.Warn(ctx, "webhook delivery failed", fields)
	}

	if err := d.deliveries.RecordAttempt(ctx, delivery.ID, attempt); err != nil {
		return attempt, fmt.Errorf("outbound: record attempt for delivery %s: %w", delivery.ID, err)
	}
	d.observer.Count(ctx, "delivery", 1, map[string]string{"status": string(attempt.Status)})
	return attempt, nil
}

func (d *Dispatcher) send(ctx context.Context, sub core.Subscription, delivery core.Delivery, now time.Time, attempt *core.DeliveryAttempt) error {
	secret, err := d.secrets.Decrypt(ctx, sub.EncryptedSecret)
	if err != nil {
		return core.WrapError(err, goerrors.CategoryInternal, "outbound: decrypt webhook secret", core.ErrorDeliveryFailed, nil)
	}
	res, err := d.http.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     sub.URL,
		Headers: SignedHeaders(delivery.Payload, string(secret), delivery.EventType, d.config.UserAgent, now),
		Body:    delivery.Payload,
		Timeout: d.config.Timeout,
	})
	if err != nil {
		attempt.ResponseStatus = 0
		return err
	}
	attempt.ResponseStatus = res.StatusCode
	attempt.ResponseBody = truncateBody(res.Body, d.config.MaxResponseBody)
	if !res.Success() {
		return core.NewError(
			fmt.Sprintf("unexpected status %d", res.StatusCode),
			goerrors.CategoryExternal,
			core.ErrorDeliveryFailed,
			map[string]any{"status_code": res.StatusCode},
		)
	}
	return nil
}

func statsFor(status core.DeliveryStatus) core.DispatchStats {
	switch status {
	case core.DeliveryStatusDelivered:
		return core.DispatchStats{Delivered: 1}
	case core.DeliveryStatusPendingRetry:
		return core.DispatchStats{Retried: 1}
	case core.DeliveryStatusFailed:
		return core.DispatchStats{Failed: 1}
	default:
		return core.DispatchStats{}
	}
}

func applyAttempt(delivery core.Delivery, attempt core.DeliveryAttempt) core.Delivery {
	attemptedAt := attempt.AttemptedAt
	delivery.Status = attempt.Status
	delivery.Attempts = attempt.Attempts
	delivery.LastAttemptAt = &attemptedAt
	delivery.NextRetryAt = attempt.NextRetryAt
	delivery.ResponseStatus = attempt.ResponseStatus
	delivery.ResponseBody = attempt.ResponseBody
	delivery.ErrorMessage = attempt.ErrorMessage
	delivery.UpdatedAt = attemptedAt
	return delivery
}
