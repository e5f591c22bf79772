package command

import (
	"strings"

	"github.com/goliatone/go-checkout/orders"
	"github.com/goliatone/go-checkout/webhooks"
)

const (
	TypeProcessGatewayWebhook = "checkout.command.webhook.process"
	TypeCreateOrder           = "checkout.command.order.create"
	TypeCreatePixCharge       = "checkout.command.pix.create"
	TypeHeartbeat             = "checkout.command.session.heartbeat"
	TypeSweepRetries          = "checkout.command.deliveries.sweep"
	TypeSweepAbandoned        = "checkout.command.sessions.sweep"
	TypeSendTestWebhook       = "checkout.command.webhook.test"

	TypePaymentStatusQuery  = "checkout.query.payment.status"
	TypeListDeliveriesQuery = "checkout.query.deliveries.list"
)

type ProcessGatewayWebhookMessage struct {
	Request webhooks.InboundRequest
}

func (ProcessGatewayWebhookMessage) Type() string { return TypeProcessGatewayWebhook }

func (m ProcessGatewayWebhookMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return commandValidationError("body", "webhook body is required")
	}
	return nil
}

type CreateOrderMessage struct {
	Input orders.CreateOrderInput
}

func (CreateOrderMessage) Type() string { return TypeCreateOrder }

func (m CreateOrderMessage) Validate() error {
	if strings.TrimSpace(m.Input.VendorID) == "" {
		return commandValidationError("vendorId", "vendor id is required")
	}
	if strings.TrimSpace(m.Input.ProductID) == "" {
		return commandValidationError("productId", "product id is required")
	}
	return nil
}

type CreatePixChargeMessage struct {
	OrderID string
}

func (CreatePixChargeMessage) Type() string { return TypeCreatePixCharge }

func (m CreatePixChargeMessage) Validate() error {
	return requireID("orderId", m.OrderID)
}

type HeartbeatMessage struct {
	SessionID string
}

func (HeartbeatMessage) Type() string { return TypeHeartbeat }

func (m HeartbeatMessage) Validate() error {
	return requireID("sessionId", m.SessionID)
}

// SweepRetriesMessage redelivers due pending_retry deliveries. Zero Limit
// uses the default batch size.
type SweepRetriesMessage struct {
	Limit int
}

func (SweepRetriesMessage) Type() string { return TypeSweepRetries }

func (m SweepRetriesMessage) Validate() error {
	return validateLimit(m.Limit)
}

type SweepAbandonedMessage struct {
	Limit int
}

func (SweepAbandonedMessage) Type() string { return TypeSweepAbandoned }

func (m SweepAbandonedMessage) Validate() error {
	return validateLimit(m.Limit)
}

type SendTestWebhookMessage struct {
	WebhookID string
	Event     string
}

func (SendTestWebhookMessage) Type() string { return TypeSendTestWebhook }

func (m SendTestWebhookMessage) Validate() error {
	return requireID("webhookId", m.WebhookID)
}

type PaymentStatusQuery struct {
	OrderID string
}

func (PaymentStatusQuery) Type() string { return TypePaymentStatusQuery }

func (m PaymentStatusQuery) Validate() error {
	return requireID("orderId", m.OrderID)
}

type ListDeliveriesQuery struct {
	WebhookID string
	Limit     int
}

func (ListDeliveriesQuery) Type() string { return TypeListDeliveriesQuery }

func (m ListDeliveriesQuery) Validate() error {
	if err := requireID("webhookId", m.WebhookID); err != nil {
		return err
	}
	return validateLimit(m.Limit)
}

func requireID(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return commandValidationError(field, field+" is required")
	}
	return nil
}

func validateLimit(limit int) error {
	if limit < 0 {
		return commandValidationError("limit", "limit must not be negative")
	}
	return nil
}
