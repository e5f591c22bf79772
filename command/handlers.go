package command

import (
	"context"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/orders"
	"github.com/goliatone/go-checkout/webhooks"
	gocmd "github.com/goliatone/go-command"
)

type WebhookProcessor interface {
	Handle(ctx context.Context, req webhooks.InboundRequest) (webhooks.InboundResult, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (orders.CreateOrderResult, error)
	CreatePixCharge(ctx context.Context, orderID string) (orders.PixCharge, error)
	GetPaymentStatus(ctx context.Context, orderID string) (orders.PaymentStatus, error)
	Heartbeat(ctx context.Context, sessionID string) (bool, error)
	SweepAbandoned(ctx context.Context, limit int) (orders.AbandonStats, error)
}

type DeliveryService interface {
	SendTest(ctx context.Context, webhookID string, eventName string) (core.Delivery, error)
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]core.Delivery, error)
}

type RetrySweeper interface {
	Sweep(ctx context.Context, limit int) (core.DispatchStats, error)
}

// HeartbeatResult reports whether the session is still open.
type HeartbeatResult struct {
	Active bool `json:"active"`
}

type ProcessGatewayWebhookCommand struct {
	processor WebhookProcessor
}

func NewProcessGatewayWebhookCommand(processor WebhookProcessor) *ProcessGatewayWebhookCommand {
	return &ProcessGatewayWebhookCommand{processor: processor}
}

// Execute stores the receiver result even when it carries an error, so
// callers can still answer with its status code.
func (c *ProcessGatewayWebhookCommand) Execute(ctx context.Context, msg ProcessGatewayWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: webhook receiver is required")
	}
	out, err := c.processor.Handle(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type CreateOrderCommand struct {
	service OrderService
}

func NewCreateOrderCommand(service OrderService) *CreateOrderCommand {
	return &CreateOrderCommand{service: service}
}

func (c *CreateOrderCommand) Execute(ctx context.Context, msg CreateOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	out, err := c.service.CreateOrder(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreatePixChargeCommand struct {
	service OrderService
}

func NewCreatePixChargeCommand(service OrderService) *CreatePixChargeCommand {
	return &CreatePixChargeCommand{service: service}
}

func (c *CreatePixChargeCommand) Execute(ctx context.Context, msg CreatePixChargeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	out, err := c.service.CreatePixCharge(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type HeartbeatCommand struct {
	service OrderService
}

func NewHeartbeatCommand(service OrderService) *HeartbeatCommand {
	return &HeartbeatCommand{service: service}
}

func (c *HeartbeatCommand) Execute(ctx context.Context, msg HeartbeatMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	active, err := c.service.Heartbeat(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	storeResult(ctx, HeartbeatResult{Active: active})
	return nil
}

type SweepRetriesCommand struct {
	sweeper RetrySweeper
}

func NewSweepRetriesCommand(sweeper RetrySweeper) *SweepRetriesCommand {
	return &SweepRetriesCommand{sweeper: sweeper}
}

func (c *SweepRetriesCommand) Execute(ctx context.Context, msg SweepRetriesMessage) error {
	if c == nil || c.sweeper == nil {
		return commandDependencyError("command: retry sweeper is required")
	}
	out, err := c.sweeper.Sweep(ctx, msg.Limit)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SweepAbandonedCommand struct {
	service OrderService
}

func NewSweepAbandonedCommand(service OrderService) *SweepAbandonedCommand {
	return &SweepAbandonedCommand{service: service}
}

func (c *SweepAbandonedCommand) Execute(ctx context.Context, msg SweepAbandonedMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.SweepAbandoned(ctx, msg.Limit)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendTestWebhookCommand struct {
	service DeliveryService
}

func NewSendTestWebhookCommand(service DeliveryService) *SendTestWebhookCommand {
	return &SendTestWebhookCommand{service: service}
}

func (c *SendTestWebhookCommand) Execute(ctx context.Context, msg SendTestWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	out, err := c.service.SendTest(ctx, msg.WebhookID, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PaymentStatusQueryHandler struct {
	service OrderService
}

func NewPaymentStatusQueryHandler(service OrderService) *PaymentStatusQueryHandler {
	return &PaymentStatusQueryHandler{service: service}
}

func (q *PaymentStatusQueryHandler) Query(ctx context.Context, msg PaymentStatusQuery) (orders.PaymentStatus, error) {
	if q == nil || q.service == nil {
		return orders.PaymentStatus{}, commandDependencyError("command: order service is required")
	}
	return q.service.GetPaymentStatus(ctx, msg.OrderID)
}

type ListDeliveriesQueryHandler struct {
	service DeliveryService
}

func NewListDeliveriesQueryHandler(service DeliveryService) *ListDeliveriesQueryHandler {
	return &ListDeliveriesQueryHandler{service: service}
}

func (q *ListDeliveriesQueryHandler) Query(ctx context.Context, msg ListDeliveriesQuery) ([]core.Delivery, error) {
	if q == nil || q.service == nil {
		return nil, commandDependencyError("command: delivery service is required")
	}
	return q.service.ListDeliveries(ctx, msg.WebhookID, msg.Limit)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
