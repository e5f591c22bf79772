package command

import (
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/orders"
	"github.com/goliatone/go-checkout/outbound"
	"github.com/goliatone/go-checkout/webhooks"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[ProcessGatewayWebhookMessage] = (*ProcessGatewayWebhookCommand)(nil)
	_ gocmd.Commander[CreateOrderMessage]           = (*CreateOrderCommand)(nil)
	_ gocmd.Commander[CreatePixChargeMessage]       = (*CreatePixChargeCommand)(nil)
	_ gocmd.Commander[HeartbeatMessage]             = (*HeartbeatCommand)(nil)
	_ gocmd.Commander[SweepRetriesMessage]          = (*SweepRetriesCommand)(nil)
	_ gocmd.Commander[SweepAbandonedMessage]        = (*SweepAbandonedCommand)(nil)
	_ gocmd.Commander[SendTestWebhookMessage]       = (*SendTestWebhookCommand)(nil)

	_ gocmd.Querier[PaymentStatusQuery, orders.PaymentStatus] = (*PaymentStatusQueryHandler)(nil)
	_ gocmd.Querier[ListDeliveriesQuery, []core.Delivery]     = (*ListDeliveriesQueryHandler)(nil)

	_ WebhookProcessor = (*webhooks.Receiver)(nil)
	_ OrderService     = (*orders.Service)(nil)
	_ DeliveryService  = (*outbound.Dispatcher)(nil)
	_ RetrySweeper     = (*outbound.Sweeper)(nil)
)
