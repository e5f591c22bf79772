package sqlstore

import "github.com/goliatone/go-checkout/core"

var (
	_ core.OrderStore             = (*OrderStore)(nil)
	_ core.EventLedger            = (*OrderEventStore)(nil)
	_ core.EventReader            = (*OrderEventStore)(nil)
	_ core.ProductStore           = (*ProductStore)(nil)
	_ core.SubscriptionStore      = (*SubscriptionStore)(nil)
	_ core.SubscriptionStore      = (*CachedSubscriptionStore)(nil)
	_ core.DeliveryStore          = (*DeliveryStore)(nil)
	_ core.GatewayCredentialStore = (*GatewayCredentialStore)(nil)
	_ core.SessionStore           = (*SessionStore)(nil)
)
