package core

import "strings"

type transitionKey struct {
	event string
	from  OrderStatus
}

var orderTransitions = map[transitionKey]OrderStatus{
	{EventPixCreated, OrderStatusPending}:        OrderStatusPending,
	{EventPixPaid, OrderStatusPending}:           OrderStatusPaid,
	{EventPixExpired, OrderStatusPending}:        OrderStatusExpired,
	{EventPixCanceled, OrderStatusPending}:       OrderStatusCanceled,
	{EventRefund, OrderStatusPaid}:               OrderStatusRefunded,
	{EventChargeback, OrderStatusPaid}:           OrderStatusChargedback,
	{EventCheckoutAbandoned, OrderStatusPending}: OrderStatusAbandoned,
}

// NextStatus returns the status an order moves to when eventType is applied
// to current. The second result is false when no edge exists; callers must
// leave the order untouched in that case.
func NextStatus(eventType string, current OrderStatus) (OrderStatus, bool) {
	next, ok := orderTransitions[transitionKey{
		event: strings.TrimSpace(eventType),
		from:  current,
	}]
	return next, ok
}

// IsTerminal reports whether status can no longer change through a payment
// event. PAID stays reachable for refund and chargeback.
func IsTerminal(status OrderStatus) bool {
	switch status {
	case OrderStatusExpired, OrderStatusCanceled, OrderStatusAbandoned,
		OrderStatusRefunded, OrderStatusChargedback:
		return true
	default:
		return false
	}
}

// OutboundEventForStatus names the vendor-facing event fired when an order
// enters status.
func OutboundEventForStatus(status OrderStatus) (string, bool) {
	switch status {
	case OrderStatusPaid:
		return OutboundPurchaseApproved, true
	case OrderStatusRefunded:
		return OutboundRefund, true
	case OrderStatusChargedback:
		return OutboundChargeback, true
	case OrderStatusCanceled:
		return OutboundPurchaseRefused, true
	case OrderStatusAbandoned:
		return OutboundCheckoutAbandoned, true
	default:
		return "", false
	}
}
