package core

import "testing"

func TestSubscriptionAccepts(t *testing.T) {
	sub := Subscription{
		Active: true,
		Events: []string{OutboundPurchaseApproved, OutboundRefund},
	}
	if !sub.Accepts(OutboundPurchaseApproved, "prod_1") {
		t.Fatalf("expected empty allowlist to accept every product")
	}
	if sub.Accepts(OutboundChargeback, "prod_1") {
		t.Fatalf("expected unsubscribed event to be rejected")
	}

	sub.ProductIDs = []string{"prod_2"}
	if sub.Accepts(OutboundPurchaseApproved, "prod_1") {
		t.Fatalf("expected allowlist to reject other products")
	}
	if !sub.Accepts(OutboundPurchaseApproved, "prod_2") {
		t.Fatalf("expected allowlisted product to be accepted")
	}

	sub.Active = false
	if sub.Accepts(OutboundPurchaseApproved, "prod_2") {
		t.Fatalf("expected inactive subscription to reject everything")
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := ParseOrderStatus(" paid ")
	if !ok || status != OrderStatusPaid {
		t.Fatalf("expected PAID, got %q ok=%v", status, ok)
	}
	if _, ok := ParseOrderStatus("settled"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestClampDeliveryListLimit(t *testing.T) {
	cases := map[int]int{
		-1:  DefaultDeliveryListLimit,
		0:   DefaultDeliveryListLimit,
		10:  10,
		200: 200,
		500: MaxDeliveryListLimit,
	}
	for input, want := range cases {
		if got := ClampDeliveryListLimit(input); got != want {
			t.Fatalf("limit %d: expected %d, got %d", input, want, got)
		}
	}
}
