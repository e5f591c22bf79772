package command

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/orders"
	"github.com/goliatone/go-checkout/webhooks"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

func TestCreateOrderCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(_ context.Context, in orders.CreateOrderInput) (orders.CreateOrderResult, error) {
			if in.VendorID != "vendor_1" || in.AmountCents != 1999 {
				t.Fatalf("unexpected input: %#v", in)
			}
			return orders.CreateOrderResult{
				Order:   core.Order{ID: "order_1", Status: core.OrderStatusPending},
				Session: core.CheckoutSession{ID: "session_1"},
			}, nil
		},
	}

	collector := gocmd.NewResult[orders.CreateOrderResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCreateOrderCommand(svc).Execute(ctx, CreateOrderMessage{Input: orders.CreateOrderInput{
		VendorID:    "vendor_1",
		ProductID:   "product_1",
		AmountCents: 1999,
	}})
	if err != nil {
		t.Fatalf("execute create order: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Order.ID != "order_1" || result.Session.ID != "session_1" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestProcessGatewayWebhookCommand_StoresResultOnError(t *testing.T) {
	processor := webhookProcessorFunc(func(context.Context, webhooks.InboundRequest) (webhooks.InboundResult, error) {
		return webhooks.InboundResult{StatusCode: http.StatusUnauthorized, Message: "invalid signature"},
			core.SignatureError("signature mismatch")
	})

	collector := gocmd.NewResult[webhooks.InboundResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewProcessGatewayWebhookCommand(processor).Execute(ctx, ProcessGatewayWebhookMessage{
		Request: webhooks.InboundRequest{Body: []byte(`{}`)},
	})
	if err == nil {
		t.Fatalf("expected signature error")
	}
	result, ok := collector.Load()
	if !ok || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected stored 401 result, got %#v", result)
	}
}

func TestHeartbeatCommand_StoresActiveFlag(t *testing.T) {
	svc := &stubOrderService{
		heartbeatFn: func(_ context.Context, sessionID string) (bool, error) {
			return sessionID == "session_1", nil
		},
	}
	collector := gocmd.NewResult[HeartbeatResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewHeartbeatCommand(svc).Execute(ctx, HeartbeatMessage{SessionID: "session_1"}); err != nil {
		t.Fatalf("execute heartbeat: %v", err)
	}
	result, _ := collector.Load()
	if !result.Active {
		t.Fatalf("expected active session")
	}
}

func TestSweepCommands_DelegateAndPropagateErrors(t *testing.T) {
	t.Run("retries", func(t *testing.T) {
		sweeper := retrySweeperFunc(func(_ context.Context, limit int) (core.DispatchStats, error) {
			if limit != 25 {
				t.Fatalf("expected limit 25, got %d", limit)
			}
			return core.DispatchStats{Matched: 3, Delivered: 2, Retried: 1}, nil
		})
		collector := gocmd.NewResult[core.DispatchStats]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewSweepRetriesCommand(sweeper).Execute(ctx, SweepRetriesMessage{Limit: 25}); err != nil {
			t.Fatalf("execute sweep: %v", err)
		}
		stats, _ := collector.Load()
		if stats.Delivered != 2 || stats.Retried != 1 {
			t.Fatalf("unexpected stats: %#v", stats)
		}
	})

	t.Run("abandoned", func(t *testing.T) {
		expected := errors.New("store offline")
		svc := &stubOrderService{
			sweepFn: func(context.Context, int) (orders.AbandonStats, error) {
				return orders.AbandonStats{}, expected
			},
		}
		err := NewSweepAbandonedCommand(svc).Execute(context.Background(), SweepAbandonedMessage{})
		if !errors.Is(err, expected) {
			t.Fatalf("expected service error, got %v", err)
		}
	})
}

func TestQueries_Delegate(t *testing.T) {
	svc := &stubOrderService{
		statusFn: func(_ context.Context, orderID string) (orders.PaymentStatus, error) {
			return orders.PaymentStatus{OrderID: orderID, OrderStatus: core.OrderStatusPaid}, nil
		},
	}
	status, err := NewPaymentStatusQueryHandler(svc).Query(context.Background(), PaymentStatusQuery{OrderID: "order_1"})
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status.OrderStatus != core.OrderStatusPaid {
		t.Fatalf("unexpected status %q", status.OrderStatus)
	}

	deliveries := &stubDeliveryService{
		listFn: func(_ context.Context, webhookID string, limit int) ([]core.Delivery, error) {
			return []core.Delivery{{ID: "d1", WebhookID: webhookID}}, nil
		},
	}
	out, err := NewListDeliveriesQueryHandler(deliveries).Query(context.Background(), ListDeliveriesQuery{WebhookID: "wh_1"})
	if err != nil {
		t.Fatalf("query deliveries: %v", err)
	}
	if len(out) != 1 || out[0].WebhookID != "wh_1" {
		t.Fatalf("unexpected deliveries: %#v", out)
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := []interface{ Validate() error }{
		CreateOrderMessage{},
		CreatePixChargeMessage{},
		HeartbeatMessage{SessionID: " "},
		SweepRetriesMessage{Limit: -1},
		ListDeliveriesQuery{WebhookID: "wh_1", Limit: -5},
		ProcessGatewayWebhookMessage{},
	}
	for _, msg := range cases {
		err := msg.Validate()
		if err == nil {
			t.Fatalf("expected validation error for %T", msg)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("expected validation category, got %q", rich.Category)
		}
		if rich.TextCode != core.ErrorBadInput {
			t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
		}
	}
}

func TestNilCommandReturnsRichError(t *testing.T) {
	var cmd *CreatePixChargeCommand
	err := cmd.Execute(context.Background(), CreatePixChargeMessage{OrderID: "order_1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type webhookProcessorFunc func(context.Context, webhooks.InboundRequest) (webhooks.InboundResult, error)

func (f webhookProcessorFunc) Handle(ctx context.Context, req webhooks.InboundRequest) (webhooks.InboundResult, error) {
	return f(ctx, req)
}

type retrySweeperFunc func(context.Context, int) (core.DispatchStats, error)

func (f retrySweeperFunc) Sweep(ctx context.Context, limit int) (core.DispatchStats, error) {
	return f(ctx, limit)
}

type stubOrderService struct {
	createFn    func(context.Context, orders.CreateOrderInput) (orders.CreateOrderResult, error)
	chargeFn    func(context.Context, string) (orders.PixCharge, error)
	statusFn    func(context.Context, string) (orders.PaymentStatus, error)
	heartbeatFn func(context.Context, string) (bool, error)
	sweepFn     func(context.Context, int) (orders.AbandonStats, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, in orders.CreateOrderInput) (orders.CreateOrderResult, error) {
	if s.createFn == nil {
		return orders.CreateOrderResult{}, nil
	}
	return s.createFn(ctx, in)
}

func (s *stubOrderService) CreatePixCharge(ctx context.Context, orderID string) (orders.PixCharge, error) {
	if s.chargeFn == nil {
		return orders.PixCharge{OrderID: orderID}, nil
	}
	return s.chargeFn(ctx, orderID)
}

func (s *stubOrderService) GetPaymentStatus(ctx context.Context, orderID string) (orders.PaymentStatus, error) {
	if s.statusFn == nil {
		return orders.PaymentStatus{OrderID: orderID}, nil
	}
	return s.statusFn(ctx, orderID)
}

func (s *stubOrderService) Heartbeat(ctx context.Context, sessionID string) (bool, error) {
	if s.heartbeatFn == nil {
		return true, nil
	}
	return s.heartbeatFn(ctx, sessionID)
}

func (s *stubOrderService) SweepAbandoned(ctx context.Context, limit int) (orders.AbandonStats, error) {
	if s.sweepFn == nil {
		return orders.AbandonStats{}, nil
	}
	return s.sweepFn(ctx, limit)
}

type stubDeliveryService struct {
	listFn func(context.Context, string, int) ([]core.Delivery, error)
}

func (s *stubDeliveryService) SendTest(_ context.Context, webhookID string, eventName string) (core.Delivery, error) {
	return core.Delivery{WebhookID: webhookID, EventType: eventName}, nil
}

func (s *stubDeliveryService) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]core.Delivery, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, webhookID, limit)
}
