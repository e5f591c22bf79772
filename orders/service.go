package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway/pushinpay"
	goerrors "github.com/goliatone/go-errors"
)

// ChargeGateway is the slice of the PIX API the service needs.
type ChargeGateway interface {
	CreateCharge(ctx context.Context, req pushinpay.CreateChargeRequest) (pushinpay.Charge, error)
	GetCharge(ctx context.Context, token string, environment string, chargeID string) (pushinpay.Charge, error)
}

type Dependencies struct {
	Orders      core.OrderStore
	Products    core.ProductStore
	Sessions    core.SessionStore
	Credentials core.GatewayCredentialStore
	Ledger      core.EventLedger
	Secrets     core.SecretProvider
	Gateway     ChargeGateway
	Notifier    core.Notifier
}

func (d Dependencies) validate() error {
	switch {
	case d.Orders == nil:
		return fmt.Errorf("orders: order store is required")
	case d.Products == nil:
		return fmt.Errorf("orders: product store is required")
	case d.Sessions == nil:
		return fmt.Errorf("orders: session store is required")
	case d.Credentials == nil:
		return fmt.Errorf("orders: gateway credential store is required")
	case d.Ledger == nil:
		return fmt.Errorf("orders: event ledger is required")
	case d.Secrets == nil:
		return fmt.Errorf("orders: secret provider is required")
	case d.Gateway == nil:
		return fmt.Errorf("orders: charge gateway is required")
	}
	return nil
}

type Config struct {
	Environment        string
	WebhookURL         string
	PlatformFeePercent float64
	PlatformAccountID  string
	AbandonThreshold   time.Duration
}

func ConfigFromCore(cfg core.Config) Config {
	return Config{
		Environment:        cfg.Gateway.Environment,
		WebhookURL:         cfg.Gateway.WebhookURL,
		PlatformFeePercent: cfg.Gateway.PlatformFeePercent,
		PlatformAccountID:  cfg.Gateway.PlatformAccountID,
		AbandonThreshold:   cfg.Abandon.Threshold,
	}
}

type Option func(*Service)

func WithLogger(logger core.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	deps     Dependencies
	config   Config
	logger   core.Logger
	metrics  core.MetricsRecorder
	now      func() time.Time
	observer core.Observer
}

func NewService(deps Dependencies, cfg Config, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Notifier == nil {
		deps.Notifier = core.NopNotifier{}
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = core.GatewayEnvironmentSandbox
	}
	if cfg.AbandonThreshold <= 0 {
		cfg.AbandonThreshold = DefaultAbandonThreshold
	}
	s := &Service{
		deps:    deps,
		config:  cfg,
		metrics: core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.observer = core.NewObserver("orders", s.logger, s.metrics)
	return s, nil
}

type CreateOrderInput struct {
	VendorID      string
	ProductID     string
	CustomerEmail string
	CustomerName  string
	AmountCents   int64
	Currency      string
}

type CreateOrderResult struct {
	Order   core.Order
	Session core.CheckoutSession
}

// CreateOrder opens a PENDING order for an active product of the vendor and
// starts its checkout session.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	startedAt := time.Now()
	in = normalizeInput(in)
	if err := validateInput(in); err != nil {
		return CreateOrderResult{}, err
	}

	product, err := s.deps.Products.Get(ctx, in.ProductID)
	if err != nil {
		if core.IsNotFound(err) {
			return CreateOrderResult{}, core.ForbiddenError("product is not available for this vendor", map[string]any{
				"product_id": in.ProductID,
			})
		}
		return CreateOrderResult{}, err
	}
	if product.VendorID != in.VendorID || !product.Active {
		return CreateOrderResult{}, core.ForbiddenError("product is not available for this vendor", map[string]any{
			"product_id": in.ProductID,
		})
	}

	order, err := s.deps.Orders.Create(ctx, core.Order{
		VendorID:      in.VendorID,
		ProductID:     in.ProductID,
		CustomerEmail: in.CustomerEmail,
		CustomerName:  in.CustomerName,
		AmountCents:   in.AmountCents,
		Currency:      in.Currency,
		PaymentMethod: core.PaymentMethodPix,
		Gateway:       core.GatewayPushinPay,
		Status:        core.OrderStatusPending,
	})
	if err != nil {
		s.observer.Observe(ctx, startedAt, "create_order", err, map[string]any{"vendor_id": in.VendorID})
		return CreateOrderResult{}, err
	}
	session, err := s.deps.Sessions.Create(ctx, core.CheckoutSession{
		OrderID:    order.ID,
		VendorID:   order.VendorID,
		Status:     core.SessionStatusActive,
		LastSeenAt: s.now(),
	})
	s.observer.Observe(ctx, startedAt, "create_order", err, map[string]any{
		"vendor_id": order.VendorID,
		"order_id":  order.ID,
	})
	if err != nil {
		return CreateOrderResult{}, err
	}
	return CreateOrderResult{Order: order, Session: session}, nil
}

type PixCharge struct {
	OrderID      string `json:"orderId"`
	PixID        string `json:"pixId"`
	QRCode       string `json:"qrCode"`
	QRCodeBase64 string `json:"qrCodeBase64"`
	Status       string `json:"status"`
	Value        int64  `json:"value"`
}

// CreatePixCharge asks the gateway for a PIX charge on a PENDING order and
// links the charge id back to the order.
func (s *Service) CreatePixCharge(ctx context.Context, orderID string) (PixCharge, error) {
	startedAt := time.Now()
	fields := map[string]any{"order_id": strings.TrimSpace(orderID)}
	order, err := s.deps.Orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return PixCharge{}, err
	}
	if order.Status != core.OrderStatusPending {
		return PixCharge{}, core.NewError("order is not pending", goerrors.CategoryConflict, core.ErrorConflict, map[string]any{
			"order_id": order.ID,
			"status":   string(order.Status),
		})
	}

	token, environment, err := s.gatewayAccess(ctx, order.VendorID)
	if err != nil {
		return PixCharge{}, err
	}
	split, err := pushinpay.ComputeSplit(order.AmountCents, s.config.PlatformFeePercent, s.config.PlatformAccountID)
	if err != nil {
		return PixCharge{}, err
	}
	charge, err := s.deps.Gateway.CreateCharge(ctx, pushinpay.CreateChargeRequest{
		Token:       token,
		Environment: environment,
		ValueCents:  order.AmountCents,
		WebhookURL:  s.config.WebhookURL,
		SplitRules:  split,
	})
	if err != nil {
		s.observer.Observe(ctx, startedAt, "create_pix_charge", err, fields)
		return PixCharge{}, err
	}
	fields["pix_id"] = charge.ID

	if err := s.deps.Orders.AttachCharge(ctx, order.ID, charge.ID); err != nil {
		s.observer.Observe(ctx, startedAt, "create_pix_charge", err, fields)
		return PixCharge{}, err
	}
	order.GatewayPaymentID = charge.ID

	payload, _ := json.Marshal(map[string]any{
		"id":     charge.ID,
		"status": charge.Status,
		"value":  charge.Value,
	})
	if _, err := s.deps.Ledger.RecordIfNew(ctx, core.GatewayEventInput{
		GatewayEventID: charge.ID + ":created",
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		Type:           core.EventPixCreated,
		Payload:        payload,
		OccurredAt:     s.now(),
	}); err != nil {
		s.observer.Warn(ctx, "pix creation not recorded in ledger", withError(fields, err))
	}

	s.deps.Notifier.Notify(ctx, core.OrderEvent{
		Order:      order,
		EventName:  core.OutboundPixGenerated,
		OccurredAt: s.now(),
		Data: map[string]any{
			"pixId":  charge.ID,
			"qrCode": charge.QRCode,
		},
	})
	s.observer.Observe(ctx, startedAt, "create_pix_charge", nil, fields)

	return PixCharge{
		OrderID:      order.ID,
		PixID:        charge.ID,
		QRCode:       charge.QRCode,
		QRCodeBase64: charge.QRCodeBase64,
		Status:       charge.Status,
		Value:        charge.Value,
	}, nil
}

type PaymentStatus struct {
	OrderID       string           `json:"orderId"`
	PixID         string           `json:"pixId,omitempty"`
	GatewayStatus string           `json:"gatewayStatus,omitempty"`
	OrderStatus   core.OrderStatus `json:"status"`
}

// GetPaymentStatus polls the gateway for the order's charge. A paid charge
// goes through the same ledger entry a webhook would produce, so polling
// and webhooks converge on one transition.
func (s *Service) GetPaymentStatus(ctx context.Context, orderID string) (PaymentStatus, error) {
	order, err := s.deps.Orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return PaymentStatus{}, err
	}
	status := PaymentStatus{
		OrderID:     order.ID,
		PixID:       order.GatewayPaymentID,
		OrderStatus: order.Status,
	}
	if order.GatewayPaymentID == "" {
		return status, nil
	}

	token, environment, err := s.gatewayAccess(ctx, order.VendorID)
	if err != nil {
		return PaymentStatus{}, err
	}
	charge, err := s.deps.Gateway.GetCharge(ctx, token, environment, order.GatewayPaymentID)
	if err != nil {
		return PaymentStatus{}, err
	}
	status.GatewayStatus = strings.ToLower(strings.TrimSpace(charge.Status))
	if !isPaidStatus(status.GatewayStatus) || order.Status != core.OrderStatusPending {
		return status, nil
	}

	payload, _ := json.Marshal(map[string]any{
		"id":     order.GatewayPaymentID,
		"status": "paid",
		"value":  charge.Value,
		"source": "poll",
	})
	next, err := s.applyEvent(ctx, order, core.GatewayEventInput{
		GatewayEventID: order.GatewayPaymentID + ":paid",
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		Type:           core.EventPixPaid,
		Payload:        payload,
		OccurredAt:     s.now(),
	}, map[string]any{"gateway_status": status.GatewayStatus, "source": "poll"})
	if err != nil {
		return PaymentStatus{}, err
	}
	status.OrderStatus = next
	return status, nil
}

// applyEvent records input in the ledger and applies its transition. It
// returns the order status after the call. Notifications fire only for the
// call whose update changed the order.
func (s *Service) applyEvent(ctx context.Context, order core.Order, input core.GatewayEventInput, data map[string]any) (core.OrderStatus, error) {
	inserted, err := s.deps.Ledger.RecordIfNew(ctx, input)
	if err != nil {
		return order.Status, err
	}
	if !inserted {
		// The event is known, but an earlier status update may have failed
		// after the ledger write. Re-apply against the stored status; the
		// conditional update keeps this a no-op once the transition landed.
		current, err := s.deps.Orders.Get(ctx, order.ID)
		if err != nil {
			return order.Status, err
		}
		order = current
	}
	next, ok := core.NextStatus(input.Type, order.Status)
	if !ok || next == order.Status {
		return order.Status, nil
	}
	at := s.now()
	changed, err := s.deps.Orders.UpdateStatus(ctx, order.ID, order.Status, next, at)
	if err != nil {
		return order.Status, err
	}
	if !changed {
		current, err := s.deps.Orders.Get(ctx, order.ID)
		if err != nil {
			return order.Status, err
		}
		return current.Status, nil
	}
	order.Status = next
	order.UpdatedAt = at
	if next == core.OrderStatusPaid {
		order.PaidAt = &at
	}
	if eventName, ok := core.OutboundEventForStatus(next); ok {
		s.deps.Notifier.Notify(ctx, core.OrderEvent{
			Order:      order,
			EventName:  eventName,
			OccurredAt: input.OccurredAt,
			Data:       data,
		})
	}
	return next, nil
}

func (s *Service) gatewayAccess(ctx context.Context, vendorID string) (string, string, error) {
	credential, err := s.deps.Credentials.Get(ctx, vendorID)
	if err != nil {
		if core.IsNotFound(err) {
			return "", "", core.NewError("payment gateway is not configured for vendor", goerrors.CategoryOperation, core.ErrorOperationRejected, map[string]any{
				"vendor_id": vendorID,
			})
		}
		return "", "", err
	}
	token, err := s.deps.Secrets.Decrypt(ctx, credential.EncryptedToken)
	if err != nil {
		return "", "", core.InternalError(err, "decrypt gateway token")
	}
	environment := strings.TrimSpace(credential.Environment)
	if environment == "" {
		environment = s.config.Environment
	}
	return string(token), environment, nil
}

func normalizeInput(in CreateOrderInput) CreateOrderInput {
	in.VendorID = strings.TrimSpace(in.VendorID)
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.CustomerEmail = strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = core.DefaultCurrency
	}
	return in
}

func validateInput(in CreateOrderInput) error {
	switch {
	case in.VendorID == "":
		return core.ValidationError("vendor_id", "vendor id is required")
	case in.ProductID == "":
		return core.ValidationError("product_id", "product id is required")
	case in.CustomerName == "":
		return core.ValidationError("customer_name", "customer name is required")
	case in.CustomerEmail == "":
		return core.ValidationError("customer_email", "customer email is required")
	case in.AmountCents < core.MinOrderAmountCents:
		return core.ValidationError("amount_cents", fmt.Sprintf("amount must be at least %d cents", core.MinOrderAmountCents))
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return core.ValidationError("customer_email", "customer email is invalid")
	}
	if in.Currency != core.DefaultCurrency {
		return core.ValidationError("currency", "only BRL is supported")
	}
	return nil
}

func isPaidStatus(status string) bool {
	return status == "paid" || status == "approved"
}

func withError(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		out[key] = value
	}
	out["error"] = err.Error()
	return out
}
