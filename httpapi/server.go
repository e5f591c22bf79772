package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/command"
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/locks"
	"github.com/goliatone/go-checkout/orders"
	"github.com/goliatone/go-checkout/webhooks"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const defaultBodyLimit = 1 << 20

// Services are the operations the HTTP surface fronts.
type Services struct {
	Receiver   command.WebhookProcessor
	Orders     command.OrderService
	Deliveries command.DeliveryService
	Retries    command.RetrySweeper
}

type Config struct {
	CronSecret string
	BodyLimit  int
	// LockTTL bounds how long a triggered sweep may hold its lock.
	LockTTL time.Duration
}

func ConfigFromCore(cfg core.Config) Config {
	return Config{
		CronSecret: cfg.Cron.Secret,
		BodyLimit:  cfg.HTTP.BodyLimit,
		LockTTL:    cfg.SweepLockTTL(),
	}
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocker serializes triggered sweeps with the scheduled ones.
func WithLocker(locker locks.Locker) Option {
	return func(s *Server) {
		s.locker = locker
	}
}

type Server struct {
	services Services
	cfg      Config
	logger   core.Logger
	locker   locks.Locker
	validate *validator.Validate
	app      *fiber.App
}

func NewServer(services Services, cfg Config, opts ...Option) (*Server, error) {
	if services.Receiver == nil {
		return nil, fmt.Errorf("httpapi: webhook receiver is required")
	}
	if services.Orders == nil {
		return nil, fmt.Errorf("httpapi: order service is required")
	}
	if services.Deliveries == nil || services.Retries == nil {
		return nil, fmt.Errorf("httpapi: delivery services are required")
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = defaultBodyLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	s := &Server{
		services: services,
		cfg:      cfg,
		validate: validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "go-checkout",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(s.logger),
	})
	s.routes()
	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Post("/webhooks/gateway", s.handleGatewayWebhook)
	s.app.Post("/webhooks/:id/test", s.handleSendTest)
	s.app.Get("/webhooks/:id/deliveries", s.handleListDeliveries)

	s.app.Post("/orders", s.handleCreateOrder)
	s.app.Post("/orders/:id/pix", s.handleCreatePix)
	s.app.Get("/orders/:id/status", s.handlePaymentStatus)
	s.app.Post("/checkout/sessions/:id/heartbeat", s.handleHeartbeat)

	internal := s.app.Group("/internal", s.requireCronSecret)
	internal.Post("/webhooks/retry", s.handleRetrySweep)
	internal.Post("/checkouts/abandoned", s.handleAbandonSweep)
}

func (s *Server) handleGatewayWebhook(c *fiber.Ctx) error {
	headers := map[string]string{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})
	body := append([]byte(nil), c.Body()...)

	result, err := s.services.Receiver.Handle(c.UserContext(), webhooks.InboundRequest{
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		mapped := core.MapError(err)
		status := result.StatusCode
		if status == 0 {
			status = mapped.Code
		}
		return writeError(c, status, mapped)
	}
	return c.Status(result.StatusCode).JSON(fiber.Map{"message": result.Message})
}

type createOrderRequest struct {
	VendorID      string `json:"vendorId" validate:"required"`
	ProductID     string `json:"productId" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
	CustomerName  string `json:"customerName" validate:"max=200"`
	Amount        int64  `json:"amount" validate:"required,min=50"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
}

func (s *Server) handleCreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	out, err := s.services.Orders.CreateOrder(c.UserContext(), orders.CreateOrderInput{
		VendorID:      req.VendorID,
		ProductID:     req.ProductID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		AmountCents:   req.Amount,
		Currency:      req.Currency,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"orderId":   out.Order.ID,
		"sessionId": out.Session.ID,
		"status":    out.Order.Status,
		"amount":    out.Order.AmountCents,
		"currency":  out.Order.Currency,
	})
}

func (s *Server) handleCreatePix(c *fiber.Ctx) error {
	out, err := s.services.Orders.CreatePixCharge(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(out)
}

func (s *Server) handlePaymentStatus(c *fiber.Ctx) error {
	out, err := s.services.Orders.GetPaymentStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) handleHeartbeat(c *fiber.Ctx) error {
	active, err := s.services.Orders.Heartbeat(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(command.HeartbeatResult{Active: active})
}

type sendTestRequest struct {
	Event string `json:"event" validate:"omitempty,max=64"`
}

func (s *Server) handleSendTest(c *fiber.Ctx) error {
	var req sendTestRequest
	if len(c.Body()) > 0 {
		if err := s.bind(c, &req); err != nil {
			return err
		}
	}
	out, err := s.services.Deliveries.SendTest(c.UserContext(), c.Params("id"), req.Event)
	if err != nil {
		return err
	}
	return c.JSON(deliveryView(out))
}

func (s *Server) handleListDeliveries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", core.DefaultDeliveryListLimit)
	out, err := s.services.Deliveries.ListDeliveries(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	views := make([]deliveryResponse, 0, len(out))
	for _, delivery := range out {
		views = append(views, deliveryView(delivery))
	}
	return c.JSON(fiber.Map{"deliveries": views})
}

func (s *Server) handleRetrySweep(c *fiber.Ctx) error {
	var stats core.DispatchStats
	ran, err := s.withSweepLock(c.UserContext(), locks.KeyRetrySweep, func(ctx context.Context) error {
		var err error
		stats, err = s.services.Retries.Sweep(ctx, c.QueryInt("limit", 0))
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ran": ran, "stats": stats})
}

func (s *Server) handleAbandonSweep(c *fiber.Ctx) error {
	var stats orders.AbandonStats
	ran, err := s.withSweepLock(c.UserContext(), locks.KeyAbandonSweep, func(ctx context.Context) error {
		var err error
		stats, err = s.services.Orders.SweepAbandoned(ctx, c.QueryInt("limit", 0))
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ran": ran, "stats": stats})
}

func (s *Server) withSweepLock(ctx context.Context, key string, fn func(context.Context) error) (bool, error) {
	if s.locker == nil {
		return true, fn(ctx)
	}
	return locks.WithLock(ctx, s.locker, key, s.cfg.LockTTL, fn)
}

func (s *Server) requireCronSecret(c *fiber.Ctx) error {
	secret := strings.TrimSpace(s.cfg.CronSecret)
	if secret == "" {
		return core.NewError("cron secret is not configured", goerrors.CategoryAuthz, core.ErrorForbidden, nil)
	}
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) != 1 {
		return core.NewError("invalid cron credentials", goerrors.CategoryAuth, core.ErrorUnauthorized, nil)
	}
	return c.Next()
}

func (s *Server) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return core.MalformedPayloadError(err, "request body is not valid JSON")
	}
	if err := s.validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return core.ValidationError("body", err.Error())
		}
		fields := make([]goerrors.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, goerrors.FieldError{
				Field:   jsonFieldName(fe.Field()),
				Message: fmt.Sprintf("failed %s validation", fe.Tag()),
			})
		}
		return goerrors.NewValidation("validation failed", fields...).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	return nil
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

type deliveryResponse struct {
	ID             string     `json:"id"`
	WebhookID      string     `json:"webhookId"`
	OrderID        string     `json:"orderId,omitempty"`
	Event          string     `json:"event"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	ResponseStatus int        `json:"responseStatus,omitempty"`
	ResponseBody   string     `json:"responseBody,omitempty"`
	Error          string     `json:"error,omitempty"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func deliveryView(d core.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:             d.ID,
		WebhookID:      d.WebhookID,
		OrderID:        d.OrderID,
		Event:          d.EventType,
		Status:         string(d.Status),
		Attempts:       d.Attempts,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		Error:          d.ErrorMessage,
		LastAttemptAt:  d.LastAttemptAt,
		NextRetryAt:    d.NextRetryAt,
		CreatedAt:      d.CreatedAt,
	}
}
