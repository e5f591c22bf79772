package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway"
	"github.com/goliatone/go-checkout/notify"
	"github.com/goliatone/go-checkout/orders"
	"github.com/goliatone/go-checkout/outbound"
	sqlstore "github.com/goliatone/go-checkout/store/sql"
	"github.com/goliatone/go-checkout/transport"
	"github.com/goliatone/go-checkout/webhooks"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Stores groups the persistence contracts the runtime needs.
type Stores struct {
	Orders        core.OrderStore
	Ledger        core.EventLedger
	Products      core.ProductStore
	Sessions      core.SessionStore
	Credentials   core.GatewayCredentialStore
	Subscriptions core.SubscriptionStore
	Deliveries    core.DeliveryStore
}

func (s Stores) validate() error {
	switch {
	case s.Orders == nil, s.Ledger == nil, s.Products == nil, s.Sessions == nil:
		return fmt.Errorf("checkout: order, ledger, product and session stores are required")
	case s.Credentials == nil:
		return fmt.Errorf("checkout: gateway credential store is required")
	case s.Subscriptions == nil, s.Deliveries == nil:
		return fmt.Errorf("checkout: subscription and delivery stores are required")
	}
	return nil
}

// StoresFromFactory binds the SQL stores. A non-nil cache puts subscription
// lookups behind go-repository-cache.
func StoresFromFactory(factory *sqlstore.RepositoryFactory, cache repositorycache.CacheService) (Stores, error) {
	if factory == nil {
		return Stores{}, fmt.Errorf("checkout: repository factory is required")
	}
	var subscriptions core.SubscriptionStore = factory.SubscriptionStore()
	if cache != nil {
		cached, err := factory.CachedSubscriptionStore(cache)
		if err != nil {
			return Stores{}, err
		}
		subscriptions = cached
	}
	return Stores{
		Orders:        factory.OrderStore(),
		Ledger:        factory.EventLedger(),
		Products:      factory.ProductStore(),
		Sessions:      factory.SessionStore(),
		Credentials:   factory.GatewayCredentialStore(),
		Subscriptions: subscriptions,
		Deliveries:    factory.DeliveryStore(),
	}, nil
}

type Dependencies struct {
	Stores  Stores
	Secrets core.SecretProvider
	// Adapter verifies and normalizes inbound gateway webhooks.
	Adapter gateway.Adapter
	// Charges creates and polls PIX charges.
	Charges orders.ChargeGateway
	// HTTP carries outbound subscriber and forwarder calls.
	HTTP  *transport.RESTAdapter
	Hooks *ExtensionHooks
}

type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger   core.Logger
	metrics  core.MetricsRecorder
	now      func() time.Time
	notifyOp []notify.Option
}

func WithLogger(logger core.Logger) Option {
	return func(o *runtimeOptions) { o.logger = logger }
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *runtimeOptions) { o.metrics = metrics }
}

func WithClock(now func() time.Time) Option {
	return func(o *runtimeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNotifyOptions tunes the async notification pool.
func WithNotifyOptions(opts ...notify.Option) Option {
	return func(o *runtimeOptions) { o.notifyOp = append(o.notifyOp, opts...) }
}

// Runtime is the composed checkout service.
type Runtime struct {
	Config     Config
	Orders     *orders.Service
	Receiver   *webhooks.Receiver
	Dispatcher *outbound.Dispatcher
	Sweeper    *outbound.Sweeper
	Notifier   *notify.AsyncNotifier
}

func New(cfg Config, deps Dependencies, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.Stores.validate(); err != nil {
		return nil, err
	}
	if deps.Secrets == nil {
		return nil, fmt.Errorf("checkout: secret provider is required")
	}
	if deps.Adapter == nil || deps.Charges == nil {
		return nil, fmt.Errorf("checkout: gateway adapter and charge client are required")
	}
	options := runtimeOptions{
		metrics: core.NopMetricsRecorder{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	httpAdapter := deps.HTTP
	if httpAdapter == nil {
		httpAdapter = transport.NewRESTAdapter(nil)
	}
	hooks := deps.Hooks
	if hooks == nil {
		hooks = DefaultExtensionHooks()
	}

	dispatcher, err := outbound.NewDispatcher(deps.Stores.Subscriptions, deps.Stores.Deliveries, deps.Secrets,
		outbound.WithConfig(outbound.ConfigFromCore(cfg)),
		outbound.WithHTTP(httpAdapter),
		outbound.WithLogger(options.logger),
		outbound.WithMetrics(options.metrics),
		outbound.WithClock(options.now),
	)
	if err != nil {
		return nil, err
	}
	sweeper, err := outbound.NewSweeper(dispatcher)
	if err != nil {
		return nil, err
	}

	extra, err := hooks.Forwarders(cfg, httpAdapter)
	if err != nil {
		return nil, err
	}
	forwarders := append([]notify.Forwarder{dispatcher}, extra...)
	notifier, err := notify.NewAsyncNotifier(forwarders, append([]notify.Option{
		notify.WithLogger(options.logger),
		notify.WithMetrics(options.metrics),
		notify.WithTimeout(cfg.Dispatch.Timeout),
	}, options.notifyOp...)...)
	if err != nil {
		return nil, err
	}

	orderService, err := orders.NewService(orders.Dependencies{
		Orders:      deps.Stores.Orders,
		Products:    deps.Stores.Products,
		Sessions:    deps.Stores.Sessions,
		Credentials: deps.Stores.Credentials,
		Ledger:      deps.Stores.Ledger,
		Secrets:     deps.Secrets,
		Gateway:     deps.Charges,
		Notifier:    notifier,
	}, orders.ConfigFromCore(cfg),
		orders.WithLogger(options.logger),
		orders.WithMetrics(options.metrics),
		orders.WithClock(options.now),
	)
	if err != nil {
		return nil, err
	}

	receiver, err := webhooks.NewReceiver(deps.Adapter, cfg.Webhook.Secret, deps.Stores.Orders, deps.Stores.Ledger,
		webhooks.WithNotifier(notifier),
		webhooks.WithLogger(options.logger),
		webhooks.WithMetrics(options.metrics),
		webhooks.WithAckUnknownOrders(cfg.Webhook.AckUnknownOrders),
		webhooks.WithClock(options.now),
	)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:     cfg,
		Orders:     orderService,
		Receiver:   receiver,
		Dispatcher: dispatcher,
		Sweeper:    sweeper,
		Notifier:   notifier,
	}, nil
}

// Close drains queued notifications.
func (r *Runtime) Close(ctx context.Context) error {
	if r == nil || r.Notifier == nil {
		return nil
	}
	return r.Notifier.Close(ctx)
}
