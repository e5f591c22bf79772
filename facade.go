package checkout

import (
	"fmt"

	"github.com/goliatone/go-checkout/adapters/gocommand"
	checkoutcommand "github.com/goliatone/go-checkout/command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

type Commands struct {
	ProcessGatewayWebhook *checkoutcommand.ProcessGatewayWebhookCommand
	CreateOrder           *checkoutcommand.CreateOrderCommand
	CreatePixCharge       *checkoutcommand.CreatePixChargeCommand
	Heartbeat             *checkoutcommand.HeartbeatCommand
	SweepRetries          *checkoutcommand.SweepRetriesCommand
	SweepAbandoned        *checkoutcommand.SweepAbandonedCommand
	SendTestWebhook       *checkoutcommand.SendTestWebhookCommand
}

type Queries struct {
	PaymentStatus  *checkoutcommand.PaymentStatusQueryHandler
	ListDeliveries *checkoutcommand.ListDeliveriesQueryHandler
}

// Facade exposes the runtime as go-command commands and queries.
type Facade struct {
	runtime  *Runtime
	commands Commands
	queries  Queries
}

func NewFacade(runtime *Runtime) (*Facade, error) {
	if runtime == nil || runtime.Orders == nil || runtime.Receiver == nil ||
		runtime.Dispatcher == nil || runtime.Sweeper == nil {
		return nil, fmt.Errorf("checkout: runtime is required")
	}
	return &Facade{
		runtime: runtime,
		commands: Commands{
			ProcessGatewayWebhook: checkoutcommand.NewProcessGatewayWebhookCommand(runtime.Receiver),
			CreateOrder:           checkoutcommand.NewCreateOrderCommand(runtime.Orders),
			CreatePixCharge:       checkoutcommand.NewCreatePixChargeCommand(runtime.Orders),
			Heartbeat:             checkoutcommand.NewHeartbeatCommand(runtime.Orders),
			SweepRetries:          checkoutcommand.NewSweepRetriesCommand(runtime.Sweeper),
			SweepAbandoned:        checkoutcommand.NewSweepAbandonedCommand(runtime.Orders),
			SendTestWebhook:       checkoutcommand.NewSendTestWebhookCommand(runtime.Dispatcher),
		},
		queries: Queries{
			PaymentStatus:  checkoutcommand.NewPaymentStatusQueryHandler(runtime.Orders),
			ListDeliveries: checkoutcommand.NewListDeliveriesQueryHandler(runtime.Dispatcher),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Runtime() *Runtime {
	if f == nil {
		return nil
	}
	return f.runtime
}

// Register subscribes every command and query with the go-command
// dispatcher. On failure the subscriptions made so far are removed.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) (gocommand.Subscriptions, error) {
	if f == nil {
		return nil, fmt.Errorf("checkout: facade is nil")
	}
	var subs gocommand.Subscriptions
	add := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			subs = nil
			return err
		}
		subs = append(subs, sub)
		return nil
	}
	c := f.commands
	q := f.queries
	steps := []func() error{
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.ProcessGatewayWebhook)) },
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.CreateOrder)) },
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.CreatePixCharge)) },
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.Heartbeat)) },
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.SweepRetries)) },
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.SweepAbandoned)) },
		func() error { return add(gocommand.RegisterAndSubscribe(adapter, c.SendTestWebhook)) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery(adapter, q.PaymentStatus)) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery(adapter, q.ListDeliveries)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return subs, nil
}
