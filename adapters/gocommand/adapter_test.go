package gocommand

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type sweepMessage struct {
	Limit int
}

func (sweepMessage) Type() string { return "checkout.command.test.sweep" }

func (m sweepMessage) Validate() error {
	if m.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

type untypedMessage struct{}

func (untypedMessage) Type() string { return "" }

type statusQuery struct {
	OrderID string
}

func (statusQuery) Type() string { return "checkout.query.test.status" }

type mirroredMessage struct{}

func (mirroredMessage) Type() string { return "checkout.command.test.mirrored" }

func TestRegisterAndDispatch(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	var limits []int
	cmd := command.CommandFunc[sweepMessage](func(_ context.Context, msg sweepMessage) error {
		limits = append(limits, msg.Limit)
		return nil
	})

	sub, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), sweepMessage{Limit: 25}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(limits) != 1 || limits[0] != 25 {
		t.Fatalf("expected one sweep with limit 25, got %v", limits)
	}

	if err := Dispatch(context.Background(), sweepMessage{Limit: -1}); err == nil {
		t.Fatalf("expected invalid message to be rejected before dispatch")
	}
	if len(limits) != 1 {
		t.Fatalf("invalid message must not reach the handler")
	}
	if err := Dispatch(context.Background(), untypedMessage{}); err == nil {
		t.Fatalf("expected untyped message to be rejected")
	}
}

func TestRegisterAndQuery(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	qry := command.QueryFunc[statusQuery, string](func(_ context.Context, msg statusQuery) (string, error) {
		return "status:" + msg.OrderID, nil
	})
	sub, err := RegisterAndSubscribeQuery(adapter, qry)
	if err != nil {
		t.Fatalf("register query: %v", err)
	}
	defer sub.Unsubscribe()

	out, err := Query[statusQuery, string](context.Background(), statusQuery{OrderID: "order_1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "status:order_1" {
		t.Fatalf("unexpected query result %q", out)
	}
}

func TestDispatchErrorNamesMessageType(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	boom := errors.New("sweep failed")
	sub, err := RegisterAndSubscribe(adapter, command.CommandFunc[sweepMessage](func(context.Context, sweepMessage) error {
		return boom
	}))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer sub.Unsubscribe()

	err = Dispatch(context.Background(), sweepMessage{})
	if err == nil || !strings.Contains(err.Error(), "checkout.command.test.sweep") {
		t.Fatalf("expected error naming the message type, got %v", err)
	}
}

func TestMirrorToJobQueue(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	if err := adapter.MirrorToJobQueue(nil); err == nil {
		t.Fatalf("expected nil queue registry error")
	}
	if err := adapter.MirrorToJobQueue(queueRegistry); err != nil {
		t.Fatalf("mirror to job queue: %v", err)
	}
	if err := adapter.RegisterCommand(command.CommandFunc[mirroredMessage](func(context.Context, mirroredMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if _, ok := queueRegistry.Get("checkout.command.test.mirrored"); !ok {
		t.Fatalf("expected command to be mirrored into the job queue registry")
	}
}

func TestSubscriptionsUnsubscribeTolerantOfNil(t *testing.T) {
	var subs Subscriptions
	subs.Unsubscribe()
	Subscriptions{nil}.Unsubscribe()
}

func TestNilAdapterFails(t *testing.T) {
	var adapter *RegistryAdapter
	if err := adapter.Initialize(); err == nil {
		t.Fatalf("expected nil adapter error")
	}
	if _, err := RegisterAndSubscribe[sweepMessage](adapter, nil); err == nil {
		t.Fatalf("expected nil adapter register error")
	}
}
