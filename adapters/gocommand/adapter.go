// Package gocommand binds checkout commands and queries to the go-command
// registry and dispatcher.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// JobQueueResolverKey names the resolver that mirrors registered commands
// into a go-job queue registry.
const JobQueueResolverKey = "checkout.jobs"

var errNoRegistry = fmt.Errorf("gocommand: registry is not configured")

// RegistryAdapter owns the go-command registry a process registers into.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return errNoRegistry
	}
	return nil
}

// RegisterCommand records a Commander or Querier with the registry. Queries
// share the command table in go-command.
func (a *RegistryAdapter) RegisterCommand(handler any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(handler)
}

// MirrorToJobQueue makes every registered command resolvable from the go-job
// queue registry once Initialize runs.
func (a *RegistryAdapter) MirrorToJobQueue(queueRegistry *jobqueuecommand.Registry) error {
	if err := a.ready(); err != nil {
		return err
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(JobQueueResolverKey, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

// Subscriptions is the set of dispatcher subscriptions a process holds.
type Subscriptions []commanddispatcher.Subscription

// Unsubscribe removes every subscription in the set.
func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterAndSubscribe subscribes cmd with the dispatcher and records it in
// the registry. A registry failure drops the subscription again.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return register(adapter, cmd, commanddispatcher.SubscribeCommand(cmd, runnerOpts...))
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return register(adapter, qry, commanddispatcher.SubscribeQuery(qry, runnerOpts...))
}

func register(adapter *RegistryAdapter, handler any, sub commanddispatcher.Subscription) (commanddispatcher.Subscription, error) {
	if err := adapter.RegisterCommand(handler); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

// Dispatch validates msg and runs it through the subscribed command.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := commanddispatcher.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("gocommand: dispatch %s: %w", messageType(msg), err)
	}
	return nil
}

// Query validates msg and returns the subscribed querier's answer.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := validate(msg); err != nil {
		var zero R
		return zero, err
	}
	out, err := commanddispatcher.Query[T, R](ctx, msg)
	if err != nil {
		return out, fmt.Errorf("gocommand: query %s: %w", messageType(msg), err)
	}
	return out, nil
}

func validate(msg any) error {
	m, ok := msg.(command.Message)
	if !ok || strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message %T has no type", msg)
	}
	return command.ValidateMessage(msg)
}

func messageType(msg any) string {
	if m, ok := msg.(command.Message); ok {
		return m.Type()
	}
	return fmt.Sprintf("%T", msg)
}
