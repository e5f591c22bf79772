// Package notify fans order events out to forwarders off the request path.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-checkout/core"
)

const (
	defaultWorkers    = 4
	defaultBufferSize = 256
	defaultTimeout    = 15 * time.Second
)

// Forwarder delivers one order event to one downstream system.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, event core.OrderEvent) error
}

type Option func(*AsyncNotifier)

func WithWorkers(workers int) Option {
	return func(n *AsyncNotifier) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

func WithBufferSize(size int) Option {
	return func(n *AsyncNotifier) {
		if size > 0 {
			n.bufferSize = size
		}
	}
}

// WithTimeout bounds each forwarder call.
func WithTimeout(timeout time.Duration) Option {
	return func(n *AsyncNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(n *AsyncNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(n *AsyncNotifier) {
		if metrics != nil {
			n.metrics = metrics
		}
	}
}

type job struct {
	ctx   context.Context
	event core.OrderEvent
}

// AsyncNotifier runs every forwarder for each event on a bounded worker
// pool. Notify never blocks; events are dropped with a warning when the
// buffer is full.
type AsyncNotifier struct {
	forwarders []Forwarder
	workers    int
	bufferSize int
	timeout    time.Duration
	logger     core.Logger
	metrics    core.MetricsRecorder
	observer   core.Observer

	queue    chan job
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewAsyncNotifier(forwarders []Forwarder, opts ...Option) (*AsyncNotifier, error) {
	active := make([]Forwarder, 0, len(forwarders))
	for _, forwarder := range forwarders {
		if forwarder != nil {
			active = append(active, forwarder)
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("notify: at least one forwarder is required")
	}
	n := &AsyncNotifier{
		forwarders: active,
		workers:    defaultWorkers,
		bufferSize: defaultBufferSize,
		timeout:    defaultTimeout,
		metrics:    core.NopMetricsRecorder{},
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.observer = core.NewObserver("notify", n.logger, n.metrics)
	n.queue = make(chan job, n.bufferSize)
	for range n.workers {
		n.wg.Add(1)
		go n.run()
	}
	return n, nil
}

// Notify queues event. The request context only contributes its values;
// cancelling it does not cancel the forwarders.
func (n *AsyncNotifier) Notify(ctx context.Context, event core.OrderEvent) {
	if n == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-n.stopCh:
		n.observer.Warn(ctx, "notification dropped after close", eventFields(event))
		return
	default:
	}
	select {
	case n.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		n.observer.Count(ctx, "dropped", 1, map[string]string{"event": event.EventName})
		n.observer.Warn(ctx, "notification queue full", eventFields(event))
	}
}

// Close stops accepting events, drains the queue and waits for in-flight
// forwarders or ctx, whichever comes first.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	if n == nil {
		return nil
	}
	n.stopOnce.Do(func() {
		close(n.stopCh)
	})
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			for {
				select {
				case queued := <-n.queue:
					n.forward(queued)
				default:
					return
				}
			}
		case queued := <-n.queue:
			n.forward(queued)
		}
	}
}

func (n *AsyncNotifier) forward(queued job) {
	for _, forwarder := range n.forwarders {
		n.forwardOne(queued.ctx, forwarder, queued.event)
	}
}

func (n *AsyncNotifier) forwardOne(parent context.Context, forwarder Forwarder, event core.OrderEvent) {
	ctx, cancel := context.WithTimeout(parent, n.timeout)
	defer cancel()
	startedAt := time.Now()
	fields := eventFields(event)
	fields["forwarder"] = forwarder.Name()

	var err error
	func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("notify: forwarder %s panicked: %v", forwarder.Name(), recovered)
			}
		}()
		err = forwarder.Forward(ctx, event)
	}()
	n.observer.Observe(ctx, startedAt, "forward", err, fields)
}

func eventFields(event core.OrderEvent) map[string]any {
	return map[string]any{
		"event":     event.EventName,
		"order_id":  event.Order.ID,
		"vendor_id": event.Order.VendorID,
	}
}

var _ core.Notifier = (*AsyncNotifier)(nil)
