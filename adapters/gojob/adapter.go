package gojob

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDRetrySweep   = "checkout.retry.sweep"
	JobIDAbandonSweep = "checkout.abandon.sweep"

	ParamLimit = "limit"
)

const (
	// DefaultMaxAttempts keeps a failing sweep from spinning. The next tick
	// runs a fresh sweep anyway.
	DefaultMaxAttempts = 3
	maxRetryDelay      = time.Minute
)

// NewRetryPolicy spaces sweep retries by delay, capped at a minute, and
// dead letters a run after DefaultMaxAttempts.
func NewRetryPolicy(delay time.Duration) worker.DefaultRetryPolicy {
	if delay <= 0 || delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return worker.DefaultRetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff: worker.BackoffConfig{
			Strategy:    worker.BackoffExponential,
			Interval:    delay,
			MaxInterval: maxRetryDelay,
		},
	}
}

// SweepMessage builds the execution message for one sweep run.
func SweepMessage(jobID string, limit int) *job.ExecutionMessage {
	jobID = strings.TrimSpace(jobID)
	params := map[string]any{}
	if limit > 0 {
		params[ParamLimit] = limit
	}
	return &job.ExecutionMessage{
		JobID:      jobID,
		ScriptPath: jobID,
		Parameters: params,
	}
}

// LimitFrom reads the sweep batch size from a message, falling back to def.
func LimitFrom(msg *job.ExecutionMessage, def int) int {
	if msg == nil || msg.Parameters == nil {
		return def
	}
	switch v := msg.Parameters[ParamLimit].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}

// WorkerHookAdapter reports worker lifecycle events through the checkout
// observer.
type WorkerHookAdapter struct {
	observer core.Observer
}

func NewWorkerHookAdapter(logger core.Logger, metrics core.MetricsRecorder) *WorkerHookAdapter {
	return &WorkerHookAdapter{observer: core.NewObserver("jobs", logger, metrics)}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil {
		return
	}
	a.observer.Debug(ctx, "job started", eventFields(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil {
		return
	}
	a.observer.Observe(ctx, event.StartedAt, "run", nil, eventFields(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil {
		return
	}
	a.observer.Observe(ctx, event.StartedAt, "run", event.Err, eventFields(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil {
		return
	}
	fields := eventFields(event)
	fields["delay"] = event.Delay.String()
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	a.observer.Warn(ctx, "job scheduled for retry", fields)
}

func eventFields(event worker.Event) map[string]any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := map[string]any{
		"attempt": event.Attempt,
	}
	if message != nil {
		fields["job_id"] = message.JobID
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	return fields
}

var _ worker.Hook = (*WorkerHookAdapter)(nil)
