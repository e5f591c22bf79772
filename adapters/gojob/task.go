package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/locks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// Handler executes one job message.
type Handler func(ctx context.Context, msg *job.ExecutionMessage) error

// Locked wraps handler so only one process runs it per key at a time. A run
// that finds the key taken succeeds without doing anything.
func Locked(locker locks.Locker, key string, ttl time.Duration, handler Handler) Handler {
	return func(ctx context.Context, msg *job.ExecutionMessage) error {
		_, err := locks.WithLock(ctx, locker, key, ttl, func(ctx context.Context) error {
			return handler(ctx, msg)
		})
		return err
	}
}

// Enqueue returns a handler that hands the run to a queue worker instead of
// executing it, carrying the batch limit over.
func Enqueue(enqueuer queue.Enqueuer, jobID string) Handler {
	return func(ctx context.Context, msg *job.ExecutionMessage) error {
		_, err := enqueuer.Enqueue(ctx, SweepMessage(jobID, LimitFrom(msg, 0)))
		return err
	}
}

// SweepTask is a go-job task backed by an in-process handler. The job id
// doubles as the script path so queue routing validates.
type SweepTask struct {
	id     string
	run    Handler
	config job.Config
}

func NewSweepTask(jobID string, run Handler) (*SweepTask, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("gojob: job id is required")
	}
	if run == nil {
		return nil, fmt.Errorf("gojob: handler for %s is required", jobID)
	}
	return &SweepTask{id: jobID, run: run}, nil
}

func (t *SweepTask) GetID() string                        { return t.id }
func (t *SweepTask) GetPath() string                      { return t.id }
func (t *SweepTask) GetConfig() job.Config                { return t.config }
func (t *SweepTask) GetHandler() func() error             { return func() error { return nil } }
func (t *SweepTask) GetHandlerConfig() job.HandlerOptions { return job.HandlerOptions{} }
func (t *SweepTask) GetEngine() job.Engine                { return nil }

func (t *SweepTask) Execute(ctx context.Context, msg *job.ExecutionMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gojob: task %s panicked: %v", t.id, r)
		}
	}()
	return t.run(ctx, msg)
}

var _ job.Task = (*SweepTask)(nil)
