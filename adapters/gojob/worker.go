package gojob

import (
	"fmt"
	"time"

	"github.com/goliatone/go-checkout/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// NewWorker builds a go-job queue worker for tasks. Failed runs are retried
// per NewRetryPolicy(retryDelay) and reported through the checkout observer.
// Extra options are applied last.
func NewWorker(dequeuer queue.Dequeuer, logger core.Logger, retryDelay time.Duration, tasks []job.Task, extra ...worker.Option) (*worker.Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	opts := []worker.Option{
		worker.WithHooks(NewWorkerHookAdapter(logger, nil)),
		worker.WithRetryPolicy(NewRetryPolicy(retryDelay)),
	}
	if logger != nil {
		opts = append(opts, worker.WithLogger(job.GoLogger(logger)))
	}
	opts = append(opts, extra...)
	w := worker.NewWorker(dequeuer, opts...)
	if err := w.RegisterAll(tasks); err != nil {
		return nil, err
	}
	return w, nil
}
