package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-checkout/core"

	gocron "github.com/goliatone/go-command/cron"
	job "github.com/goliatone/go-job"
)

// Schedule runs JobID every Interval with the given batch limit.
type Schedule struct {
	JobID    string
	Interval time.Duration
	Limit    int
}

// SchedulesFromConfig derives the sweep schedules from runtime config.
func SchedulesFromConfig(cfg core.Config) []Schedule {
	return []Schedule{
		{JobID: JobIDRetrySweep, Interval: cfg.Retry.Interval, Limit: cfg.Retry.BatchSize},
		{JobID: JobIDAbandonSweep, Interval: cfg.Abandon.Interval, Limit: cfg.Abandon.BatchSize},
	}
}

// EveryExpression renders interval as a cron descriptor.
func EveryExpression(interval time.Duration) string {
	return "@every " + interval.String()
}

// Scheduler fires tasks on fixed intervals through a go-job cron manager.
type Scheduler struct {
	cron     *gocron.Scheduler
	registry job.Registry
	manager  *job.CronManager
}

func NewScheduler(logger core.Logger) *Scheduler {
	observer := core.NewObserver("jobs.scheduler", logger, nil)
	cron := gocron.NewScheduler(gocron.WithErrorHandler(func(err error) {
		observer.Error(context.Background(), "scheduled job failed", map[string]any{"error": err.Error()})
	}))
	registry := job.NewMemoryRegistry()
	return &Scheduler{
		cron:     cron,
		registry: registry,
		manager:  job.NewCronManager(registry, cron).WithIdempotencyTracker(job.NewIdempotencyTracker()),
	}
}

// Add registers task to run on schedule. The schedule's job id must match
// the task id.
func (s *Scheduler) Add(ctx context.Context, task job.Task, schedule Schedule) error {
	if task == nil {
		return fmt.Errorf("gojob: task is required")
	}
	if schedule.JobID != task.GetID() {
		return fmt.Errorf("gojob: schedule %s does not match task %s", schedule.JobID, task.GetID())
	}
	if schedule.Interval <= 0 {
		return fmt.Errorf("gojob: schedule %s interval must be positive", schedule.JobID)
	}
	if err := s.registry.Add(task); err != nil {
		return err
	}
	return s.manager.Register(ctx, job.ScheduleDefinition{
		ID:         schedule.JobID,
		Expression: EveryExpression(schedule.Interval),
		Message:    *SweepMessage(schedule.JobID, schedule.Limit),
	})
}

// Schedules lists the registered schedule definitions.
func (s *Scheduler) Schedules() []job.ScheduleDefinition {
	return s.manager.List()
}

func (s *Scheduler) Start(ctx context.Context) error {
	return s.cron.Start(ctx)
}

func (s *Scheduler) Stop(ctx context.Context) error {
	return s.cron.Stop(ctx)
}
