// Command checkoutd runs the checkout HTTP service together with the retry
// and abandoned checkout sweeps.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	checkout "github.com/goliatone/go-checkout"
	"github.com/goliatone/go-checkout/adapters/gocommand"
	"github.com/goliatone/go-checkout/adapters/gojob"
	"github.com/goliatone/go-checkout/adapters/gologger"
	checkoutcommand "github.com/goliatone/go-checkout/command"
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/httpapi"
	"github.com/goliatone/go-checkout/locks"
	checkoutmigrations "github.com/goliatone/go-checkout/migrations"
	"github.com/goliatone/go-checkout/security"
	sqlstore "github.com/goliatone/go-checkout/store/sql"
	"github.com/goliatone/go-checkout/transport"

	gocmd "github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "checkoutd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loggers := gologger.New(newLoggerProvider(os.Stderr, os.Getenv("CHECKOUT_LOG_LEVEL")), nil)
	logger := loggers.For("")
	cfg, err := core.ResolveConfig(ctx, core.NewCfgxConfigProvider(envLoader{logger: loggers.For("config")}), nil, core.Config{})
	if err != nil {
		return err
	}

	client, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}
	var cacheService repositorycache.CacheService
	if cfg.Dispatch.CacheTTL > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.Dispatch.CacheTTL
		if cacheService, err = repositorycache.NewCacheService(cacheConfig); err != nil {
			return err
		}
	}
	stores, err := checkout.StoresFromFactory(factory, cacheService)
	if err != nil {
		return err
	}

	secrets, err := security.NewKeyringFromConfig(cfg.Security)
	if err != nil {
		return err
	}

	httpAdapter := transport.NewRESTAdapter(nil)
	runtime, err := checkout.New(cfg, checkout.Dependencies{
		Stores:  stores,
		Secrets: secrets,
		Adapter: checkout.PushinPayAdapter(),
		Charges: checkout.PushinPayClient(cfg.Gateway, httpAdapter),
		HTTP:    httpAdapter,
	}, checkout.WithLogger(loggers.For("runtime")))
	if err != nil {
		return err
	}

	facade, err := checkout.NewFacade(runtime)
	if err != nil {
		return err
	}
	registry := gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	subs, err := facade.Register(registry)
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()
	if err := registry.Initialize(); err != nil {
		return err
	}

	jobs, locker, closeJobs, err := openJobQueue(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeJobs()

	tasks, err := sweepTasks(locker, cfg)
	if err != nil {
		return err
	}
	scheduler := gojob.NewScheduler(loggers.For("jobs"))
	if err := scheduleSweeps(ctx, scheduler, jobs, tasks, cfg); err != nil {
		return err
	}
	var jobWorker *worker.Worker
	if jobs != nil {
		if jobWorker, err = gojob.NewWorker(jobs, loggers.For("jobs"), cfg.Retry.Interval, tasks); err != nil {
			return err
		}
	}

	server, err := httpapi.NewServer(httpapi.Services{
		Receiver:   runtime.Receiver,
		Orders:     runtime.Orders,
		Deliveries: runtime.Dispatcher,
		Retries:    runtime.Sweeper,
	}, httpapi.ConfigFromCore(cfg), httpapi.WithLogger(loggers.For("http")), httpapi.WithLocker(locker))
	if err != nil {
		return err
	}

	if jobWorker != nil {
		if err := jobWorker.Start(ctx); err != nil {
			return err
		}
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("checkout service listening", "addr", cfg.HTTP.Addr, "service", cfg.ServiceName)
		listenErr <- server.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down checkout service")
	shutdown := []error{scheduler.Stop(shutdownCtx)}
	if jobWorker != nil {
		shutdown = append(shutdown, jobWorker.Stop(shutdownCtx))
	}
	shutdown = append(shutdown, server.Shutdown(shutdownCtx), runtime.Close(shutdownCtx))
	return errors.Join(shutdown...)
}

// sweepTasks routes the sweep job ids to their commands. Each run holds the
// sweep lock so replicas do not sweep concurrently.
func sweepTasks(locker locks.Locker, cfg core.Config) ([]job.Task, error) {
	retryLimit := cfg.Retry.BatchSize
	if retryLimit <= 0 {
		retryLimit = core.DefaultSweepBatchSize
	}
	abandonLimit := cfg.Abandon.BatchSize
	if abandonLimit <= 0 {
		abandonLimit = core.DefaultSweepBatchSize
	}
	lockTTL := cfg.SweepLockTTL()

	retry, err := gojob.NewSweepTask(gojob.JobIDRetrySweep, gojob.Locked(locker, locks.KeyRetrySweep, lockTTL,
		func(ctx context.Context, msg *job.ExecutionMessage) error {
			return gocommand.Dispatch(ctx, checkoutcommand.SweepRetriesMessage{Limit: gojob.LimitFrom(msg, retryLimit)})
		}))
	if err != nil {
		return nil, err
	}
	abandon, err := gojob.NewSweepTask(gojob.JobIDAbandonSweep, gojob.Locked(locker, locks.KeyAbandonSweep, lockTTL,
		func(ctx context.Context, msg *job.ExecutionMessage) error {
			return gocommand.Dispatch(ctx, checkoutcommand.SweepAbandonedMessage{Limit: gojob.LimitFrom(msg, abandonLimit)})
		}))
	if err != nil {
		return nil, err
	}
	return []job.Task{retry, abandon}, nil
}

// scheduleSweeps puts each sweep on its interval. With a queue the tick only
// enqueues the run and a worker executes it; otherwise the tick runs the task
// in process.
func scheduleSweeps(ctx context.Context, scheduler *gojob.Scheduler, jobs queue.Enqueuer, tasks []job.Task, cfg core.Config) error {
	byID := make(map[string]job.Task, len(tasks))
	for _, task := range tasks {
		byID[task.GetID()] = task
	}
	for _, schedule := range gojob.SchedulesFromConfig(cfg) {
		task, ok := byID[schedule.JobID]
		if !ok {
			return fmt.Errorf("checkoutd: no task for schedule %s", schedule.JobID)
		}
		if jobs != nil {
			enqueue, err := gojob.NewSweepTask(schedule.JobID, gojob.Enqueue(jobs, schedule.JobID))
			if err != nil {
				return err
			}
			task = enqueue
		}
		if err := scheduler.Add(ctx, task, schedule); err != nil {
			return err
		}
	}
	return nil
}

type jobQueue interface {
	queue.Enqueuer
	queue.Dequeuer
}

// openJobQueue uses Redis for the job queue and the sweep locks when an
// address is configured. Without one the queue is nil and the locks are
// in process.
func openJobQueue(ctx context.Context, cfg core.RedisConfig) (jobQueue, locks.Locker, func(), error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, locks.NewMemoryLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	closeClient := func() { _ = client.Close() }
	if err := client.Ping(ctx).Err(); err != nil {
		closeClient()
		return nil, nil, nil, fmt.Errorf("checkoutd: redis ping: %w", err)
	}
	q, err := gojob.NewRedisQueue(client)
	if err != nil {
		closeClient()
		return nil, nil, nil, err
	}
	locker, err := locks.NewRedisLocker(client)
	if err != nil {
		closeClient()
		return nil, nil, nil, err
	}
	return q, locker, closeClient, nil
}

func openDatabase(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(cfg.DSN)
	var dialect schema.Dialect
	switch driver {
	case "postgres":
		dialect = pgdialect.New()
	default:
		dialect = sqlitedialect.New()
		if dsn == "" {
			dsn = "file:checkout.db?cache=shared&_foreign_keys=on"
		}
	}
	migrationDialect, err := checkoutmigrations.DialectForDriver(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("checkoutd: open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(databaseConfig{driver: driver, dsn: dsn, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if _, err := checkoutmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect == migrationDialect {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, checkoutmigrations.WithValidationTargets(migrationDialect)); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("checkoutd: migrate: %w", err)
	}
	return client, nil
}

type databaseConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c databaseConfig) GetDebug() bool                { return c.debug }
func (c databaseConfig) GetDriver() string             { return c.driver }
func (c databaseConfig) GetServer() string             { return c.dsn }
func (c databaseConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c databaseConfig) GetOtelIdentifier() string     { return "go-checkout" }
