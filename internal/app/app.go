package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/db"
	"github.com/taskforge/taskforge/internal/lock"
	"github.com/taskforge/taskforge/internal/processor"
	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/recovery"
	"github.com/taskforge/taskforge/internal/repository/postgres"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/web"
	"github.com/taskforge/taskforge/internal/webhook"
	"github.com/taskforge/taskforge/internal/worker"
)

// Roles selects which long-running loops this process hosts. A single binary
// can run everything or be split per role across processes.
type Roles struct {
	Worker       bool
	Scheduler    bool
	Recovery     bool
	WebhookRetry bool
	API          bool
}

func AllRoles() Roles {
	return Roles{Worker: true, Scheduler: true, Recovery: true, WebhookRetry: true, API: true}
}

func (r Roles) any() bool {
	return r.Worker || r.Scheduler || r.Recovery || r.WebhookRetry || r.API
}

// App owns the two connection pools and wires every component explicitly.
// Construction is eager: a broken database or queue connection fails New, not
// the first tick of some loop.
type App struct {
	cfg   *config.Config
	roles Roles

	conn  *sql.DB
	redis *redis.Client

	registry     *processor.Registry
	worker       *worker.Worker
	executor     *scheduler.Executor
	recoverer    *recovery.Recoverer
	webhookRetry *webhook.RetryProcessor
	httpServer   *http.Server
}

func New(cfg *config.Config, roles Roles) (*App, error) {
	if !roles.any() {
		return nil, fmt.Errorf("app: no roles selected")
	}

	conn, err := db.Open(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	locks := lock.NewPostgresDistributedLockManager(conn)
	if err := db.Migrate(conn, cfg.MigrationsDir, locks); err != nil {
		conn.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	queueManager := queue.NewRedisManager(redisClient)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queueManager.Ping(pingCtx); err != nil {
		conn.Close()
		redisClient.Close()
		return nil, fmt.Errorf("app: queue engine unreachable: %w", err)
	}

	jobs := postgres.NewJobRepository(conn)
	schedules := postgres.NewScheduleRepository(conn)
	workers := postgres.NewWorkerRepository(conn)
	deadLetter := postgres.NewDeadLetterRepository(conn)
	events := postgres.NewWebhookEventRepository(conn)

	registry := processor.NewRegistry()
	dispatcher := webhook.NewDispatcher(events, nil, cfg.WebhookTimeout, cfg.WebhookMaxAttempts)
	proc := processor.New(jobs, deadLetter, queueManager, registry, dispatcher)

	executor := scheduler.NewExecutor(schedules, jobs, queueManager, locks, cfg.SchedulerCheckInterval, cfg.ScheduleBatchSize)

	a := &App{
		cfg:      cfg,
		roles:    roles,
		conn:     conn,
		redis:    redisClient,
		registry: registry,
		executor: executor,
	}

	if roles.Worker {
		a.worker = worker.New(workers, jobs, queueManager, proc, worker.Options{
			Name:              cfg.Instance,
			Concurrency:       cfg.WorkerConcurrency,
			PollInterval:      cfg.PollInterval,
			HeartbeatInterval: cfg.HeartbeatInterval,
			PromoteInterval:   cfg.PromoteInterval,
		})
	}
	if roles.Recovery {
		a.recoverer = recovery.New(workers, jobs, queueManager, recovery.Options{
			CheckInterval:  cfg.OrphanCheckInterval,
			StaleThreshold: cfg.StaleThreshold,
			RecoveryDelay:  cfg.RecoveryDelay,
			PageSize:       cfg.RecoveryPageSize,
		})
	}
	if roles.WebhookRetry {
		a.webhookRetry = webhook.NewRetryProcessor(events, nil, cfg.WebhookTimeout, webhook.RetryOptions{
			Interval:  cfg.WebhookRetryInterval,
			BatchSize: cfg.WebhookRetryBatchSize,
			BaseDelay: cfg.WebhookRetryBaseDelay,
			MaxDelay:  cfg.WebhookRetryMaxDelay,
		})
	}
	if roles.API {
		server := web.NewServer(jobs, schedules, workers, deadLetter, events, queueManager, executor, conn)
		a.httpServer = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: server.Routes(),
		}
	}

	return a, nil
}

// Registry exposes the handler registry so the caller can bind job types
// before Run.
func (a *App) Registry() *processor.Registry {
	return a.registry
}

// Run starts every selected role and blocks until ctx is cancelled or one of
// the roles fails. Cancellation is a clean shutdown, not an error.
func (a *App) Run(ctx context.Context) error {
	g, groupCtx := errgroup.WithContext(ctx)

	if a.worker != nil {
		g.Go(func() error { return a.worker.Run(groupCtx) })
	}
	if a.roles.Scheduler {
		g.Go(func() error { return ignoreCancel(a.executor.Run(groupCtx)) })
	}
	if a.recoverer != nil {
		g.Go(func() error { return ignoreCancel(a.recoverer.Run(groupCtx)) })
	}
	if a.webhookRetry != nil {
		g.Go(func() error { return ignoreCancel(a.webhookRetry.Run(groupCtx)) })
	}
	if a.httpServer != nil {
		g.Go(func() error {
			log.Printf("api: listening on %s", a.httpServer.Addr)
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.httpServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close releases the connection pools. Call after Run has returned.
func (a *App) Close() error {
	var firstErr error
	if err := a.redis.Close(); err != nil {
		firstErr = err
	}
	if err := a.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
