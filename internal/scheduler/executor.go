package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/lock"
	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

// Retry policy applied to every job a schedule produces.
const (
	scheduledJobMaxRetries   = 3
	scheduledJobRetryDelayMs = 1000
)

// Executor fires due schedules: it turns each one's template into a queued
// job and advances the next fire time. An advisory lock per tick keeps
// concurrent executor instances from double-firing; losers skip the tick.
type Executor struct {
	schedules     repository.ScheduleRepository
	jobs          repository.JobRepository
	queue         queue.Manager
	locks         lock.DistributedLockManager
	checkInterval time.Duration
	batchSize     int
	now           func() time.Time
}

func NewExecutor(schedules repository.ScheduleRepository, jobs repository.JobRepository, q queue.Manager, locks lock.DistributedLockManager, checkInterval time.Duration, batchSize int) *Executor {
	return &Executor{
		schedules:     schedules,
		jobs:          jobs,
		queue:         q,
		locks:         locks,
		checkInterval: checkInterval,
		batchSize:     batchSize,
		now:           time.Now,
	}
}

// Run blocks until ctx is cancelled, checking for due schedules every
// checkInterval.
func (e *Executor) Run(ctx context.Context) error {
	log.Printf("scheduler: started (interval=%s)", e.checkInterval)
	ticker := time.NewTicker(e.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Executor) tick(ctx context.Context) {
	acquired, err := e.locks.TryAcquire(lock.ScheduleExecutorLock)
	if err != nil {
		log.Printf("scheduler: lock acquire failed: %v", err)
		return
	}
	if !acquired {
		return
	}
	defer e.locks.Release(lock.ScheduleExecutorLock)

	now := e.now()
	due, err := e.schedules.FindDue(ctx, now, e.batchSize)
	if err != nil {
		log.Printf("scheduler: failed to fetch due schedules: %v", err)
		return
	}

	for i := range due {
		e.fire(ctx, &due[i], now)
	}
}

// fire creates one job from the schedule template and advances the firing
// state. When job creation fails the next fire time still moves forward:
// skipping one firing beats replaying it on every tick.
func (e *Executor) fire(ctx context.Context, schedule *models.Schedule, now time.Time) {
	next, err := NextRun(schedule.CronExpr, schedule.Timezone, now)
	if err != nil {
		log.Printf("scheduler: schedule %s has invalid rule: %v", schedule.ID, err)
		return
	}

	_, err = e.CreateJob(ctx, schedule)
	if err != nil {
		log.Printf("scheduler: schedule %s: %v", schedule.ID, err)
		if advErr := e.schedules.AdvanceNextRun(ctx, schedule.ID, next); advErr != nil {
			log.Printf("scheduler: schedule %s: failed to advance: %v", schedule.ID, advErr)
		}
		return
	}

	if err := e.schedules.RecordRun(ctx, schedule.ID, now, next); err != nil {
		log.Printf("scheduler: schedule %s: failed to record run: %v", schedule.ID, err)
	}
}

// CreateJob instantiates the schedule's template as a queued job. Also used
// by the manual trigger endpoint.
func (e *Executor) CreateJob(ctx context.Context, schedule *models.Schedule) (*models.Job, error) {
	job := &models.Job{
		ID:           uuid.NewString(),
		Name:         fmt.Sprintf("%s (scheduled)", schedule.Name),
		Type:         schedule.JobType,
		Payload:      schedule.JobPayload,
		Priority:     schedule.JobPriority,
		Status:       state.StatusPending,
		MaxRetries:   scheduledJobMaxRetries,
		RetryDelayMs: scheduledJobRetryDelayMs,
		ScheduleID:   &schedule.ID,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := e.queue.Enqueue(ctx, job.ID, job.Priority); err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	if err := e.jobs.MarkQueued(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to mark job %s queued: %w", job.ID, err)
	}
	job.Status = state.StatusQueued
	return job, nil
}
