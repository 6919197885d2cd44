package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/processor"
	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

// Options are the worker's loop timings and slot count.
type Options struct {
	Name              string
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	PromoteInterval   time.Duration
}

// Processor runs one job to a terminal or retrying state. The returned error
// is the handler failure, nil on success.
type Processor interface {
	Process(ctx context.Context, job *models.Job, workerID string) error
}

// Worker is one registered processing process: a set of dequeue slots plus
// the heartbeat and delayed-promoter tickers. Slots share nothing but the
// queue manager, so concurrency has no effect on the per-job state machine.
type Worker struct {
	id        string
	opts      Options
	workers   repository.WorkerRepository
	jobs      repository.JobRepository
	queue     queue.Manager
	processor Processor

	activeJobs atomic.Int64
}

func New(workers repository.WorkerRepository, jobs repository.JobRepository, q queue.Manager, processor Processor, opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Name == "" {
		opts.Name = "worker"
	}
	return &Worker{
		id:        uuid.NewString(),
		opts:      opts,
		workers:   workers,
		jobs:      jobs,
		queue:     q,
		processor: processor,
	}
}

// ID returns the worker's registration id.
func (w *Worker) ID() string {
	return w.id
}

// Run registers the worker and blocks until ctx is cancelled, then writes
// the stopped state. The main loop never dies on handler or infrastructure
// errors; they are logged and the loop continues after a poll interval.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.register(ctx); err != nil {
		return fmt.Errorf("worker %s: %w", w.id, err)
	}
	log.Printf("worker %s: started (concurrency=%d)", w.id, w.opts.Concurrency)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.heartbeatLoop(groupCtx) })
	g.Go(func() error { return w.promoteLoop(groupCtx) })
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error { return w.slotLoop(groupCtx) })
	}

	err := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := w.workers.MarkStopped(stopCtx, w.id, time.Now().UTC()); stopErr != nil {
		log.Printf("worker %s: failed to mark stopped: %v", w.id, stopErr)
	}
	log.Printf("worker %s: stopped", w.id)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) register(ctx context.Context) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	row := &models.Worker{
		ID:          w.id,
		Name:        w.opts.Name,
		Hostname:    hostname,
		PID:         os.Getpid(),
		Status:      state.WorkerActive,
		Concurrency: w.opts.Concurrency,
		StartedAt:   time.Now().UTC(),
	}
	if err := w.workers.Register(ctx, row); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.workers.Heartbeat(ctx, w.id, time.Now().UTC()); err != nil {
				log.Printf("worker %s: heartbeat failed: %v", w.id, err)
			}
		}
	}
}

func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			promoted, err := w.queue.PromoteDelayed(ctx)
			if err != nil {
				log.Printf("worker %s: delayed promotion failed: %v", w.id, err)
				continue
			}
			if promoted > 0 {
				log.Printf("worker %s: promoted %d delayed jobs", w.id, promoted)
			}
		}
	}
}

func (w *Worker) slotLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, ok, err := w.nextJob(ctx)
		if err != nil {
			log.Printf("worker %s: %v", w.id, err)
			w.sleep(ctx)
			continue
		}
		if !ok {
			w.sleep(ctx)
			continue
		}

		w.runJob(ctx, job)
	}
}

// nextJob pops one reference and loads the row. A popped id whose row is
// missing or no longer dequeueable is a stale reference; it is dropped and
// the loop keeps going.
func (w *Worker) nextJob(ctx context.Context) (*models.Job, bool, error) {
	jobID, ok, err := w.queue.Dequeue(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("dequeue failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	job, err := w.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("worker %s: dropping stale reference to missing job %s", w.id, jobID)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load job %s failed: %w", jobID, err)
	}
	if !job.Status.IsDequeueable() {
		log.Printf("worker %s: dropping job %s in status %s", w.id, jobID, job.Status)
		return nil, false, nil
	}
	return job, true, nil
}

func (w *Worker) runJob(ctx context.Context, job *models.Job) {
	active := int(w.activeJobs.Add(1))
	if err := w.workers.SetActiveJobs(ctx, w.id, active); err != nil {
		log.Printf("worker %s: failed to update active jobs: %v", w.id, err)
	}
	defer func() {
		active := int(w.activeJobs.Add(-1))
		if err := w.workers.SetActiveJobs(ctx, w.id, active); err != nil {
			log.Printf("worker %s: failed to update active jobs: %v", w.id, err)
		}
	}()

	err := w.processor.Process(ctx, job, w.id)
	if errors.Is(err, processor.ErrNotStarted) {
		// The job never ran; counting it would skew the worker totals.
		log.Printf("worker %s: job %s: %v", w.id, job.ID, err)
		return
	}
	if err != nil {
		log.Printf("worker %s: job %s failed: %v", w.id, job.ID, err)
	}
	if recordErr := w.workers.RecordOutcome(ctx, w.id, err != nil); recordErr != nil {
		log.Printf("worker %s: failed to record outcome: %v", w.id, recordErr)
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.opts.PollInterval):
	}
}
