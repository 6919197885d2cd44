package recovery

import (
	"context"
	"log"
	"time"

	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/repository"
)

// reclaimError is recorded on every job taken back from a dead worker.
const reclaimError = "Worker died - job recovered automatically"

// Options are the recovery loop timings.
type Options struct {
	CheckInterval  time.Duration
	StaleThreshold time.Duration
	RecoveryDelay  time.Duration
	PageSize       int
}

// Recoverer detects workers whose heartbeats have aged out and re-queues
// the jobs they left in PROCESSING. Reclaiming bumps retryCount and clears
// workerId, so a worker that was merely stalled finds its completion guard
// failing and discards its late result.
type Recoverer struct {
	workers repository.WorkerRepository
	jobs    repository.JobRepository
	queue   queue.Manager
	opts    Options
	now     func() time.Time
}

func New(workers repository.WorkerRepository, jobs repository.JobRepository, q queue.Manager, opts Options) *Recoverer {
	if opts.PageSize < 1 {
		opts.PageSize = 100
	}
	return &Recoverer{
		workers: workers,
		jobs:    jobs,
		queue:   q,
		opts:    opts,
		now:     time.Now,
	}
}

// Run blocks until ctx is cancelled, scanning for dead workers every check
// interval.
func (r *Recoverer) Run(ctx context.Context) error {
	log.Printf("recovery: started (interval=%s, stale threshold=%s)", r.opts.CheckInterval, r.opts.StaleThreshold)
	ticker := time.NewTicker(r.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("recovery: stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Recoverer) tick(ctx context.Context) {
	cutoff := r.now().Add(-r.opts.StaleThreshold)
	stale, err := r.workers.FindStale(ctx, cutoff)
	if err != nil {
		log.Printf("recovery: failed to find stale workers: %v", err)
		return
	}

	for i := range stale {
		worker := &stale[i]
		reclaimed := r.reclaimJobs(ctx, worker.ID)
		if reclaimed > 0 {
			log.Printf("recovery: reclaimed %d jobs from dead worker %s", reclaimed, worker.ID)
		}
		if err := r.workers.MarkStopped(ctx, worker.ID, r.now().UTC()); err != nil {
			log.Printf("recovery: failed to stop worker %s: %v", worker.ID, err)
		}
	}
}

func (r *Recoverer) reclaimJobs(ctx context.Context, workerID string) int {
	orphans, err := r.jobs.FindProcessingByWorker(ctx, workerID, r.opts.PageSize)
	if err != nil {
		log.Printf("recovery: failed to list jobs of worker %s: %v", workerID, err)
		return 0
	}

	reclaimed := 0
	for i := range orphans {
		job := &orphans[i]
		if err := r.jobs.ReclaimOrphan(ctx, job.ID, reclaimError); err != nil {
			log.Printf("recovery: failed to reclaim job %s: %v", job.ID, err)
			continue
		}
		if err := r.queue.MarkCompleted(ctx, job.ID); err != nil {
			log.Printf("recovery: failed to clear processing index for job %s: %v", job.ID, err)
		}
		if err := r.queue.Requeue(ctx, job.ID, job.Priority, r.opts.RecoveryDelay); err != nil {
			log.Printf("recovery: failed to requeue job %s: %v", job.ID, err)
			continue
		}
		reclaimed++
	}
	return reclaimed
}
