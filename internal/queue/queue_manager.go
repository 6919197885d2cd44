package queue

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/models"
)

// Stats holds the cardinality of each queue index.
type Stats struct {
	Ready      int64 `json:"ready"`
	Delayed    int64 `json:"delayed"`
	Processing int64 `json:"processing"`
	DeadLetter int64 `json:"deadLetter"`
}

// ProcessingEntry is the value stored in the processing index while a worker
// owns a job.
type ProcessingEntry struct {
	WorkerID  string    `json:"workerId"`
	StartedAt time.Time `json:"startedAt"`
}

// Manager is the small algebra over the sorted-set index. Every operation is
// individually atomic in the KV engine; the manager never composes multi-step
// atomicity. Callers order writes durable-store-first on creation and
// queue-first on removal.
type Manager interface {
	// Enqueue adds the job to the ready index with a priority-adjusted score.
	Enqueue(ctx context.Context, jobID string, priority models.Priority) error

	// EnqueueDelayed adds the job to the delayed index scored by fire time.
	EnqueueDelayed(ctx context.Context, jobID string, fireAt time.Time, priority models.Priority) error

	// Dequeue pops the minimum-score member of the ready index. It never
	// blocks; ok is false when the index is empty.
	Dequeue(ctx context.Context) (jobID string, ok bool, err error)

	// PromoteDelayed moves every delayed member that has come due into the
	// ready index and returns the number promoted. Safe under concurrent
	// promoters: each member is promoted at most once.
	PromoteDelayed(ctx context.Context) (int, error)

	// MarkProcessing records the owning worker in the processing index.
	MarkProcessing(ctx context.Context, jobID, workerID string) error

	// MarkCompleted removes the job from the processing index.
	MarkCompleted(ctx context.Context, jobID string) error

	// Requeue removes the job from the processing index and schedules it in
	// the delayed index delayMs from now. Used for retries and recovery.
	Requeue(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error

	// MoveToDLQ mirrors a permanent failure into the dead-letter index and
	// removes the job from the processing index.
	MoveToDLQ(ctx context.Context, jobID, reason string) error

	// RemoveFromDLQ drops every dead-letter member for the given job id.
	RemoveFromDLQ(ctx context.Context, jobID string) error

	Stats(ctx context.Context) (*Stats, error)

	// Ping reports whether the KV engine is reachable.
	Ping(ctx context.Context) error
}
