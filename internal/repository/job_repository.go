package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/state"
)

// JobRepository is the durable-store contract for job rows. The store owns
// every authoritative field; the queue index holds derived references only.
type JobRepository interface {
	// Create inserts a new job row. The caller assigns the id.
	Create(ctx context.Context, job *models.Job) error

	// GetByID loads one job or returns ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Job, error)

	// List pages jobs, newest first, optionally filtered by status.
	List(ctx context.Context, page, pageSize int, status *state.JobStatus) (*models.PaginationResult[models.Job], error)

	// MarkQueued transitions the job to QUEUED after it has been added to a
	// queue index.
	MarkQueued(ctx context.Context, id string) error

	// MarkProcessing records the owning worker and the start of execution.
	MarkProcessing(ctx context.Context, id, workerID string, startedAt time.Time) error

	// MarkCompleted writes the terminal success state. The update is
	// conditional on status = PROCESSING and workerId = workerID so that a
	// worker reclaimed by orphan recovery cannot overwrite the re-queued
	// job; it returns ErrInvalidTransition when the guard fails.
	MarkCompleted(ctx context.Context, id, workerID string, result json.RawMessage) error

	// MarkRetrying bumps retryCount by one and records the handler error.
	MarkRetrying(ctx context.Context, id, errMsg string) error

	// MarkFailed writes the terminal failure state under the same
	// compare-and-set guard as MarkCompleted.
	MarkFailed(ctx context.Context, id, workerID, errMsg string) error

	// Cancel transitions to CANCELLED iff the current status is PENDING,
	// QUEUED or RETRYING; otherwise ErrInvalidTransition.
	Cancel(ctx context.Context, id string) error

	// ReclaimOrphan resets a job stranded by a dead worker: RETRYING,
	// retryCount+1, workerId cleared.
	ReclaimOrphan(ctx context.Context, id, errMsg string) error

	// FindProcessingByWorker returns up to limit PROCESSING jobs owned by
	// the given worker. The predicate runs in the store, not client-side.
	FindProcessingByWorker(ctx context.Context, workerID string, limit int) ([]models.Job, error)

	// CountByStatus aggregates job rows per status.
	CountByStatus(ctx context.Context) (map[state.JobStatus]int, error)
}
