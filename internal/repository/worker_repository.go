package repository

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/models"
)

// WorkerRepository is the durable-store contract for worker registrations.
type WorkerRepository interface {
	// Register inserts the row for a starting worker.
	Register(ctx context.Context, worker *models.Worker) error

	GetByID(ctx context.Context, id string) (*models.Worker, error)

	List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Worker], error)

	// Heartbeat writes lastHeartbeat = now on the worker row.
	Heartbeat(ctx context.Context, id string, now time.Time) error

	// SetActiveJobs writes the advisory in-flight counter.
	SetActiveJobs(ctx context.Context, id string, active int) error

	// RecordOutcome bumps processedCount or failedCount.
	RecordOutcome(ctx context.Context, id string, failed bool) error

	// MarkStopped finalizes the row: status=stopped, stoppedAt, activeJobs=0.
	MarkStopped(ctx context.Context, id string, stoppedAt time.Time) error

	// FindStale returns active workers whose lastHeartbeat is older than
	// the cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]models.Worker, error)

	// CountActive returns the number of workers currently registered as
	// active, for the readiness probe.
	CountActive(ctx context.Context) (int, error)
}
