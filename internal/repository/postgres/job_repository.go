package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

const jobColumns = `id, name, type, payload, priority, status, max_retries, retry_delay_ms,
	retry_count, scheduled_at, schedule_id, worker_id, started_at, completed_at,
	result, error, webhook_url, created_at, updated_at`

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
	INSERT INTO taskforge.jobs
		(id, name, type, payload, priority, status, max_retries, retry_delay_ms,
		 retry_count, scheduled_at, schedule_id, webhook_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, now(), now())
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Name, job.Type, job.Payload, job.Priority, job.Status,
		job.MaxRetries, job.RetryDelayMs, job.ScheduledAt, job.ScheduleID, job.WebhookURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM taskforge.jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return job, nil
}

func (r *JobRepository) List(ctx context.Context, page, pageSize int, status *state.JobStatus) (*models.PaginationResult[models.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	where := "TRUE"
	args := []any{}
	if status != nil {
		where = "status = $1"
		args = append(args, *status)
	}

	var totalItems int
	countQuery := `SELECT COUNT(*) FROM taskforge.jobs WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	selectQuery := `SELECT ` + jobColumns + ` FROM taskforge.jobs WHERE ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return paginate(jobs, totalItems, page, pageSize), nil
}

func (r *JobRepository) MarkQueued(ctx context.Context, id string) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, updated_at = now()
	WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusQueued, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s queued: %w", id, err)
	}
	return nil
}

func (r *JobRepository) MarkProcessing(ctx context.Context, id, workerID string, startedAt time.Time) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, worker_id = $2, started_at = $3, updated_at = now()
	WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusProcessing, workerID, startedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", id, err)
	}
	return nil
}

// MarkCompleted is a compare-and-set: only the worker still recorded on a
// PROCESSING row may complete it. A late finisher whose job was reclaimed by
// orphan recovery matches no row and gets ErrInvalidTransition.
func (r *JobRepository) MarkCompleted(ctx context.Context, id, workerID string, result json.RawMessage) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, result = $2, error = NULL, worker_id = NULL,
	    completed_at = now(), updated_at = now()
	WHERE id = $3 AND status = $4 AND worker_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, state.StatusCompleted, result, id, state.StatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", id, err)
	}
	return requireRowAffected(res, repository.ErrInvalidTransition)
}

func (r *JobRepository) MarkRetrying(ctx context.Context, id, errMsg string) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, retry_count = retry_count + 1, error = $2,
	    worker_id = NULL, updated_at = now()
	WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusRetrying, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s retrying: %w", id, err)
	}
	return nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, id, workerID, errMsg string) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, error = $2, result = NULL, worker_id = NULL,
	    completed_at = now(), updated_at = now()
	WHERE id = $3 AND status = $4 AND worker_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, state.StatusFailed, errMsg, id, state.StatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	return requireRowAffected(res, repository.ErrInvalidTransition)
}

func (r *JobRepository) Cancel(ctx context.Context, id string) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, updated_at = now()
	WHERE id = $2 AND status IN ($3, $4, $5)
	`
	res, err := r.db.ExecContext(ctx, query, state.StatusCancelled, id,
		state.StatusPending, state.StatusQueued, state.StatusRetrying)
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", id, err)
	}
	return requireRowAffected(res, repository.ErrInvalidTransition)
}

func (r *JobRepository) ReclaimOrphan(ctx context.Context, id, errMsg string) error {
	query := `
	UPDATE taskforge.jobs
	SET status = $1, retry_count = retry_count + 1, error = $2,
	    worker_id = NULL, updated_at = now()
	WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusRetrying, errMsg, id, state.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to reclaim job %s: %w", id, err)
	}
	return nil
}

func (r *JobRepository) FindProcessingByWorker(ctx context.Context, workerID string, limit int) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + `
	FROM taskforge.jobs
	WHERE status = $1 AND worker_id = $2
	ORDER BY started_at ASC
	LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, state.StatusProcessing, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find processing jobs for worker %s: %w", workerID, err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) CountByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM taskforge.jobs GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[state.JobStatus]int, len(state.AllStatuses))
	for _, s := range state.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status state.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID, &job.Name, &job.Type, &job.Payload, &job.Priority, &job.Status,
		&job.MaxRetries, &job.RetryDelayMs, &job.RetryCount, &job.ScheduledAt,
		&job.ScheduleID, &job.WorkerID, &job.StartedAt, &job.CompletedAt,
		&job.Result, &job.Error, &job.WebhookURL, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func requireRowAffected(res sql.Result, sentinel error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel
	}
	return nil
}

func paginate[T any](items []T, totalItems, page, pageSize int) *models.PaginationResult[T] {
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return &models.PaginationResult[T]{
		Items:           items,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
