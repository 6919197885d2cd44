package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

const workerColumns = `id, name, hostname, pid, status, concurrency, active_jobs,
	processed_count, failed_count, last_heartbeat, started_at, stopped_at`

type WorkerRepository struct {
	db *sql.DB
}

func NewWorkerRepository(db *sql.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

func (r *WorkerRepository) Register(ctx context.Context, worker *models.Worker) error {
	query := `
	INSERT INTO taskforge.workers
		(id, name, hostname, pid, status, concurrency, active_jobs,
		 processed_count, failed_count, last_heartbeat, started_at)
	VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		worker.ID, worker.Name, worker.Hostname, worker.PID, worker.Status,
		worker.Concurrency, worker.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}
	return nil
}

func (r *WorkerRepository) GetByID(ctx context.Context, id string) (*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM taskforge.workers WHERE id = $1`

	worker, err := scanWorker(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load worker %s: %w", id, err)
	}
	return worker, nil
}

func (r *WorkerRepository) List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Worker], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var totalItems int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM taskforge.workers`).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("failed to count workers: %w", err)
	}

	query := `SELECT ` + workerColumns + `
	FROM taskforge.workers
	ORDER BY started_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, *worker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	return paginate(workers, totalItems, page, pageSize), nil
}

// Heartbeat keeps lastHeartbeat non-decreasing even if ticks are delivered
// out of order.
func (r *WorkerRepository) Heartbeat(ctx context.Context, id string, now time.Time) error {
	query := `
	UPDATE taskforge.workers
	SET last_heartbeat = GREATEST(last_heartbeat, $1)
	WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to heartbeat worker %s: %w", id, err)
	}
	return nil
}

func (r *WorkerRepository) SetActiveJobs(ctx context.Context, id string, active int) error {
	query := `
	UPDATE taskforge.workers
	SET active_jobs = $1, status = $2
	WHERE id = $3 AND status <> $4
	`
	status := state.WorkerActive
	if active == 0 {
		status = state.WorkerIdle
	}
	_, err := r.db.ExecContext(ctx, query, active, status, id, state.WorkerStopped)
	if err != nil {
		return fmt.Errorf("failed to update active jobs for worker %s: %w", id, err)
	}
	return nil
}

func (r *WorkerRepository) RecordOutcome(ctx context.Context, id string, failed bool) error {
	column := "processed_count"
	if failed {
		column = "failed_count"
	}
	query := fmt.Sprintf(`
	UPDATE taskforge.workers
	SET %s = %s + 1
	WHERE id = $1
	`, column, column)
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record outcome for worker %s: %w", id, err)
	}
	return nil
}

func (r *WorkerRepository) MarkStopped(ctx context.Context, id string, stoppedAt time.Time) error {
	query := `
	UPDATE taskforge.workers
	SET status = $1, stopped_at = $2, active_jobs = 0
	WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, state.WorkerStopped, stoppedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark worker %s stopped: %w", id, err)
	}
	return nil
}

func (r *WorkerRepository) FindStale(ctx context.Context, cutoff time.Time) ([]models.Worker, error) {
	query := `SELECT ` + workerColumns + `
	FROM taskforge.workers
	WHERE status IN ($1, $2) AND last_heartbeat < $3
	ORDER BY last_heartbeat ASC`

	rows, err := r.db.QueryContext(ctx, query, state.WorkerActive, state.WorkerIdle, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale workers: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, *worker)
	}
	return workers, rows.Err()
}

func (r *WorkerRepository) CountActive(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM taskforge.workers WHERE status IN ($1, $2)`

	var count int
	if err := r.db.QueryRowContext(ctx, query, state.WorkerActive, state.WorkerIdle).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active workers: %w", err)
	}
	return count, nil
}

func scanWorker(row rowScanner) (*models.Worker, error) {
	var worker models.Worker
	err := row.Scan(
		&worker.ID, &worker.Name, &worker.Hostname, &worker.PID, &worker.Status,
		&worker.Concurrency, &worker.ActiveJobs, &worker.ProcessedCount,
		&worker.FailedCount, &worker.LastHeartbeat, &worker.StartedAt, &worker.StoppedAt,
	)
	if err != nil {
		return nil, err
	}
	return &worker, nil
}
