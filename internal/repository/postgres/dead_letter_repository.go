package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
)

const deadLetterColumns = `id, original_job_id, job_name, job_type, job_payload, job_priority,
	failure_reason, failure_count, last_error, error_stack, worker_id,
	original_created_at, failed_at`

type DeadLetterRepository struct {
	db *sql.DB
}

func NewDeadLetterRepository(db *sql.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

func (r *DeadLetterRepository) Create(ctx context.Context, entry *models.DeadLetterJob) error {
	query := `
	INSERT INTO taskforge.dead_letter_jobs
		(id, original_job_id, job_name, job_type, job_payload, job_priority,
		 failure_reason, failure_count, last_error, error_stack, worker_id,
		 original_created_at, failed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OriginalJobID, entry.JobName, entry.JobType, entry.JobPayload,
		entry.JobPriority, entry.FailureReason, entry.FailureCount, entry.LastError,
		entry.ErrorStack, entry.WorkerID, entry.OriginalCreatedAt, entry.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead-letter entry: %w", err)
	}
	return nil
}

func (r *DeadLetterRepository) GetByID(ctx context.Context, id string) (*models.DeadLetterJob, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM taskforge.dead_letter_jobs WHERE id = $1`

	entry, err := scanDeadLetter(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dead-letter entry %s: %w", id, err)
	}
	return entry, nil
}

func (r *DeadLetterRepository) List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.DeadLetterJob], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var totalItems int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM taskforge.dead_letter_jobs`).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("failed to count dead-letter entries: %w", err)
	}

	query := `SELECT ` + deadLetterColumns + `
	FROM taskforge.dead_letter_jobs
	ORDER BY failed_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter entries: %w", err)
	}
	defer rows.Close()

	var entries []models.DeadLetterJob
	for rows.Next() {
		entry, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead-letter entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list dead-letter entries: %w", err)
	}

	return paginate(entries, totalItems, page, pageSize), nil
}

func (r *DeadLetterRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM taskforge.dead_letter_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dead-letter entry %s: %w", id, err)
	}
	return requireRowAffected(res, repository.ErrNotFound)
}

func (r *DeadLetterRepository) Stats(ctx context.Context) (*models.DeadLetterStats, error) {
	stats := &models.DeadLetterStats{ByType: make(map[string]int)}

	query := `SELECT job_type, COUNT(*) FROM taskforge.dead_letter_jobs GROUP BY job_type`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dead-letter stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobType string
		var count int
		if err := rows.Scan(&jobType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan dead-letter stats: %w", err)
		}
		stats.ByType[jobType] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to aggregate dead-letter stats: %w", err)
	}

	boundsQuery := `SELECT MIN(failed_at), MAX(failed_at) FROM taskforge.dead_letter_jobs`
	if err := r.db.QueryRowContext(ctx, boundsQuery).Scan(&stats.OldestAt, &stats.NewestAt); err != nil {
		return nil, fmt.Errorf("failed to read dead-letter bounds: %w", err)
	}
	return stats, nil
}

func scanDeadLetter(row rowScanner) (*models.DeadLetterJob, error) {
	var entry models.DeadLetterJob
	err := row.Scan(
		&entry.ID, &entry.OriginalJobID, &entry.JobName, &entry.JobType,
		&entry.JobPayload, &entry.JobPriority, &entry.FailureReason, &entry.FailureCount,
		&entry.LastError, &entry.ErrorStack, &entry.WorkerID,
		&entry.OriginalCreatedAt, &entry.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
