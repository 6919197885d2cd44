package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
)

const scheduleColumns = `id, name, cron_expr, timezone, enabled, job_type, job_payload,
	job_priority, next_run_at, last_run_at, run_count, created_at, updated_at`

type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	query := `
	INSERT INTO taskforge.schedules
		(id, name, cron_expr, timezone, enabled, job_type, job_payload, job_priority,
		 next_run_at, run_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, now(), now())
	`
	_, err := r.db.ExecContext(ctx, query,
		schedule.ID, schedule.Name, schedule.CronExpr, schedule.Timezone, schedule.Enabled,
		schedule.JobType, schedule.JobPayload, schedule.JobPriority, schedule.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM taskforge.schedules WHERE id = $1`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %s: %w", id, err)
	}
	return schedule, nil
}

func (r *ScheduleRepository) List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Schedule], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var totalItems int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM taskforge.schedules`).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("failed to count schedules: %w", err)
	}

	query := `SELECT ` + scheduleColumns + `
	FROM taskforge.schedules
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	return paginate(schedules, totalItems, page, pageSize), nil
}

func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	query := `
	UPDATE taskforge.schedules
	SET name = $1, cron_expr = $2, timezone = $3, job_type = $4, job_payload = $5,
	    job_priority = $6, next_run_at = $7, updated_at = now()
	WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		schedule.Name, schedule.CronExpr, schedule.Timezone, schedule.JobType,
		schedule.JobPayload, schedule.JobPriority, schedule.NextRunAt, schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule %s: %w", schedule.ID, err)
	}
	return requireRowAffected(res, repository.ErrNotFound)
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM taskforge.schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	return requireRowAffected(res, repository.ErrNotFound)
}

func (r *ScheduleRepository) SetEnabled(ctx context.Context, id string, enabled bool, nextRunAt *time.Time) error {
	query := `
	UPDATE taskforge.schedules
	SET enabled = $1, next_run_at = $2, updated_at = now()
	WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, enabled, nextRunAt, id)
	if err != nil {
		return fmt.Errorf("failed to set schedule %s enabled=%t: %w", id, enabled, err)
	}
	return requireRowAffected(res, repository.ErrNotFound)
}

func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
	FROM taskforge.schedules
	WHERE enabled = TRUE AND next_run_at IS NOT NULL AND next_run_at <= $1
	ORDER BY next_run_at ASC
	LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepository) RecordRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error {
	query := `
	UPDATE taskforge.schedules
	SET last_run_at = $1, next_run_at = $2, run_count = run_count + 1, updated_at = now()
	WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, lastRunAt, nextRunAt, id)
	if err != nil {
		return fmt.Errorf("failed to record run for schedule %s: %w", id, err)
	}
	return nil
}

func (r *ScheduleRepository) AdvanceNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	query := `
	UPDATE taskforge.schedules
	SET next_run_at = $1, updated_at = now()
	WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, nextRunAt, id)
	if err != nil {
		return fmt.Errorf("failed to advance schedule %s: %w", id, err)
	}
	return nil
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var schedule models.Schedule
	err := row.Scan(
		&schedule.ID, &schedule.Name, &schedule.CronExpr, &schedule.Timezone,
		&schedule.Enabled, &schedule.JobType, &schedule.JobPayload, &schedule.JobPriority,
		&schedule.NextRunAt, &schedule.LastRunAt, &schedule.RunCount,
		&schedule.CreatedAt, &schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}
