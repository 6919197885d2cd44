package repository

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/models"
)

// ScheduleRepository is the durable-store contract for recurring job
// templates.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.Schedule) error

	GetByID(ctx context.Context, id string) (*models.Schedule, error)

	List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Schedule], error)

	// Update rewrites the mutable template fields (name, cron expression,
	// timezone, job template, next fire time).
	Update(ctx context.Context, schedule *models.Schedule) error

	Delete(ctx context.Context, id string) error

	// SetEnabled flips the enabled flag. nextRunAt must be nil when
	// disabling and non-nil when enabling.
	SetEnabled(ctx context.Context, id string, enabled bool, nextRunAt *time.Time) error

	// FindDue returns enabled schedules with nextRunAt <= now, ordered by
	// nextRunAt ascending.
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error)

	// RecordRun advances the firing state after a successful job creation:
	// lastRunAt, nextRunAt and runCount+1.
	RecordRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error

	// AdvanceNextRun moves nextRunAt forward without touching lastRunAt or
	// runCount. Used when job creation failed, so a broken firing is
	// skipped instead of replayed every tick.
	AdvanceNextRun(ctx context.Context, id string, nextRunAt time.Time) error
}
