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

const webhookEventColumns = `id, job_id, job_type, url, payload, status, attempts, max_attempts,
	last_status_code, last_error, last_attempt_at, completed_at, created_at`

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	query := `
	INSERT INTO taskforge.webhook_events
		(id, job_id, job_type, url, payload, status, attempts, max_attempts, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, 0, $7, now())
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.JobID, event.JobType, event.URL, event.Payload,
		event.Status, event.MaxAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM taskforge.webhook_events WHERE id = $1`

	event, err := scanWebhookEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook event %s: %w", id, err)
	}
	return event, nil
}

func (r *WebhookEventRepository) ListByJob(ctx context.Context, jobID string) ([]models.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + `
	FROM taskforge.webhook_events
	WHERE job_id = $1
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (r *WebhookEventRepository) FindRetryable(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + `
	FROM taskforge.webhook_events
	WHERE status IN ($1, $2) AND attempts < max_attempts
	ORDER BY created_at ASC
	LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, state.WebhookPending, state.WebhookRetrying, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find retryable webhook events: %w", err)
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (r *WebhookEventRepository) MarkSuccess(ctx context.Context, id string, statusCode int, at time.Time) error {
	query := `
	UPDATE taskforge.webhook_events
	SET status = $1, attempts = attempts + 1, last_status_code = $2,
	    last_error = NULL, last_attempt_at = $3, completed_at = $3
	WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, state.WebhookSuccess, statusCode, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event %s success: %w", id, err)
	}
	return nil
}

// MarkFailure flips the event to failed exactly when this attempt exhausts
// the budget; otherwise it stays retryable.
func (r *WebhookEventRepository) MarkFailure(ctx context.Context, id string, statusCode *int, errMsg string, at time.Time) error {
	query := `
	UPDATE taskforge.webhook_events
	SET attempts = attempts + 1,
	    last_status_code = $1,
	    last_error = $2,
	    last_attempt_at = $3,
	    status = CASE WHEN attempts + 1 >= max_attempts THEN $4::text ELSE $5::text END
	WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, statusCode, errMsg, at,
		state.WebhookFailed, state.WebhookRetrying, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event %s failure: %w", id, err)
	}
	return nil
}

func (r *WebhookEventRepository) MarkRetrying(ctx context.Context, id string) error {
	query := `
	UPDATE taskforge.webhook_events
	SET status = $1
	WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, state.WebhookRetrying, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event %s retrying: %w", id, err)
	}
	return nil
}

func scanWebhookEvent(row rowScanner) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := row.Scan(
		&event.ID, &event.JobID, &event.JobType, &event.URL, &event.Payload,
		&event.Status, &event.Attempts, &event.MaxAttempts, &event.LastStatusCode,
		&event.LastError, &event.LastAttemptAt, &event.CompletedAt, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
