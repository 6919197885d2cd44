package repository

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/models"
)

// WebhookEventRepository is the durable-store contract for the notification
// outbox. Attempt bookkeeping lives entirely in MarkSuccess / MarkFailure so
// that the invariant "failed iff attempts reached maxAttempts without a 2xx"
// holds in a single write.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error

	GetByID(ctx context.Context, id string) (*models.WebhookEvent, error)

	ListByJob(ctx context.Context, jobID string) ([]models.WebhookEvent, error)

	// FindRetryable returns up to limit events with status pending or
	// retrying and attempts < maxAttempts, oldest first.
	FindRetryable(ctx context.Context, limit int) ([]models.WebhookEvent, error)

	// MarkSuccess records a 2xx delivery: attempts+1, status=success,
	// lastStatusCode, completedAt.
	MarkSuccess(ctx context.Context, id string, statusCode int, at time.Time) error

	// MarkFailure records a failed attempt: attempts+1, lastError, the
	// status code when one was received, and status retrying or failed
	// depending on whether attempts have reached maxAttempts.
	MarkFailure(ctx context.Context, id string, statusCode *int, errMsg string, at time.Time) error

	// MarkRetrying flags the event before a retry attempt is executed.
	MarkRetrying(ctx context.Context, id string) error
}
