package repository

import (
	"context"

	"github.com/taskforge/taskforge/internal/models"
)

// DeadLetterRepository is the durable-store contract for the dead-letter
// archive.
type DeadLetterRepository interface {
	Create(ctx context.Context, entry *models.DeadLetterJob) error

	GetByID(ctx context.Context, id string) (*models.DeadLetterJob, error)

	List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.DeadLetterJob], error)

	Delete(ctx context.Context, id string) error

	Stats(ctx context.Context) (*models.DeadLetterStats, error)
}
