package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/state"
)

// MockJobRepository implements repository.JobRepository with overridable
// function fields. Unset fields are no-ops.
type MockJobRepository struct {
	CreateFunc                 func(ctx context.Context, job *models.Job) error
	GetByIDFunc                func(ctx context.Context, id string) (*models.Job, error)
	ListFunc                   func(ctx context.Context, page, pageSize int, status *state.JobStatus) (*models.PaginationResult[models.Job], error)
	MarkQueuedFunc             func(ctx context.Context, id string) error
	MarkProcessingFunc         func(ctx context.Context, id, workerID string, startedAt time.Time) error
	MarkCompletedFunc          func(ctx context.Context, id, workerID string, result json.RawMessage) error
	MarkRetryingFunc           func(ctx context.Context, id, errMsg string) error
	MarkFailedFunc             func(ctx context.Context, id, workerID, errMsg string) error
	CancelFunc                 func(ctx context.Context, id string) error
	ReclaimOrphanFunc          func(ctx context.Context, id, errMsg string) error
	FindProcessingByWorkerFunc func(ctx context.Context, workerID string, limit int) ([]models.Job, error)
	CountByStatusFunc          func(ctx context.Context) (map[state.JobStatus]int, error)
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockJobRepository) List(ctx context.Context, page, pageSize int, status *state.JobStatus) (*models.PaginationResult[models.Job], error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page, pageSize, status)
	}
	return &models.PaginationResult[models.Job]{}, nil
}

func (m *MockJobRepository) MarkQueued(ctx context.Context, id string) error {
	if m.MarkQueuedFunc != nil {
		return m.MarkQueuedFunc(ctx, id)
	}
	return nil
}

func (m *MockJobRepository) MarkProcessing(ctx context.Context, id, workerID string, startedAt time.Time) error {
	if m.MarkProcessingFunc != nil {
		return m.MarkProcessingFunc(ctx, id, workerID, startedAt)
	}
	return nil
}

func (m *MockJobRepository) MarkCompleted(ctx context.Context, id, workerID string, result json.RawMessage) error {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, id, workerID, result)
	}
	return nil
}

func (m *MockJobRepository) MarkRetrying(ctx context.Context, id, errMsg string) error {
	if m.MarkRetryingFunc != nil {
		return m.MarkRetryingFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id, workerID, errMsg string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, workerID, errMsg)
	}
	return nil
}

func (m *MockJobRepository) Cancel(ctx context.Context, id string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id)
	}
	return nil
}

func (m *MockJobRepository) ReclaimOrphan(ctx context.Context, id, errMsg string) error {
	if m.ReclaimOrphanFunc != nil {
		return m.ReclaimOrphanFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockJobRepository) FindProcessingByWorker(ctx context.Context, workerID string, limit int) ([]models.Job, error) {
	if m.FindProcessingByWorkerFunc != nil {
		return m.FindProcessingByWorkerFunc(ctx, workerID, limit)
	}
	return nil, nil
}

func (m *MockJobRepository) CountByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	return map[state.JobStatus]int{}, nil
}

// MockScheduleRepository implements repository.ScheduleRepository.
type MockScheduleRepository struct {
	CreateFunc         func(ctx context.Context, schedule *models.Schedule) error
	GetByIDFunc        func(ctx context.Context, id string) (*models.Schedule, error)
	ListFunc           func(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Schedule], error)
	UpdateFunc         func(ctx context.Context, schedule *models.Schedule) error
	DeleteFunc         func(ctx context.Context, id string) error
	SetEnabledFunc     func(ctx context.Context, id string, enabled bool, nextRunAt *time.Time) error
	FindDueFunc        func(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error)
	RecordRunFunc      func(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error
	AdvanceNextRunFunc func(ctx context.Context, id string, nextRunAt time.Time) error
}

func (m *MockScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, schedule)
	}
	return nil
}

func (m *MockScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockScheduleRepository) List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Schedule], error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page, pageSize)
	}
	return &models.PaginationResult[models.Schedule]{}, nil
}

func (m *MockScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, schedule)
	}
	return nil
}

func (m *MockScheduleRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockScheduleRepository) SetEnabled(ctx context.Context, id string, enabled bool, nextRunAt *time.Time) error {
	if m.SetEnabledFunc != nil {
		return m.SetEnabledFunc(ctx, id, enabled, nextRunAt)
	}
	return nil
}

func (m *MockScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	if m.FindDueFunc != nil {
		return m.FindDueFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *MockScheduleRepository) RecordRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error {
	if m.RecordRunFunc != nil {
		return m.RecordRunFunc(ctx, id, lastRunAt, nextRunAt)
	}
	return nil
}

func (m *MockScheduleRepository) AdvanceNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	if m.AdvanceNextRunFunc != nil {
		return m.AdvanceNextRunFunc(ctx, id, nextRunAt)
	}
	return nil
}

// MockWorkerRepository implements repository.WorkerRepository.
type MockWorkerRepository struct {
	RegisterFunc      func(ctx context.Context, worker *models.Worker) error
	GetByIDFunc       func(ctx context.Context, id string) (*models.Worker, error)
	ListFunc          func(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Worker], error)
	HeartbeatFunc     func(ctx context.Context, id string, now time.Time) error
	SetActiveJobsFunc func(ctx context.Context, id string, active int) error
	RecordOutcomeFunc func(ctx context.Context, id string, failed bool) error
	MarkStoppedFunc   func(ctx context.Context, id string, stoppedAt time.Time) error
	FindStaleFunc     func(ctx context.Context, cutoff time.Time) ([]models.Worker, error)
	CountActiveFunc   func(ctx context.Context) (int, error)
}

func (m *MockWorkerRepository) Register(ctx context.Context, worker *models.Worker) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, worker)
	}
	return nil
}

func (m *MockWorkerRepository) GetByID(ctx context.Context, id string) (*models.Worker, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockWorkerRepository) List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Worker], error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page, pageSize)
	}
	return &models.PaginationResult[models.Worker]{}, nil
}

func (m *MockWorkerRepository) Heartbeat(ctx context.Context, id string, now time.Time) error {
	if m.HeartbeatFunc != nil {
		return m.HeartbeatFunc(ctx, id, now)
	}
	return nil
}

func (m *MockWorkerRepository) SetActiveJobs(ctx context.Context, id string, active int) error {
	if m.SetActiveJobsFunc != nil {
		return m.SetActiveJobsFunc(ctx, id, active)
	}
	return nil
}

func (m *MockWorkerRepository) RecordOutcome(ctx context.Context, id string, failed bool) error {
	if m.RecordOutcomeFunc != nil {
		return m.RecordOutcomeFunc(ctx, id, failed)
	}
	return nil
}

func (m *MockWorkerRepository) MarkStopped(ctx context.Context, id string, stoppedAt time.Time) error {
	if m.MarkStoppedFunc != nil {
		return m.MarkStoppedFunc(ctx, id, stoppedAt)
	}
	return nil
}

func (m *MockWorkerRepository) FindStale(ctx context.Context, cutoff time.Time) ([]models.Worker, error) {
	if m.FindStaleFunc != nil {
		return m.FindStaleFunc(ctx, cutoff)
	}
	return nil, nil
}

func (m *MockWorkerRepository) CountActive(ctx context.Context) (int, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx)
	}
	return 0, nil
}

// MockDeadLetterRepository implements repository.DeadLetterRepository.
type MockDeadLetterRepository struct {
	CreateFunc  func(ctx context.Context, entry *models.DeadLetterJob) error
	GetByIDFunc func(ctx context.Context, id string) (*models.DeadLetterJob, error)
	ListFunc    func(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.DeadLetterJob], error)
	DeleteFunc  func(ctx context.Context, id string) error
	StatsFunc   func(ctx context.Context) (*models.DeadLetterStats, error)
}

func (m *MockDeadLetterRepository) Create(ctx context.Context, entry *models.DeadLetterJob) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

func (m *MockDeadLetterRepository) GetByID(ctx context.Context, id string) (*models.DeadLetterJob, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockDeadLetterRepository) List(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.DeadLetterJob], error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page, pageSize)
	}
	return &models.PaginationResult[models.DeadLetterJob]{}, nil
}

func (m *MockDeadLetterRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockDeadLetterRepository) Stats(ctx context.Context) (*models.DeadLetterStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &models.DeadLetterStats{ByType: map[string]int{}}, nil
}

// MockWebhookEventRepository implements repository.WebhookEventRepository.
type MockWebhookEventRepository struct {
	CreateFunc        func(ctx context.Context, event *models.WebhookEvent) error
	GetByIDFunc       func(ctx context.Context, id string) (*models.WebhookEvent, error)
	ListByJobFunc     func(ctx context.Context, jobID string) ([]models.WebhookEvent, error)
	FindRetryableFunc func(ctx context.Context, limit int) ([]models.WebhookEvent, error)
	MarkSuccessFunc   func(ctx context.Context, id string, statusCode int, at time.Time) error
	MarkFailureFunc   func(ctx context.Context, id string, statusCode *int, errMsg string, at time.Time) error
	MarkRetryingFunc  func(ctx context.Context, id string) error
}

func (m *MockWebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	return nil
}

func (m *MockWebhookEventRepository) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockWebhookEventRepository) ListByJob(ctx context.Context, jobID string) ([]models.WebhookEvent, error) {
	if m.ListByJobFunc != nil {
		return m.ListByJobFunc(ctx, jobID)
	}
	return nil, nil
}

func (m *MockWebhookEventRepository) FindRetryable(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	if m.FindRetryableFunc != nil {
		return m.FindRetryableFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockWebhookEventRepository) MarkSuccess(ctx context.Context, id string, statusCode int, at time.Time) error {
	if m.MarkSuccessFunc != nil {
		return m.MarkSuccessFunc(ctx, id, statusCode, at)
	}
	return nil
}

func (m *MockWebhookEventRepository) MarkFailure(ctx context.Context, id string, statusCode *int, errMsg string, at time.Time) error {
	if m.MarkFailureFunc != nil {
		return m.MarkFailureFunc(ctx, id, statusCode, errMsg, at)
	}
	return nil
}

func (m *MockWebhookEventRepository) MarkRetrying(ctx context.Context, id string) error {
	if m.MarkRetryingFunc != nil {
		return m.MarkRetryingFunc(ctx, id)
	}
	return nil
}
