package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/mocks"
	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/state"
)

type fakePinger struct{ err error }

func (p *fakePinger) PingContext(ctx context.Context) error { return p.err }

type noopLockManager struct{}

func (noopLockManager) Acquire(lockID int) error           { return nil }
func (noopLockManager) TryAcquire(lockID int) (bool, error) { return true, nil }
func (noopLockManager) Release(lockID int) error           { return nil }

type serverDeps struct {
	jobs       *mocks.MockJobRepository
	schedules  *mocks.MockScheduleRepository
	workers    *mocks.MockWorkerRepository
	deadLetter *mocks.MockDeadLetterRepository
	events     *mocks.MockWebhookEventRepository
	queue      *mocks.MockQueueManager
	db         *fakePinger
}

func newTestServer() (*Server, *serverDeps) {
	deps := &serverDeps{
		jobs:       &mocks.MockJobRepository{},
		schedules:  &mocks.MockScheduleRepository{},
		workers:    &mocks.MockWorkerRepository{},
		deadLetter: &mocks.MockDeadLetterRepository{},
		events:     &mocks.MockWebhookEventRepository{},
		queue:      &mocks.MockQueueManager{},
		db:         &fakePinger{},
	}
	executor := scheduler.NewExecutor(deps.schedules, deps.jobs, deps.queue, noopLockManager{}, time.Second, 100)
	srv := NewServer(deps.jobs, deps.schedules, deps.workers, deps.deadLetter, deps.events, deps.queue, executor, deps.db)
	return srv, deps
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestCreateJobEnqueuesImmediately(t *testing.T) {
	srv, deps := newTestServer()

	var created *models.Job
	deps.jobs.CreateFunc = func(ctx context.Context, job *models.Job) error {
		created = job
		return nil
	}
	var enqueued string
	deps.queue.EnqueueFunc = func(ctx context.Context, jobID string, priority models.Priority) error {
		enqueued = jobID
		return nil
	}
	var queued string
	deps.jobs.MarkQueuedFunc = func(ctx context.Context, id string) error {
		queued = id
		return nil
	}

	rec := doJSON(t, srv, http.MethodPost, "/jobs", map[string]any{
		"name":     "resize avatar",
		"type":     "image.resize",
		"priority": "HIGH",
		"payload":  map[string]any{"width": 128},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.Equal(t, models.PriorityHigh, created.Priority)
	assert.Equal(t, 3, created.MaxRetries)
	assert.Equal(t, int64(1000), created.RetryDelayMs)
	assert.Equal(t, created.ID, enqueued)
	assert.Equal(t, created.ID, queued)

	var resp models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, state.StatusQueued, resp.Status)
}

func TestCreateJobWithFutureScheduledAtUsesDelayedIndex(t *testing.T) {
	srv, deps := newTestServer()

	var delayed bool
	deps.queue.EnqueueDelayedFunc = func(ctx context.Context, jobID string, fireAt time.Time, priority models.Priority) error {
		delayed = true
		return nil
	}
	var ready bool
	deps.queue.EnqueueFunc = func(ctx context.Context, jobID string, priority models.Priority) error {
		ready = true
		return nil
	}

	rec := doJSON(t, srv, http.MethodPost, "/jobs", map[string]any{
		"name":        "weekly digest",
		"type":        "email.digest",
		"scheduledAt": time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, delayed)
	assert.False(t, ready)
}

func TestCreateJobValidation(t *testing.T) {
	srv, _ := newTestServer()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing type", map[string]any{"name": "x"}},
		{"missing name", map[string]any{"type": "x"}},
		{"unknown priority", map[string]any{"name": "x", "type": "x", "priority": "URGENT"}},
		{"negative maxRetries", map[string]any{"name": "x", "type": "x", "maxRetries": -1}},
		{"retry delay below minimum", map[string]any{"name": "x", "type": "x", "retryDelayMs": 50}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/jobs", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv, deps := newTestServer()
	deps.jobs.GetByIDFunc = func(ctx context.Context, id string) (*models.Job, error) {
		return nil, repository.ErrNotFound
	}

	rec := doJSON(t, srv, http.MethodGet, "/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJobConflict(t *testing.T) {
	srv, deps := newTestServer()
	deps.jobs.CancelFunc = func(ctx context.Context, id string) error {
		return repository.ErrInvalidTransition
	}

	rec := doJSON(t, srv, http.MethodPost, "/jobs/job-1/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateScheduleComputesNextRun(t *testing.T) {
	srv, deps := newTestServer()

	var created *models.Schedule
	deps.schedules.CreateFunc = func(ctx context.Context, schedule *models.Schedule) error {
		created = schedule
		return nil
	}

	rec := doJSON(t, srv, http.MethodPost, "/schedules", map[string]any{
		"name":     "nightly cleanup",
		"cronExpr": "0 3 * * *",
		"timezone": "UTC",
		"jobType":  "cleanup",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.True(t, created.Enabled)
	require.NotNil(t, created.NextRunAt)
	assert.True(t, created.NextRunAt.After(time.Now()))
}

func TestCreateScheduleRejectsBadCron(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/schedules", map[string]any{
		"name":     "broken",
		"cronExpr": "not a cron",
		"jobType":  "cleanup",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisableScheduleClearsNextRun(t *testing.T) {
	srv, deps := newTestServer()

	next := time.Now().Add(time.Hour)
	deps.schedules.GetByIDFunc = func(ctx context.Context, id string) (*models.Schedule, error) {
		return &models.Schedule{ID: id, CronExpr: "* * * * *", Timezone: "UTC", Enabled: true, NextRunAt: &next}, nil
	}
	var gotEnabled bool
	var gotNext *time.Time
	deps.schedules.SetEnabledFunc = func(ctx context.Context, id string, enabled bool, nextRunAt *time.Time) error {
		gotEnabled = enabled
		gotNext = nextRunAt
		return nil
	}

	rec := doJSON(t, srv, http.MethodPost, "/schedules/sched-1/disable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gotEnabled)
	assert.Nil(t, gotNext)
}

func TestTriggerScheduleCreatesJobWithoutAdvancing(t *testing.T) {
	srv, deps := newTestServer()

	deps.schedules.GetByIDFunc = func(ctx context.Context, id string) (*models.Schedule, error) {
		return &models.Schedule{
			ID:          id,
			Name:        "report",
			CronExpr:    "0 9 * * 1",
			Timezone:    "UTC",
			JobType:     "report.generate",
			JobPriority: models.PriorityNormal,
		}, nil
	}
	var created *models.Job
	deps.jobs.CreateFunc = func(ctx context.Context, job *models.Job) error {
		created = job
		return nil
	}
	var advanced bool
	deps.schedules.RecordRunFunc = func(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error {
		advanced = true
		return nil
	}

	rec := doJSON(t, srv, http.MethodPost, "/schedules/sched-1/trigger", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.Equal(t, "report (scheduled)", created.Name)
	assert.False(t, advanced, "a manual trigger must not touch the firing state")
}

func TestScheduleNextRunsPreview(t *testing.T) {
	srv, deps := newTestServer()

	deps.schedules.GetByIDFunc = func(ctx context.Context, id string) (*models.Schedule, error) {
		return &models.Schedule{ID: id, CronExpr: "0 * * * *", Timezone: "UTC"}, nil
	}

	rec := doJSON(t, srv, http.MethodGet, "/schedules/sched-1/next-runs?count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		NextRuns []time.Time `json:"nextRuns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.NextRuns, 3)
	assert.True(t, resp.NextRuns[0].Before(resp.NextRuns[1]))
	assert.True(t, resp.NextRuns[1].Before(resp.NextRuns[2]))
}

func TestRetryDeadLetterRecreatesJob(t *testing.T) {
	srv, deps := newTestServer()

	deps.deadLetter.GetByIDFunc = func(ctx context.Context, id string) (*models.DeadLetterJob, error) {
		return &models.DeadLetterJob{
			ID:            id,
			OriginalJobID: "job-orig",
			JobName:       "send invoice",
			JobType:       "invoice.send",
			JobPayload:    json.RawMessage(`{"invoice":42}`),
			JobPriority:   models.PriorityCritical,
		}, nil
	}
	var created *models.Job
	deps.jobs.CreateFunc = func(ctx context.Context, job *models.Job) error {
		created = job
		return nil
	}
	var removedFromDLQ string
	deps.queue.RemoveFromDLQFunc = func(ctx context.Context, jobID string) error {
		removedFromDLQ = jobID
		return nil
	}
	var deleted string
	deps.deadLetter.DeleteFunc = func(ctx context.Context, id string) error {
		deleted = id
		return nil
	}

	rec := doJSON(t, srv, http.MethodPost, "/dead-letter/dlq-1/retry", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, created)
	assert.Equal(t, "send invoice", created.Name)
	assert.Equal(t, models.PriorityCritical, created.Priority)
	assert.NotEqual(t, "job-orig", created.ID, "retry must mint a new job id")
	assert.Equal(t, "job-orig", removedFromDLQ)
	assert.Equal(t, "dlq-1", deleted)
}

func TestQueueMetrics(t *testing.T) {
	srv, deps := newTestServer()

	deps.queue.StatsFunc = func(ctx context.Context) (*queue.Stats, error) {
		return &queue.Stats{Ready: 3, Delayed: 1, Processing: 2, DeadLetter: 4}, nil
	}

	rec := doJSON(t, srv, http.MethodGet, "/metrics/queues", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats queue.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Ready)
	assert.Equal(t, int64(4), stats.DeadLetter)
}

func TestReadinessStates(t *testing.T) {
	t.Run("healthy with an active worker", func(t *testing.T) {
		srv, deps := newTestServer()
		deps.workers.CountActiveFunc = func(ctx context.Context) (int, error) { return 2, nil }

		rec := doJSON(t, srv, http.MethodGet, "/health/ready", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"healthy"`)
	})

	t.Run("degraded without workers", func(t *testing.T) {
		srv, deps := newTestServer()
		deps.workers.CountActiveFunc = func(ctx context.Context) (int, error) { return 0, nil }

		rec := doJSON(t, srv, http.MethodGet, "/health/ready", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"degraded"`)
	})

	t.Run("unhealthy when the database is down", func(t *testing.T) {
		srv, deps := newTestServer()
		deps.db.err = errors.New("connection refused")

		rec := doJSON(t, srv, http.MethodGet, "/health/ready", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unhealthy"`)
	})

	t.Run("unhealthy when the queue is down", func(t *testing.T) {
		srv, deps := newTestServer()
		deps.queue.PingFunc = func(ctx context.Context) error { return errors.New("redis gone") }

		rec := doJSON(t, srv, http.MethodGet, "/health/ready", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestLiveness(t *testing.T) {
	srv, _ := newTestServer()
	rec := doJSON(t, srv, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
