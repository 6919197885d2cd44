package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/mocks"
	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

type recordingNotifier struct {
	completed []string
	failed    []string
}

func (n *recordingNotifier) NotifyCompleted(ctx context.Context, job *models.Job, result json.RawMessage) {
	n.completed = append(n.completed, job.ID)
}

func (n *recordingNotifier) NotifyFailed(ctx context.Context, job *models.Job, errMsg string) {
	n.failed = append(n.failed, job.ID)
}

func testJob(retryCount, maxRetries int) *models.Job {
	return &models.Job{
		ID:           "job-1",
		Name:         "test job",
		Type:         "echo",
		Payload:      json.RawMessage(`{"x":1}`),
		Priority:     models.PriorityNormal,
		Status:       state.StatusQueued,
		MaxRetries:   maxRetries,
		RetryDelayMs: 100,
		RetryCount:   retryCount,
		CreatedAt:    time.Now(),
	}
}

func TestProcessSuccess(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	notifier := &recordingNotifier{}

	var completedWorker string
	var completedResult json.RawMessage
	jobs.MarkCompletedFunc = func(ctx context.Context, id, workerID string, result json.RawMessage) error {
		completedWorker = workerID
		completedResult = result
		return nil
	}
	var indexCleared bool
	q.MarkCompletedFunc = func(ctx context.Context, jobID string) error {
		indexCleared = true
		return nil
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		return job.Payload, nil
	}))

	p := New(jobs, &mocks.MockDeadLetterRepository{}, q, registry, notifier)

	job := testJob(0, 3)
	url := "http://example.com/hook"
	job.WebhookURL = &url

	err := p.Process(ctx, job, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "worker-1", completedWorker)
	assert.JSONEq(t, `{"x":1}`, string(completedResult))
	assert.True(t, indexCleared)
	assert.Equal(t, []string{"job-1"}, notifier.completed)
	assert.Empty(t, notifier.failed)
}

func TestProcessRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}

	var retryErr string
	jobs.MarkRetryingFunc = func(ctx context.Context, id, errMsg string) error {
		retryErr = errMsg
		return nil
	}
	var requeueDelay time.Duration
	q.RequeueFunc = func(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error {
		requeueDelay = delay
		return nil
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		return nil, errors.New("boom")
	}))

	p := New(jobs, &mocks.MockDeadLetterRepository{}, q, registry, &recordingNotifier{})

	// Second attempt: backoff = 100ms * 2^1.
	job := testJob(1, 3)
	err := p.Process(ctx, job, "worker-1")
	require.Error(t, err)
	assert.Equal(t, "boom", retryErr)
	assert.Equal(t, 200*time.Millisecond, requeueDelay)
}

func TestProcessExhaustedRetriesGoesToDeadLetter(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	dlq := &mocks.MockDeadLetterRepository{}
	notifier := &recordingNotifier{}

	var failedErr string
	jobs.MarkFailedFunc = func(ctx context.Context, id, workerID, errMsg string) error {
		failedErr = errMsg
		return nil
	}
	var dlqEntry *models.DeadLetterJob
	dlq.CreateFunc = func(ctx context.Context, entry *models.DeadLetterJob) error {
		dlqEntry = entry
		return nil
	}
	var movedToDLQ bool
	q.MoveToDLQFunc = func(ctx context.Context, jobID, reason string) error {
		movedToDLQ = true
		return nil
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		return nil, errors.New("always fails")
	}))

	p := New(jobs, dlq, q, registry, notifier)

	job := testJob(3, 3)
	url := "http://example.com/hook"
	job.WebhookURL = &url

	err := p.Process(ctx, job, "worker-1")
	require.Error(t, err)
	assert.Equal(t, "always fails", failedErr)
	assert.True(t, movedToDLQ)

	require.NotNil(t, dlqEntry)
	assert.Equal(t, "job-1", dlqEntry.OriginalJobID)
	assert.Equal(t, 4, dlqEntry.FailureCount, "failureCount counts all attempts including the last")
	assert.JSONEq(t, `{"x":1}`, string(dlqEntry.JobPayload))
	assert.Equal(t, []string{"job-1"}, notifier.failed)
	assert.Empty(t, notifier.completed)
}

func TestProcessMissingHandlerFailsPermanently(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}
	dlq := &mocks.MockDeadLetterRepository{}

	var failedErr string
	jobs.MarkFailedFunc = func(ctx context.Context, id, workerID, errMsg string) error {
		failedErr = errMsg
		return nil
	}
	var dlqEntry *models.DeadLetterJob
	dlq.CreateFunc = func(ctx context.Context, entry *models.DeadLetterJob) error {
		dlqEntry = entry
		return nil
	}

	p := New(jobs, dlq, &mocks.MockQueueManager{}, NewRegistry(), &recordingNotifier{})

	job := testJob(0, 3)
	job.Type = "unknown"

	err := p.Process(ctx, job, "worker-1")
	require.Error(t, err)
	assert.Contains(t, failedErr, "no handler for type unknown")
	require.NotNil(t, dlqEntry, "missing handler must dead-letter on first occurrence")
	assert.Equal(t, 1, dlqEntry.FailureCount)
}

func TestProcessDiscardsLateResultAfterReclaim(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	notifier := &recordingNotifier{}

	jobs.MarkCompletedFunc = func(ctx context.Context, id, workerID string, result json.RawMessage) error {
		return repository.ErrInvalidTransition
	}
	var indexCleared bool
	q.MarkCompletedFunc = func(ctx context.Context, jobID string) error {
		indexCleared = true
		return nil
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		return json.RawMessage(`"done"`), nil
	}))

	p := New(jobs, &mocks.MockDeadLetterRepository{}, q, registry, notifier)

	job := testJob(0, 3)
	url := "http://example.com/hook"
	job.WebhookURL = &url

	err := p.Process(ctx, job, "worker-1")
	require.NoError(t, err)
	assert.False(t, indexCleared, "reclaimed job must not be touched in the index")
	assert.Empty(t, notifier.completed, "discarded result must not notify")
}

func TestProcessReportsNotStartedWhenTransitionFails(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}

	jobs.MarkProcessingFunc = func(ctx context.Context, id, workerID string, startedAt time.Time) error {
		return errors.New("db down")
	}
	var completed, retried, failed bool
	jobs.MarkCompletedFunc = func(ctx context.Context, id, workerID string, result json.RawMessage) error {
		completed = true
		return nil
	}
	jobs.MarkRetryingFunc = func(ctx context.Context, id, errMsg string) error {
		retried = true
		return nil
	}
	jobs.MarkFailedFunc = func(ctx context.Context, id, workerID, errMsg string) error {
		failed = true
		return nil
	}

	var handlerRan bool
	registry := NewRegistry()
	require.NoError(t, registry.Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		handlerRan = true
		return nil, nil
	}))

	p := New(jobs, &mocks.MockDeadLetterRepository{}, q, registry, &recordingNotifier{})

	err := p.Process(ctx, testJob(0, 3), "worker-1")
	require.ErrorIs(t, err, ErrNotStarted)
	assert.False(t, handlerRan, "the handler must not run when the transition fails")
	assert.False(t, completed)
	assert.False(t, retried)
	assert.False(t, failed)
}

func TestProcessRecoversFromHandlerPanic(t *testing.T) {
	ctx := context.Background()
	jobs := &mocks.MockJobRepository{}

	var retried bool
	jobs.MarkRetryingFunc = func(ctx context.Context, id, errMsg string) error {
		retried = true
		return nil
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register("echo", func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		panic("handler exploded")
	}))

	p := New(jobs, &mocks.MockDeadLetterRepository{}, &mocks.MockQueueManager{}, registry, &recordingNotifier{})

	err := p.Process(ctx, testJob(0, 3), "worker-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
	assert.True(t, retried)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		baseMs   int64
		attempt  int
		expected time.Duration
	}{
		{100, 0, 100 * time.Millisecond},
		{100, 1, 200 * time.Millisecond},
		{100, 2, 400 * time.Millisecond},
		{1000, 5, 32 * time.Second},
		{1000, 6, 60 * time.Second},
		{1000, 20, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Backoff(tt.baseMs, tt.attempt),
			"base=%dms attempt=%d", tt.baseMs, tt.attempt)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	handler := func(ctx context.Context, job *models.Job) (json.RawMessage, error) { return nil, nil }

	require.NoError(t, registry.Register("echo", handler))
	assert.Error(t, registry.Register("echo", handler))
	assert.Error(t, registry.Register("", handler))
	assert.Error(t, registry.Register("nilfn", nil))
	assert.True(t, registry.Exists("echo"))
	assert.False(t, registry.Exists("other"))
}
