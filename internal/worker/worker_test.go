package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/mocks"
	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/processor"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	err       error
}

func (p *fakeProcessor) Process(ctx context.Context, job *models.Job, workerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, job.ID)
	return p.err
}

func (p *fakeProcessor) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.processed...)
}

func testOptions() Options {
	return Options{
		Name:              "test-worker",
		Concurrency:       1,
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		PromoteInterval:   20 * time.Millisecond,
	}
}

func TestWorkerProcessesDequeuedJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := &mocks.MockWorkerRepository{}
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	proc := &fakeProcessor{}

	var once sync.Once
	q.DequeueFunc = func(ctx context.Context) (string, bool, error) {
		var id string
		var ok bool
		once.Do(func() { id, ok = "job-1", true })
		return id, ok, nil
	}
	jobs.GetByIDFunc = func(ctx context.Context, id string) (*models.Job, error) {
		return &models.Job{ID: id, Type: "echo", Status: state.StatusQueued, Priority: models.PriorityNormal}, nil
	}
	var outcomeFailed *bool
	workers.RecordOutcomeFunc = func(ctx context.Context, id string, failed bool) error {
		outcomeFailed = &failed
		return nil
	}

	w := New(workers, jobs, q, proc, testOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(proc.ids()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"job-1"}, proc.ids())
	require.NotNil(t, outcomeFailed)
	assert.False(t, *outcomeFailed)
}

func TestWorkerSkipsOutcomeWhenJobNeverStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := &mocks.MockWorkerRepository{}
	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	proc := &fakeProcessor{err: processor.ErrNotStarted}

	var once sync.Once
	q.DequeueFunc = func(ctx context.Context) (string, bool, error) {
		var id string
		var ok bool
		once.Do(func() { id, ok = "job-1", true })
		return id, ok, nil
	}
	jobs.GetByIDFunc = func(ctx context.Context, id string) (*models.Job, error) {
		return &models.Job{ID: id, Type: "echo", Status: state.StatusQueued, Priority: models.PriorityNormal}, nil
	}
	var mu sync.Mutex
	outcomes := 0
	workers.RecordOutcomeFunc = func(ctx context.Context, id string, failed bool) error {
		mu.Lock()
		defer mu.Unlock()
		outcomes++
		return nil
	}

	w := New(workers, jobs, q, proc, testOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(proc.ids()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, outcomes, "a job that never started must not count as an outcome")
}

func TestWorkerDiscardsStaleReferences(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	proc := &fakeProcessor{}

	ids := make(chan string, 2)
	ids <- "missing-job"
	ids <- "cancelled-job"
	q.DequeueFunc = func(ctx context.Context) (string, bool, error) {
		select {
		case id := <-ids:
			return id, true, nil
		default:
			return "", false, nil
		}
	}
	jobs.GetByIDFunc = func(ctx context.Context, id string) (*models.Job, error) {
		if id == "missing-job" {
			return nil, repository.ErrNotFound
		}
		return &models.Job{ID: id, Status: state.StatusCancelled}, nil
	}

	w := New(&mocks.MockWorkerRepository{}, jobs, q, proc, testOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, proc.ids(), "stale references must never reach the processor")
}

func TestWorkerSurvivesHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := &mocks.MockJobRepository{}
	q := &mocks.MockQueueManager{}
	proc := &fakeProcessor{err: errors.New("handler blew up")}

	q.DequeueFunc = func(ctx context.Context) (string, bool, error) {
		return "job-1", true, nil
	}
	jobs.GetByIDFunc = func(ctx context.Context, id string) (*models.Job, error) {
		return &models.Job{ID: id, Status: state.StatusQueued}, nil
	}

	w := New(&mocks.MockWorkerRepository{}, jobs, q, proc, testOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(proc.ids()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done, "the worker loop must not die on handler errors")
}

func TestWorkerHeartbeatsAndPromotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := &mocks.MockWorkerRepository{}
	q := &mocks.MockQueueManager{}

	var mu sync.Mutex
	heartbeats := 0
	promotions := 0
	workers.HeartbeatFunc = func(ctx context.Context, id string, now time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		heartbeats++
		return nil
	}
	q.PromoteDelayedFunc = func(ctx context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		promotions++
		return 0, nil
	}

	w := New(workers, &mocks.MockJobRepository{}, q, &fakeProcessor{}, testOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return heartbeats >= 2 && promotions >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestWorkerMarksStoppedOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	workers := &mocks.MockWorkerRepository{}
	var mu sync.Mutex
	var stoppedID string
	workers.MarkStoppedFunc = func(ctx context.Context, id string, stoppedAt time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		stoppedID = id
		return nil
	}

	w := New(workers, &mocks.MockJobRepository{}, &mocks.MockQueueManager{}, &fakeProcessor{}, testOptions())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, w.ID(), stoppedID)
}

func TestWorkerRegistrationFailureIsFatal(t *testing.T) {
	workers := &mocks.MockWorkerRepository{}
	workers.RegisterFunc = func(ctx context.Context, worker *models.Worker) error {
		return errors.New("db down")
	}

	w := New(workers, &mocks.MockJobRepository{}, &mocks.MockQueueManager{}, &fakeProcessor{}, testOptions())
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register")
}
