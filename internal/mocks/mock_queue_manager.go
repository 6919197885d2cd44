package mocks

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/queue"
)

// MockQueueManager implements queue.Manager with overridable function
// fields. Unset fields are no-ops.
type MockQueueManager struct {
	EnqueueFunc        func(ctx context.Context, jobID string, priority models.Priority) error
	EnqueueDelayedFunc func(ctx context.Context, jobID string, fireAt time.Time, priority models.Priority) error
	DequeueFunc        func(ctx context.Context) (string, bool, error)
	PromoteDelayedFunc func(ctx context.Context) (int, error)
	MarkProcessingFunc func(ctx context.Context, jobID, workerID string) error
	MarkCompletedFunc  func(ctx context.Context, jobID string) error
	RequeueFunc        func(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error
	MoveToDLQFunc      func(ctx context.Context, jobID, reason string) error
	RemoveFromDLQFunc  func(ctx context.Context, jobID string) error
	StatsFunc          func(ctx context.Context) (*queue.Stats, error)
	PingFunc           func(ctx context.Context) error
}

func (m *MockQueueManager) Enqueue(ctx context.Context, jobID string, priority models.Priority) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, jobID, priority)
	}
	return nil
}

func (m *MockQueueManager) EnqueueDelayed(ctx context.Context, jobID string, fireAt time.Time, priority models.Priority) error {
	if m.EnqueueDelayedFunc != nil {
		return m.EnqueueDelayedFunc(ctx, jobID, fireAt, priority)
	}
	return nil
}

func (m *MockQueueManager) Dequeue(ctx context.Context) (string, bool, error) {
	if m.DequeueFunc != nil {
		return m.DequeueFunc(ctx)
	}
	return "", false, nil
}

func (m *MockQueueManager) PromoteDelayed(ctx context.Context) (int, error) {
	if m.PromoteDelayedFunc != nil {
		return m.PromoteDelayedFunc(ctx)
	}
	return 0, nil
}

func (m *MockQueueManager) MarkProcessing(ctx context.Context, jobID, workerID string) error {
	if m.MarkProcessingFunc != nil {
		return m.MarkProcessingFunc(ctx, jobID, workerID)
	}
	return nil
}

func (m *MockQueueManager) MarkCompleted(ctx context.Context, jobID string) error {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, jobID)
	}
	return nil
}

func (m *MockQueueManager) Requeue(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error {
	if m.RequeueFunc != nil {
		return m.RequeueFunc(ctx, jobID, priority, delay)
	}
	return nil
}

func (m *MockQueueManager) MoveToDLQ(ctx context.Context, jobID, reason string) error {
	if m.MoveToDLQFunc != nil {
		return m.MoveToDLQFunc(ctx, jobID, reason)
	}
	return nil
}

func (m *MockQueueManager) RemoveFromDLQ(ctx context.Context, jobID string) error {
	if m.RemoveFromDLQFunc != nil {
		return m.RemoveFromDLQFunc(ctx, jobID)
	}
	return nil
}

func (m *MockQueueManager) Stats(ctx context.Context) (*queue.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &queue.Stats{}, nil
}

func (m *MockQueueManager) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
