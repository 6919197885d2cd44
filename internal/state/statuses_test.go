package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from  JobStatus
		to    JobStatus
		valid bool
	}{
		{StatusPending, StatusQueued, true},
		{StatusPending, StatusCancelled, true},
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusRetrying, true},
		{StatusProcessing, StatusFailed, true},
		{StatusRetrying, StatusProcessing, true},
		{StatusRetrying, StatusCancelled, true},

		{StatusPending, StatusProcessing, false},
		{StatusQueued, StatusCompleted, false},
		{StatusProcessing, StatusCancelled, false},
		{StatusCompleted, StatusQueued, false},
		{StatusFailed, StatusQueued, false},
		{StatusCancelled, StatusQueued, false},
		{StatusCompleted, StatusProcessing, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatusesHaveNoOutgoingTransitions(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, target := range AllStatuses {
			assert.False(t, IsValidTransition(s, target),
				"terminal status %s must not transition to %s", s, target)
		}
	}
}

func TestIsDequeueable(t *testing.T) {
	assert.True(t, StatusQueued.IsDequeueable())
	assert.True(t, StatusRetrying.IsDequeueable())

	for _, s := range []JobStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled} {
		assert.False(t, s.IsDequeueable(), "%s", s)
	}
}
