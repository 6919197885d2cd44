package models

import (
	"encoding/json"
	"time"

	"github.com/taskforge/taskforge/internal/state"
)

// Job is a single unit of work. The durable store owns every field; the queue
// index only ever holds the id plus routing metadata.
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	Priority     Priority        `json:"priority"`
	Status       state.JobStatus `json:"status"`
	MaxRetries   int             `json:"maxRetries"`
	RetryDelayMs int64           `json:"retryDelayMs"`
	RetryCount   int             `json:"retryCount"`
	ScheduledAt  *time.Time      `json:"scheduledAt,omitempty"`
	ScheduleID   *string         `json:"scheduleId,omitempty"`
	WorkerID     *string         `json:"workerId,omitempty"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        *string         `json:"error,omitempty"`
	WebhookURL   *string         `json:"webhookUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
