package models

import (
	"encoding/json"
	"time"

	"github.com/taskforge/taskforge/internal/state"
)

// WebhookEvent is one outbox entry for an outbound notification. The payload
// is frozen at creation; delivery attempts only touch the bookkeeping fields.
type WebhookEvent struct {
	ID             string              `json:"id"`
	JobID          string              `json:"jobId"`
	JobType        string              `json:"jobType"`
	URL            string              `json:"url"`
	Payload        json.RawMessage     `json:"payload"`
	Status         state.WebhookStatus `json:"status"`
	Attempts       int                 `json:"attempts"`
	MaxAttempts    int                 `json:"maxAttempts"`
	LastStatusCode *int                `json:"lastStatusCode,omitempty"`
	LastError      *string             `json:"lastError,omitempty"`
	LastAttemptAt  *time.Time          `json:"lastAttemptAt,omitempty"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// WebhookPayload is the wire format POSTed to the target URL.
type WebhookPayload struct {
	JobID       string          `json:"jobId"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result"`
	Error       *string         `json:"error"`
	CompletedAt string          `json:"completedAt"`
}
