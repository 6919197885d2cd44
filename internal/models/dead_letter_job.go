package models

import (
	"encoding/json"
	"time"
)

// DeadLetterJob is the post-mortem copy of a job whose retries were
// exhausted. The descriptor fields are frozen at the moment of failure.
type DeadLetterJob struct {
	ID                string          `json:"id"`
	OriginalJobID     string          `json:"originalJobId"`
	JobName           string          `json:"jobName"`
	JobType           string          `json:"jobType"`
	JobPayload        json.RawMessage `json:"jobPayload"`
	JobPriority       Priority        `json:"jobPriority"`
	FailureReason     string          `json:"failureReason"`
	FailureCount      int             `json:"failureCount"`
	LastError         *string         `json:"lastError,omitempty"`
	ErrorStack        *string         `json:"errorStack,omitempty"`
	WorkerID          *string         `json:"workerId,omitempty"`
	OriginalCreatedAt time.Time       `json:"originalCreatedAt"`
	FailedAt          time.Time       `json:"failedAt"`
}

// DeadLetterStats aggregates the dead-letter table for the stats endpoint.
type DeadLetterStats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"byType"`
	OldestAt *time.Time     `json:"oldestAt,omitempty"`
	NewestAt *time.Time     `json:"newestAt,omitempty"`
}
