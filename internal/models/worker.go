package models

import (
	"time"

	"github.com/taskforge/taskforge/internal/state"
)

// Worker is the registration row of one live processing process.
type Worker struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Hostname       string             `json:"hostname"`
	PID            int                `json:"pid"`
	Status         state.WorkerStatus `json:"status"`
	Concurrency    int                `json:"concurrency"`
	ActiveJobs     int                `json:"activeJobs"`
	ProcessedCount int64              `json:"processedCount"`
	FailedCount    int64              `json:"failedCount"`
	LastHeartbeat  time.Time          `json:"lastHeartbeat"`
	StartedAt      time.Time          `json:"startedAt"`
	StoppedAt      *time.Time         `json:"stoppedAt,omitempty"`
}
