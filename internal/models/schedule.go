package models

import (
	"encoding/json"
	"time"
)

// Schedule is a recurring job template driven by a 5-field cron expression
// evaluated in an IANA timezone. NextRunAt is null iff the schedule is
// disabled.
type Schedule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CronExpr    string          `json:"cronExpr"`
	Timezone    string          `json:"timezone"`
	Enabled     bool            `json:"enabled"`
	JobType     string          `json:"jobType"`
	JobPayload  json.RawMessage `json:"jobPayload"`
	JobPriority Priority        `json:"jobPriority"`
	NextRunAt   *time.Time      `json:"nextRunAt,omitempty"`
	LastRunAt   *time.Time      `json:"lastRunAt,omitempty"`
	RunCount    int64           `json:"runCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
