package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/state"
)

const (
	defaultMaxRetries   = 3
	defaultRetryDelayMs = 1000
	minRetryDelayMs     = 100
)

type createJobRequest struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	Priority     string          `json:"priority"`
	MaxRetries   *int            `json:"maxRetries"`
	RetryDelayMs *int64          `json:"retryDelayMs"`
	ScheduledAt  *time.Time      `json:"scheduledAt"`
	WebhookURL   *string         `json:"webhookUrl"`
}

func (req *createJobRequest) validate() (*models.Job, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.Type == "" {
		return nil, fmt.Errorf("type is required")
	}

	priority := models.PriorityNormal
	if req.Priority != "" {
		p, err := models.ParsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}

	maxRetries := defaultMaxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return nil, fmt.Errorf("maxRetries must be >= 0")
		}
		maxRetries = *req.MaxRetries
	}
	retryDelayMs := int64(defaultRetryDelayMs)
	if req.RetryDelayMs != nil {
		if *req.RetryDelayMs < minRetryDelayMs {
			return nil, fmt.Errorf("retryDelayMs must be >= %d", minRetryDelayMs)
		}
		retryDelayMs = *req.RetryDelayMs
	}
	if req.WebhookURL != nil && *req.WebhookURL == "" {
		return nil, fmt.Errorf("webhookUrl must not be empty when present")
	}

	payload := req.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	return &models.Job{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Type:         req.Type,
		Payload:      payload,
		Priority:     priority,
		Status:       state.StatusPending,
		MaxRetries:   maxRetries,
		RetryDelayMs: retryDelayMs,
		ScheduledAt:  req.ScheduledAt,
		WebhookURL:   req.WebhookURL,
	}, nil
}

// handleCreateJob writes the job row first, then the queue index entry. A
// future scheduledAt lands the job in the delayed index; it still reads as
// QUEUED because promotion only touches the index, never the row.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !decodeBody(w, r, &req) {
		return
	}
	job, err := req.validate()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := s.jobs.Create(ctx, job); err != nil {
		respondStoreError(w, err)
		return
	}

	if job.ScheduledAt != nil && job.ScheduledAt.After(time.Now()) {
		err = s.queue.EnqueueDelayed(ctx, job.ID, *job.ScheduledAt, job.Priority)
	} else {
		err = s.queue.Enqueue(ctx, job.ID, job.Priority)
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := s.jobs.MarkQueued(ctx, job.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	job.Status = state.StatusQueued

	respond(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	var status *state.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := state.JobStatus(raw)
		status = &st
	}

	result, err := s.jobs.List(r.Context(), page, pageSize, status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, job)
}

func (s *Server) handleListJobWebhooks(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListByJob(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, events)
}

// handleCancelJob cancels a job that has not started running. The repository
// enforces the PENDING/QUEUED/RETRYING guard in a single conditional write.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	if err := s.jobs.Cancel(ctx, id); err != nil {
		respondStoreError(w, err)
		return
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, job)
}
