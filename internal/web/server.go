package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/scheduler"
)

const DefaultPageSize = 20

// Pinger reports whether the durable store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the JSON request surface over the core. It performs request
// validation and delegates every mutation to the repositories and the queue
// manager; it holds no state of its own.
type Server struct {
	jobs       repository.JobRepository
	schedules  repository.ScheduleRepository
	workers    repository.WorkerRepository
	deadLetter repository.DeadLetterRepository
	events     repository.WebhookEventRepository
	queue      queue.Manager
	executor   *scheduler.Executor
	db         Pinger
}

func NewServer(
	jobs repository.JobRepository,
	schedules repository.ScheduleRepository,
	workers repository.WorkerRepository,
	deadLetter repository.DeadLetterRepository,
	events repository.WebhookEventRepository,
	q queue.Manager,
	executor *scheduler.Executor,
	db Pinger,
) *Server {
	return &Server{
		jobs:       jobs,
		schedules:  schedules,
		workers:    workers,
		deadLetter: deadLetter,
		events:     events,
		queue:      q,
		executor:   executor,
		db:         db,
	}
}

// Routes builds the route table. Literal segments win over wildcards, so
// /dead-letter/stats does not collide with /dead-letter/{id}.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /jobs/{id}/webhooks", s.handleListJobWebhooks)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)

	mux.HandleFunc("POST /schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /schedules", s.handleListSchedules)
	mux.HandleFunc("GET /schedules/{id}", s.handleGetSchedule)
	mux.HandleFunc("PATCH /schedules/{id}", s.handleUpdateSchedule)
	mux.HandleFunc("DELETE /schedules/{id}", s.handleDeleteSchedule)
	mux.HandleFunc("POST /schedules/{id}/enable", s.handleEnableSchedule)
	mux.HandleFunc("POST /schedules/{id}/disable", s.handleDisableSchedule)
	mux.HandleFunc("POST /schedules/{id}/trigger", s.handleTriggerSchedule)
	mux.HandleFunc("GET /schedules/{id}/next-runs", s.handleScheduleNextRuns)

	mux.HandleFunc("GET /dead-letter", s.handleListDeadLetter)
	mux.HandleFunc("GET /dead-letter/stats", s.handleDeadLetterStats)
	mux.HandleFunc("GET /dead-letter/{id}", s.handleGetDeadLetter)
	mux.HandleFunc("POST /dead-letter/{id}/retry", s.handleRetryDeadLetter)
	mux.HandleFunc("DELETE /dead-letter/{id}", s.handleDeleteDeadLetter)

	mux.HandleFunc("GET /metrics/jobs", s.handleJobMetrics)
	mux.HandleFunc("GET /metrics/queues", s.handleQueueMetrics)
	mux.HandleFunc("GET /metrics/workers", s.handleWorkerMetrics)

	mux.HandleFunc("GET /health/live", s.handleLiveness)
	mux.HandleFunc("GET /health/ready", s.handleReadiness)

	return mux
}

func respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respond(w, code, map[string]string{"error": msg})
}

// respondStoreError maps repository sentinels onto status codes; anything
// else is a 500 with the detail kept in the log, not the response.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid state transition")
	default:
		log.Printf("web: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pageParams(r *http.Request) (page, pageSize int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize = queryInt(r, "pageSize", DefaultPageSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
