package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/state"
)

func (s *Server) handleListDeadLetter(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := s.deadLetter.List(r.Context(), page, pageSize)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleGetDeadLetter(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deadLetter.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, entry)
}

// handleRetryDeadLetter re-submits a dead job as a brand-new one built from
// the frozen descriptor, then drops the archive entry. The new job starts
// with a fresh retry budget.
func (s *Server) handleRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := s.deadLetter.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	job := &models.Job{
		ID:           uuid.NewString(),
		Name:         entry.JobName,
		Type:         entry.JobType,
		Payload:      entry.JobPayload,
		Priority:     entry.JobPriority,
		Status:       state.StatusPending,
		MaxRetries:   defaultMaxRetries,
		RetryDelayMs: defaultRetryDelayMs,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		respondStoreError(w, err)
		return
	}
	if err := s.queue.Enqueue(ctx, job.ID, job.Priority); err != nil {
		respondStoreError(w, err)
		return
	}
	if err := s.jobs.MarkQueued(ctx, job.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	job.Status = state.StatusQueued

	if err := s.queue.RemoveFromDLQ(ctx, entry.OriginalJobID); err != nil {
		respondStoreError(w, err)
		return
	}
	if err := s.deadLetter.Delete(ctx, entry.ID); err != nil {
		respondStoreError(w, err)
		return
	}

	respond(w, http.StatusCreated, job)
}

func (s *Server) handleDeleteDeadLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := s.deadLetter.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if err := s.queue.RemoveFromDLQ(ctx, entry.OriginalJobID); err != nil {
		respondStoreError(w, err)
		return
	}
	if err := s.deadLetter.Delete(ctx, entry.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeadLetterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deadLetter.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}
