package web

import (
	"net/http"
)

func (s *Server) handleJobMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := s.jobs.CountByStatus(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"byStatus": counts})
}

func (s *Server) handleQueueMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

func (s *Server) handleWorkerMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize := pageParams(r)

	active, err := s.workers.CountActive(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	result, err := s.workers.List(ctx, page, pageSize)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"activeWorkers": active,
		"workers":       result,
	})
}
