package web

import (
	"context"
	"log"
	"net/http"
	"time"
)

const healthProbeTimeout = 5 * time.Second

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReadiness reports healthy when both stores answer and at least one
// worker is active, degraded when the stores answer but no worker is up, and
// unhealthy (503) when either store is down.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	checks := map[string]string{
		"database": "up",
		"queue":    "up",
	}
	healthy := true
	if err := s.db.PingContext(ctx); err != nil {
		log.Printf("web: readiness: database: %v", err)
		checks["database"] = "down"
		healthy = false
	}
	if err := s.queue.Ping(ctx); err != nil {
		log.Printf("web: readiness: queue: %v", err)
		checks["queue"] = "down"
		healthy = false
	}

	if !healthy {
		respond(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"checks": checks,
		})
		return
	}

	active, err := s.workers.CountActive(ctx)
	if err != nil {
		log.Printf("web: readiness: workers: %v", err)
		respond(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"checks": checks,
		})
		return
	}

	status := "healthy"
	if active == 0 {
		status = "degraded"
	}
	respond(w, http.StatusOK, map[string]any{
		"status":        status,
		"checks":        checks,
		"activeWorkers": active,
	})
}
