package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/scheduler"
)

type createScheduleRequest struct {
	Name        string          `json:"name"`
	CronExpr    string          `json:"cronExpr"`
	Timezone    string          `json:"timezone"`
	Enabled     *bool           `json:"enabled"`
	JobType     string          `json:"jobType"`
	JobPayload  json.RawMessage `json:"jobPayload"`
	JobPriority string          `json:"jobPriority"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" || req.CronExpr == "" || req.JobType == "" {
		respondError(w, http.StatusBadRequest, "name, cronExpr and jobType are required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if err := scheduler.ValidateExpr(req.CronExpr, req.Timezone); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	priority := models.PriorityNormal
	if req.JobPriority != "" {
		p, err := models.ParsePriority(req.JobPriority)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		priority = p
	}
	payload := req.JobPayload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	schedule := &models.Schedule{
		ID:          uuid.NewString(),
		Name:        req.Name,
		CronExpr:    req.CronExpr,
		Timezone:    req.Timezone,
		Enabled:     enabled,
		JobType:     req.JobType,
		JobPayload:  payload,
		JobPriority: priority,
	}
	if enabled {
		next, err := scheduler.NextRun(schedule.CronExpr, schedule.Timezone, time.Now())
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		schedule.NextRunAt = &next
	}

	if err := s.schedules.Create(r.Context(), schedule); err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusCreated, schedule)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := s.schedules.List(r.Context(), page, pageSize)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.schedules.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, schedule)
}

type updateScheduleRequest struct {
	Name        *string          `json:"name"`
	CronExpr    *string          `json:"cronExpr"`
	Timezone    *string          `json:"timezone"`
	JobType     *string          `json:"jobType"`
	JobPayload  *json.RawMessage `json:"jobPayload"`
	JobPriority *string          `json:"jobPriority"`
}

// handleUpdateSchedule patches the template fields. A change to the cron
// expression or timezone re-evaluates the next fire time of an enabled
// schedule so the old rule cannot fire once more.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req updateScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	schedule, err := s.schedules.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			respondError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		schedule.Name = *req.Name
	}
	if req.JobType != nil {
		if *req.JobType == "" {
			respondError(w, http.StatusBadRequest, "jobType must not be empty")
			return
		}
		schedule.JobType = *req.JobType
	}
	if req.JobPayload != nil {
		schedule.JobPayload = *req.JobPayload
	}
	if req.JobPriority != nil {
		p, err := models.ParsePriority(*req.JobPriority)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		schedule.JobPriority = p
	}

	ruleChanged := false
	if req.CronExpr != nil {
		schedule.CronExpr = *req.CronExpr
		ruleChanged = true
	}
	if req.Timezone != nil {
		schedule.Timezone = *req.Timezone
		ruleChanged = true
	}
	if ruleChanged {
		if err := scheduler.ValidateExpr(schedule.CronExpr, schedule.Timezone); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if schedule.Enabled {
			next, err := scheduler.NextRun(schedule.CronExpr, schedule.Timezone, time.Now())
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			schedule.NextRunAt = &next
		}
	}

	if err := s.schedules.Update(ctx, schedule); err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, schedule)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (s *Server) handleEnableSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schedule, err := s.schedules.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	next, err := scheduler.NextRun(schedule.CronExpr, schedule.Timezone, time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.schedules.SetEnabled(ctx, schedule.ID, true, &next); err != nil {
		respondStoreError(w, err)
		return
	}
	schedule.Enabled = true
	schedule.NextRunAt = &next
	respond(w, http.StatusOK, schedule)
}

func (s *Server) handleDisableSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schedule, err := s.schedules.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if err := s.schedules.SetEnabled(ctx, schedule.ID, false, nil); err != nil {
		respondStoreError(w, err)
		return
	}
	schedule.Enabled = false
	schedule.NextRunAt = nil
	respond(w, http.StatusOK, schedule)
}

// handleTriggerSchedule fires the template immediately without touching the
// firing state: nextRunAt, lastRunAt and runCount stay as they are.
func (s *Server) handleTriggerSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schedule, err := s.schedules.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	job, err := s.executor.CreateJob(ctx, schedule)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusCreated, job)
}

func (s *Server) handleScheduleNextRuns(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", 5)
	if count < 1 || count > 100 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and 100, got %d", count))
		return
	}

	schedule, err := s.schedules.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	runs, err := scheduler.NextRuns(schedule.CronExpr, schedule.Timezone, time.Now(), count)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"scheduleId": schedule.ID,
		"cronExpr":   schedule.CronExpr,
		"timezone":   schedule.Timezone,
		"nextRuns":   runs,
	})
}
