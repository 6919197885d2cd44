package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

// Dispatcher writes outbox rows for terminal job states and executes the
// first delivery attempt inline. Delivery never blocks job completion: every
// failure is swallowed into the event row and picked up by the retry
// processor.
type Dispatcher struct {
	events      repository.WebhookEventRepository
	sender      *sender
	maxAttempts int
	now         func() time.Time
}

func NewDispatcher(events repository.WebhookEventRepository, client *http.Client, timeout time.Duration, maxAttempts int) *Dispatcher {
	return &Dispatcher{
		events:      events,
		sender:      newSender(client, timeout),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// NotifyCompleted submits a "completed" notification for a job with a
// webhook URL.
func (d *Dispatcher) NotifyCompleted(ctx context.Context, job *models.Job, result json.RawMessage) {
	d.dispatch(ctx, job, "completed", result, nil)
}

// NotifyFailed submits a "failed" notification for a job with a webhook URL.
func (d *Dispatcher) NotifyFailed(ctx context.Context, job *models.Job, errMsg string) {
	d.dispatch(ctx, job, "failed", nil, &errMsg)
}

func (d *Dispatcher) dispatch(ctx context.Context, job *models.Job, status string, result json.RawMessage, errMsg *string) {
	if job.WebhookURL == nil || *job.WebhookURL == "" {
		return
	}

	event, err := d.createEvent(ctx, job, status, result, errMsg)
	if err != nil {
		log.Printf("webhook: job %s: %v", job.ID, err)
		return
	}
	d.attempt(ctx, event)
}

func (d *Dispatcher) createEvent(ctx context.Context, job *models.Job, status string, result json.RawMessage, errMsg *string) (*models.WebhookEvent, error) {
	if result == nil {
		result = json.RawMessage("null")
	}
	payload, err := json.Marshal(models.WebhookPayload{
		JobID:       job.ID,
		JobType:     job.Type,
		Status:      status,
		Result:      result,
		Error:       errMsg,
		CompletedAt: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	event := &models.WebhookEvent{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		JobType:     job.Type,
		URL:         *job.WebhookURL,
		Payload:     payload,
		Status:      state.WebhookPending,
		MaxAttempts: d.maxAttempts,
	}
	if err := d.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to write outbox row: %w", err)
	}
	return event, nil
}

func (d *Dispatcher) attempt(ctx context.Context, event *models.WebhookEvent) {
	deliver(ctx, d.events, d.sender, event, d.now().UTC())
}

// deliver executes one delivery attempt and records the classified outcome on
// the event row. A received response settles the attempt by status class; a
// transport failure or timeout is recorded without a status code.
func deliver(ctx context.Context, events repository.WebhookEventRepository, s *sender, event *models.WebhookEvent, at time.Time) {
	code, err := s.send(ctx, event.URL, event.JobID, event.Payload)

	switch {
	case err == nil && is2xx(code):
		if err := events.MarkSuccess(ctx, event.ID, code, at); err != nil {
			log.Printf("webhook: event %s: failed to record success: %v", event.ID, err)
		}
	case err == nil:
		msg := fmt.Sprintf("unexpected status %d", code)
		if err := events.MarkFailure(ctx, event.ID, &code, msg, at); err != nil {
			log.Printf("webhook: event %s: failed to record failure: %v", event.ID, err)
		}
	default:
		if err := events.MarkFailure(ctx, event.ID, nil, err.Error(), at); err != nil {
			log.Printf("webhook: event %s: failed to record failure: %v", event.ID, err)
		}
	}
}
