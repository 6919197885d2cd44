package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/queue"
	"github.com/taskforge/taskforge/internal/repository"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 60 * time.Second

// ErrNotStarted reports that the PROCESSING transition itself failed: the
// handler never ran, the attempt must not count toward worker outcome
// totals, and the job row stays dequeueable or is healed by orphan recovery.
var ErrNotStarted = errors.New("job was not started")

// Notifier submits outbound notifications for terminal job states. The
// implementations never block job completion on delivery; failures are
// observable only through the webhook event rows.
type Notifier interface {
	NotifyCompleted(ctx context.Context, job *models.Job, result json.RawMessage)
	NotifyFailed(ctx context.Context, job *models.Job, errMsg string)
}

// Processor drives the state machine of a single job execution: handler
// lookup, PROCESSING transition, retry scheduling and dead-letter emission.
type Processor struct {
	jobs     repository.JobRepository
	dlq      repository.DeadLetterRepository
	queue    queue.Manager
	registry *Registry
	notifier Notifier
}

func New(jobs repository.JobRepository, dlq repository.DeadLetterRepository, q queue.Manager, registry *Registry, notifier Notifier) *Processor {
	return &Processor{
		jobs:     jobs,
		dlq:      dlq,
		queue:    q,
		registry: registry,
		notifier: notifier,
	}
}

// Process runs one job on behalf of workerID. The returned error is the
// handler's failure (nil on success) so the worker can count outcomes; a
// failure before the handler ran is reported as ErrNotStarted and counts as
// neither. Infrastructure errors after the start are logged and leave the
// job PROCESSING for orphan recovery to heal.
func (p *Processor) Process(ctx context.Context, job *models.Job, workerID string) error {
	handler, ok := p.registry.Get(job.Type)
	if !ok {
		handlerErr := fmt.Errorf("no handler for type %s", job.Type)
		if err := p.markProcessing(ctx, job, workerID); err != nil {
			log.Printf("processor: job %s: %v", job.ID, err)
			return fmt.Errorf("%w: %v", ErrNotStarted, err)
		}
		p.recordPermanentFailure(ctx, job, workerID, handlerErr.Error())
		return handlerErr
	}

	if err := p.markProcessing(ctx, job, workerID); err != nil {
		log.Printf("processor: job %s: %v", job.ID, err)
		return fmt.Errorf("%w: %v", ErrNotStarted, err)
	}

	result, handlerErr := invoke(ctx, handler, job)
	if handlerErr == nil {
		p.recordSuccess(ctx, job, workerID, result)
		return nil
	}

	if job.RetryCount < job.MaxRetries {
		p.scheduleRetry(ctx, job, handlerErr.Error())
	} else {
		p.recordPermanentFailure(ctx, job, workerID, handlerErr.Error())
	}
	return handlerErr
}

// invoke shields the worker from panicking handlers; a panic counts as a
// handler failure.
func invoke(ctx context.Context, handler Handler, job *models.Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return handler(ctx, job)
}

func (p *Processor) markProcessing(ctx context.Context, job *models.Job, workerID string) error {
	startedAt := time.Now().UTC()
	if err := p.jobs.MarkProcessing(ctx, job.ID, workerID, startedAt); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if err := p.queue.MarkProcessing(ctx, job.ID, workerID); err != nil {
		return fmt.Errorf("mark processing index: %w", err)
	}
	job.WorkerID = &workerID
	job.StartedAt = &startedAt
	return nil
}

func (p *Processor) recordSuccess(ctx context.Context, job *models.Job, workerID string, result json.RawMessage) {
	err := p.jobs.MarkCompleted(ctx, job.ID, workerID, result)
	if errors.Is(err, repository.ErrInvalidTransition) {
		// The job was reclaimed while we were running; the recovered copy
		// owns the row now and this result is discarded.
		log.Printf("processor: job %s was reclaimed, discarding late result", job.ID)
		return
	}
	if err != nil {
		log.Printf("processor: job %s: failed to record success: %v", job.ID, err)
		return
	}
	if err := p.queue.MarkCompleted(ctx, job.ID); err != nil {
		log.Printf("processor: job %s: failed to clear processing index: %v", job.ID, err)
	}
	if job.WebhookURL != nil {
		p.notifier.NotifyCompleted(ctx, job, result)
	}
}

func (p *Processor) scheduleRetry(ctx context.Context, job *models.Job, errMsg string) {
	delay := Backoff(job.RetryDelayMs, job.RetryCount)
	if err := p.jobs.MarkRetrying(ctx, job.ID, errMsg); err != nil {
		log.Printf("processor: job %s: failed to mark retrying: %v", job.ID, err)
		return
	}
	if err := p.queue.Requeue(ctx, job.ID, job.Priority, delay); err != nil {
		log.Printf("processor: job %s: failed to requeue: %v", job.ID, err)
	}
}

func (p *Processor) recordPermanentFailure(ctx context.Context, job *models.Job, workerID, errMsg string) {
	if err := p.jobs.MarkFailed(ctx, job.ID, workerID, errMsg); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			log.Printf("processor: job %s was reclaimed, discarding late failure", job.ID)
			return
		}
		log.Printf("processor: job %s: failed to record failure: %v", job.ID, err)
		return
	}
	if err := p.queue.MoveToDLQ(ctx, job.ID, errMsg); err != nil {
		log.Printf("processor: job %s: failed to mirror into dead-letter index: %v", job.ID, err)
	}

	entry := &models.DeadLetterJob{
		ID:                uuid.NewString(),
		OriginalJobID:     job.ID,
		JobName:           job.Name,
		JobType:           job.Type,
		JobPayload:        job.Payload,
		JobPriority:       job.Priority,
		FailureReason:     errMsg,
		FailureCount:      job.RetryCount + 1,
		LastError:         &errMsg,
		WorkerID:          &workerID,
		OriginalCreatedAt: job.CreatedAt,
		FailedAt:          time.Now().UTC(),
	}
	if err := p.dlq.Create(ctx, entry); err != nil {
		log.Printf("processor: job %s: failed to write dead-letter row: %v", job.ID, err)
	}

	if job.WebhookURL != nil {
		p.notifier.NotifyFailed(ctx, job, errMsg)
	}
}

// Backoff computes the exponential retry delay: base * 2^attempt, capped at
// maxBackoff.
func Backoff(baseDelayMs int64, attempt int) time.Duration {
	delay := time.Duration(baseDelayMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
