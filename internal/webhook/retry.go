package webhook

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/taskforge/taskforge/internal/models"
	"github.com/taskforge/taskforge/internal/repository"
)

// RetryOptions are the outbox retry loop timings.
type RetryOptions struct {
	Interval  time.Duration
	BatchSize int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// RetryProcessor drains the outbox: events whose inline delivery did not
// reach a 2xx are re-sent with exponential backoff until they succeed or
// exhaust their attempt budget.
type RetryProcessor struct {
	events repository.WebhookEventRepository
	sender *sender
	opts   RetryOptions
	now    func() time.Time
}

func NewRetryProcessor(events repository.WebhookEventRepository, client *http.Client, timeout time.Duration, opts RetryOptions) *RetryProcessor {
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	return &RetryProcessor{
		events: events,
		sender: newSender(client, timeout),
		opts:   opts,
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled, scanning the outbox every interval.
func (p *RetryProcessor) Run(ctx context.Context) error {
	log.Printf("webhook retry: started (interval=%s)", p.opts.Interval)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("webhook retry: stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *RetryProcessor) tick(ctx context.Context) {
	retryable, err := p.events.FindRetryable(ctx, p.opts.BatchSize)
	if err != nil {
		log.Printf("webhook retry: failed to list retryable events: %v", err)
		return
	}

	now := p.now().UTC()
	for i := range retryable {
		event := &retryable[i]
		if !p.due(event, now) {
			continue
		}
		if err := p.events.MarkRetrying(ctx, event.ID); err != nil {
			log.Printf("webhook retry: failed to flag event %s: %v", event.ID, err)
			continue
		}
		deliver(ctx, p.events, p.sender, event, p.now().UTC())
	}
}

// due reports whether the event's backoff window has elapsed. An event that
// has never been attempted is due immediately.
func (p *RetryProcessor) due(event *models.WebhookEvent, now time.Time) bool {
	if event.LastAttemptAt == nil {
		return true
	}
	return !now.Before(event.LastAttemptAt.Add(p.backoff(event.Attempts)))
}

func (p *RetryProcessor) backoff(attempts int) time.Duration {
	delay := p.opts.BaseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= p.opts.MaxDelay {
			return p.opts.MaxDelay
		}
	}
	return delay
}
