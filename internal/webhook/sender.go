package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Wire headers attached to every notification.
const (
	headerEvent = "X-Webhook-Event"
	headerJobID = "X-Job-Id"
	eventName   = "job.status"
)

// errTimeout is recorded as "Request timeout" on the event row, matching
// the distinction consumers rely on between slow endpoints and transport
// failures.
var errTimeout = errors.New("Request timeout")

// sender executes a single delivery attempt bounded by the configured
// timeout.
type sender struct {
	client  *http.Client
	timeout time.Duration
}

func newSender(client *http.Client, timeout time.Duration) *sender {
	if client == nil {
		client = &http.Client{}
	}
	return &sender{client: client, timeout: timeout}
}

// send POSTs the frozen payload. It returns the status code when a response
// was received (regardless of its class) and an error for transport-level
// failures; a timeout maps to errTimeout.
func (s *sender) send(ctx context.Context, url, jobID string, payload []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, eventName)
	req.Header.Set(headerJobID, jobID)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return 0, errTimeout
		}
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}
