package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/taskforge/taskforge/internal/models"
)

// Handler is user code bound to a job type. It receives a snapshot of the
// job and returns a structured result or an error. Handlers may run for long
// periods; the worker loop never interrupts them.
type Handler func(ctx context.Context, job *models.Job) (json.RawMessage, error)

// Registry maps job types to handlers. Registration happens at startup;
// lookups are concurrent with registration only during tests, but the mutex
// keeps the map safe either way.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(jobType string, fn Handler) error {
	if jobType == "" {
		return fmt.Errorf("handler type must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("handler for type %s must not be nil", jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("handler already registered for type %s", jobType)
	}
	r.handlers[jobType] = fn
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[jobType]
	return fn, ok
}

func (r *Registry) Exists(jobType string) bool {
	_, ok := r.Get(jobType)
	return ok
}
