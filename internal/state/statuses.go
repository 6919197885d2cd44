package state

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusQueued     JobStatus = "QUEUED"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
	StatusRetrying   JobStatus = "RETRYING"
	StatusCancelled  JobStatus = "CANCELLED"
)

func (s JobStatus) String() string {
	return string(s)
}

var AllStatuses = []JobStatus{
	StatusPending,
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRetrying,
	StatusCancelled,
}

// IsTerminal reports whether a job in this status can never transition again.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsDequeueable reports whether a worker may start processing a job in this
// status. A popped queue reference whose job is in any other status is stale
// and must be discarded.
func (s JobStatus) IsDequeueable() bool {
	return s == StatusQueued || s == StatusRetrying
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusQueued},
	{From: StatusPending, To: StatusCancelled},
	{From: StatusQueued, To: StatusProcessing},
	{From: StatusQueued, To: StatusCancelled},
	{From: StatusProcessing, To: StatusCompleted},
	{From: StatusProcessing, To: StatusRetrying},
	{From: StatusProcessing, To: StatusFailed},
	{From: StatusRetrying, To: StatusProcessing},
	{From: StatusRetrying, To: StatusCancelled},
}

func IsValidTransition(from, to JobStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

type WorkerStatus string

const (
	WorkerActive  WorkerStatus = "active"
	WorkerIdle    WorkerStatus = "idle"
	WorkerStopped WorkerStatus = "stopped"
)

type WebhookStatus string

const (
	WebhookPending  WebhookStatus = "pending"
	WebhookRetrying WebhookStatus = "retrying"
	WebhookSuccess  WebhookStatus = "success"
	WebhookFailed   WebhookStatus = "failed"
)
