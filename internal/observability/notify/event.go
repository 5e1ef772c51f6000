package notify

import (
	"context"
	"time"
)

// SeverityCritical is the default severity stamped on job failure
// notifications when the producer does not set one.
const SeverityCritical = "critical"

// JobFailurePayload is the sink-agnostic description of a terminally failed
// job. Sinks format it for their own transport; Metadata carries anything
// without a dedicated field, such as retry counts.
type JobFailurePayload struct {
	JobID      string
	JobType    string
	EventID    string
	BusinessID string
	Scope      string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink delivers job failure notifications to one destination.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure calls f. A nil func drops the notification.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
