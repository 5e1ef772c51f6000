package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/popmap/popmap-api/internal/observability/notify"
)

// DefaultTimeout bounds a single sink delivery, retries included, when
// Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// SinkRegistration names a sink so delivery logs can identify it.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Sinks   []SinkRegistration
}

// Service delivers job failure notifications to every registered sink.
type Service struct {
	logger  *slog.Logger
	timeout time.Duration
	sinks   []SinkRegistration
}

// NewService builds a Service, dropping nil sinks and naming anonymous ones.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sinks := make([]SinkRegistration, 0, len(opts.Sinks))
	for _, reg := range opts.Sinks {
		if reg.Sink == nil {
			continue
		}
		if reg.Name == "" {
			reg.Name = "sink"
		}
		sinks = append(sinks, reg)
	}

	return &Service{
		logger:  logger,
		timeout: timeout,
		sinks:   sinks,
	}
}

// NotifyJobFailure sends the payload to every sink concurrently and waits for
// all deliveries to finish. An unset severity is stamped critical first.
// Delivery errors are logged, never returned.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, reg := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliver(ctx, reg, payload)
		}()
	}
	wg.Wait()
}

// deliver runs one sink under the per-delivery timeout so a stalled webhook
// cannot hold up the worker that reported the failure.
func (s *Service) deliver(ctx context.Context, reg SinkRegistration, payload notify.JobFailurePayload) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := reg.Sink.SendJobFailure(ctx, payload); err != nil {
		s.logger.ErrorContext(ctx, "job failure notification not delivered",
			"sink", reg.Name,
			"job_id", payload.JobID,
			"job_type", payload.JobType,
			"error", err,
		)
		return
	}

	s.logger.DebugContext(ctx, "job failure notification delivered",
		"sink", reg.Name,
		"job_id", payload.JobID,
		"duration", time.Since(start),
	)
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
