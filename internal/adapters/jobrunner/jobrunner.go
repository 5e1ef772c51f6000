// Package jobrunner executes queued background jobs: outbound email
// delivery, reminder scans, and analytics rollups.
package jobrunner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	obserrors "github.com/popmap/popmap-api/internal/observability/errors"
	"github.com/popmap/popmap-api/internal/observability/metrics"
	"github.com/popmap/popmap-api/internal/observability/statsd"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/popmap/popmap-api/internal/service/failurenotifier"
	"github.com/popmap/popmap-api/internal/service/mailer"
)

// HandlerFunc processes a job and returns error to indicate failure (which will be retried per policy).
type HandlerFunc func(ctx context.Context, job *model.Job) error

const rollupDayLayout = "2006-01-02"

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Job processing settings
	Lease       time.Duration // per-job lease duration; defaults to 30s
	Concurrency int           // number of worker goroutines; defaults to 1
	JobType     model.JobType // which job type to process; defaults to email

	// Handler dependencies. A runner only needs the ones for its job type:
	// Mailer for email jobs, Reminders for reminder scans, Analytics for
	// rollups.
	Mailer    *mailer.Service
	Reminders *service.ReminderService
	Analytics *service.AnalyticsService

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo        core.JobRepository
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner pulls jobs and executes them using registered handlers.
type Runner struct {
	jobs      *service.JobService
	mail      *mailer.Service
	reminders *service.ReminderService
	analytics *service.AnalyticsService
	logger    *slog.Logger
	lease     time.Duration
	jobType   model.JobType
	workers   int
	handlers  map[model.JobType]HandlerFunc
	metrics   statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires repositories/services and constructs a job runner for a single job type.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil {
		return nil, errors.New("either DB or JobsRepo must be provided")
	}

	logger := resolveLogger(opts.Logger)

	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	jt := opts.JobType
	if !jt.Valid() {
		jt = model.JobTypeEmail
	}

	jobsRepo := opts.JobsRepo
	if jobsRepo == nil {
		jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	jobSvc := service.MustNewJobService(service.JobServiceOptions{
		Repo:            jobsRepo,
		DefaultLease:    lease,
		FailureNotifier: opts.FailureNotifier,
	})

	r := &Runner{
		jobs:      jobSvc,
		mail:      opts.Mailer,
		reminders: opts.Reminders,
		analytics: opts.Analytics,
		logger:    logger,
		lease:     lease,
		jobType:   jt,
		workers:   workers,
		handlers:  make(map[model.JobType]HandlerFunc),
		metrics:   opts.Metrics,
	}
	// Register built-in handlers for the dependencies we were given.
	if r.mail != nil {
		r.handlers[model.JobTypeEmail] = r.handleEmailJob
	}
	if r.reminders != nil {
		r.handlers[model.JobTypeReminders] = r.handleRemindersJob
	}
	if r.analytics != nil {
		r.handlers[model.JobTypeRollup] = r.handleRollupJob
	}
	if _, ok := r.handlers[jt]; !ok {
		r.logger.WarnContext(context.Background(),
			"no handler configured for job type; reserved jobs will fail", "type", jt)
	}
	return r, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "type", r.jobType, "workers", r.workers, "lease", r.lease)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe for notifications for the job type we process
	unsub, ch := r.jobs.Subscribe(r.jobType)
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.jobType, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	h, ok := r.handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler for job type %s", job.Type)
		r.fail(ctx, job.ID, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	stopHB := r.startHeartbeat(ctx, job.ID)
	defer stopHB()

	if err := h(ctx, job); err != nil {
		r.fail(ctx, job.ID, err)
		emit("failed", metrics.ResultError, err)
		return
	}
	if completed, err := r.jobs.Complete(ctx, job.ID); err != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", err)
		emit("completed", metrics.ResultError, err)
	} else {
		result := metrics.ResultNoop
		if completed {
			result = metrics.ResultSuccess
		}
		emit("completed", result, nil)
	}
}

func (r *Runner) fail(ctx context.Context, id string, cause error) {
	if _, err := r.jobs.FailWithDetails(ctx, id, cause.Error(), service.JobFailureDetails{
		ErrorClass: obserrors.Classify(cause),
		Metadata: map[string]string{
			"component": r.componentLabel(),
		},
	}); err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", id, "error", err, "original_error", cause)
	}
}

// startHeartbeat starts a background ticker to extend the job lease periodically.
// It returns a stop function to end the heartbeat.
func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := r.lease / 2
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ok, err := r.jobs.Heartbeat(ctx, jobID, r.lease); err != nil {
					r.logger.ErrorContext(ctx, "heartbeat failed", "job_id", jobID, "error", err)
				} else if !ok {
					r.logger.WarnContext(ctx, "heartbeat not applied (job may be lost)", "job_id", jobID)
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

func (r *Runner) componentLabel() string {
	switch r.jobType {
	case model.JobTypeEmail:
		return "email_runner"
	case model.JobTypeReminders:
		return "reminders_runner"
	case model.JobTypeRollup:
		return "rollup_runner"
	default:
		return "job_runner"
	}
}

// handleEmailJob renders and delivers a single outbound email.
func (r *Runner) handleEmailJob(ctx context.Context, job *model.Job) error {
	var payload model.EmailJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode email payload: %w", err)
	}
	return r.mail.Deliver(ctx, payload)
}

// handleRemindersJob scans the upcoming reminder window and queues one email
// job per due RSVP. Dispatch failures fail the job so the scan is retried;
// already-claimed reminders are skipped on the retry, so nothing double-sends.
func (r *Runner) handleRemindersJob(ctx context.Context, job *model.Job) error {
	stats, err := r.reminders.Scan(ctx)
	if err != nil {
		return fmt.Errorf("reminder scan: %w", err)
	}
	if stats.Failed > 0 {
		return fmt.Errorf("reminder scan: %d of %d dispatches failed", stats.Failed, stats.Candidates)
	}
	r.logger.InfoContext(ctx, "reminders job finished",
		"job_id", job.ID, "queued", stats.Queued, "skipped", stats.Skipped)
	return nil
}

// handleRollupJob aggregates one UTC day of raw analytics traffic. An empty
// payload day means yesterday, which is what the scheduled nightly job sends.
func (r *Runner) handleRollupJob(ctx context.Context, job *model.Job) error {
	var payload model.RollupJobPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode rollup payload: %w", err)
		}
	}
	day := time.Now().UTC().AddDate(0, 0, -1)
	if payload.Day != "" {
		parsed, err := time.Parse(rollupDayLayout, payload.Day)
		if err != nil {
			return fmt.Errorf("parse rollup day %q: %w", payload.Day, err)
		}
		day = parsed
	}
	businesses, err := r.analytics.Rollup(ctx, day)
	if err != nil {
		return fmt.Errorf("rollup %s: %w", day.Format(rollupDayLayout), err)
	}
	r.logger.InfoContext(ctx, "rollup job finished",
		"job_id", job.ID, "day", day.Format(rollupDayLayout), "businesses", businesses)
	return nil
}
