// Package scheduler runs the scheduler tick loop against the database.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	obserrors "github.com/popmap/popmap-api/internal/observability/errors"
	"github.com/popmap/popmap-api/internal/observability/metrics"
	"github.com/popmap/popmap-api/internal/observability/statsd"
	"github.com/popmap/popmap-api/internal/service"
)

// Runner drives the scheduler service on a fixed tick interval.
type Runner struct {
	scheduler core.JobScheduler
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB       *sql.DB
	Config   *core.SchedulerConfig
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink

	// Optional repository overrides for testing. When unset the runner
	// builds repositories on DB, and the job repository doubles as the
	// introspector the skip policy reads.
	Jobs            core.JobRepository
	Scheduled       core.ScheduledJobsRepository
	JobIntrospector core.JobIntrospector
}

// NewRunner creates a scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	scheduled := opts.Scheduled
	if scheduled == nil {
		scheduled = data.NewScheduledJobsRepo(opts.DB)
	}
	introspector := opts.JobIntrospector
	if introspector == nil {
		if reader, ok := jobs.(core.JobIntrospector); ok {
			introspector = reader
		}
	}

	svc := service.NewSchedulerService(service.SchedulerServiceOptions{
		Repo:            scheduled,
		Jobs:            jobs,
		JobIntrospector: introspector,
		Config:          opts.Config,
		Logger:          opts.Logger,
	})

	return &Runner{
		scheduler: svc,
		interval:  opts.Interval,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// Run ticks the scheduler until the context is cancelled. Tick errors
// are logged and counted but do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case now := <-ticker.C:
			start := time.Now()
			processed, err := r.scheduler.Tick(ctx, now)
			elapsed := time.Since(start)

			r.emitTickMetrics(processed, elapsed, err)

			if err != nil {
				r.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
				continue
			}
			if processed > 0 {
				r.logger.InfoContext(ctx, "scheduler tick enqueued tasks",
					"processed", processed,
					"duration", elapsed,
				)
			}
		}
	}
}

func (r *Runner) emitTickMetrics(processed int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if processed == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("scheduler.tick", 1, tags)

	if processed > 0 {
		r.metrics.Count("scheduler.tasks_enqueued", int64(processed), tags)
	}

	if elapsed > 0 {
		r.metrics.Timing("scheduler.tick_duration", elapsed, metrics.CloneTags(tags))
	}

	if err == nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
