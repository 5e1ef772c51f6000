package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/adapters/jobrunner"
	"github.com/popmap/popmap-api/internal/adapters/reaper"
	schedrunner "github.com/popmap/popmap-api/internal/adapters/scheduler"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/data/cryptoutil"
	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/observability/statsd"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/popmap/popmap-api/internal/service/failurenotifier"
	"github.com/popmap/popmap-api/internal/service/mailer"
	"golang.org/x/sync/errgroup"
)

//nolint:ireturn // Returning Encryptor interface is required for runner injection.
func resolveEncryptor(enc cryptoutil.Encryptor, logger *slog.Logger) cryptoutil.Encryptor {
	if enc != nil {
		return enc
	}
	if logger != nil {
		logger.Warn("no encryptor provided; using noop encryptor")
	}
	return &cryptoutil.NoopEncryptor{}
}

// WorkerConfig contains configuration for the background job worker.
type WorkerConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Lease           time.Duration
	Concurrency     int
	Mailer          *mailer.Service
	Reminders       *service.ReminderService
	Analytics       *service.AnalyticsService
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWorker starts one job runner per queue job type and blocks until the
// context is cancelled or a runner fails. Email delivery gets the configured
// concurrency; reminder scans and rollups stay serial because a single run
// already covers the whole due window.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	runners := []struct {
		label string
		opts  jobrunner.RunnerOptions
	}{
		{label: "email", opts: jobrunner.RunnerOptions{
			JobType:     model.JobTypeEmail,
			Concurrency: cfg.Concurrency,
			Mailer:      cfg.Mailer,
		}},
		{label: "reminders", opts: jobrunner.RunnerOptions{
			JobType:   model.JobTypeReminders,
			Reminders: cfg.Reminders,
		}},
		{label: "rollup", opts: jobrunner.RunnerOptions{
			JobType:   model.JobTypeRollup,
			Analytics: cfg.Analytics,
		}},
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, entry := range runners {
		opts := entry.opts
		opts.DB = cfg.DB
		opts.Logger = cfg.Logger
		opts.Lease = cfg.Lease
		opts.Metrics = cfg.Metrics
		opts.FailureNotifier = cfg.FailureNotifier

		runner, err := jobrunner.NewRunner(opts)
		if err != nil {
			return fmt.Errorf("create %s runner: %w", entry.label, err)
		}

		label := entry.label
		group.Go(func() error {
			if err := runner.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s runner: %w", label, err)
			}
			return nil
		})
	}

	return group.Wait()
}

// SchedulerConfig contains configuration for the scheduler loop.
type SchedulerConfig struct {
	DB     *sql.DB
	Logger *slog.Logger
	Config config.SchedulerConfig
	// Tasks lists scheduled task cadences to sync into the database before
	// the tick loop starts, so env overrides win over seeded intervals.
	Tasks   []domain.UpsertTaskParams
	Metrics statsd.Sink
}

// RunScheduler syncs task cadences and starts the scheduler tick loop.
func RunScheduler(ctx context.Context, cfg SchedulerConfig) error {
	if err := syncScheduledTasks(ctx, cfg.DB, cfg.Tasks); err != nil {
		return err
	}

	schedulerCfg := core.SchedulerConfig{
		BatchSize:       cfg.Config.BatchSize,
		DefaultJobType:  cfg.Config.DefaultJobType,
		DefaultPriority: cfg.Config.DefaultPriority,
		MaxRetries:      cfg.Config.MaxRetries,
		Strategy: domain.StrategyOptions{
			Overrun:       cfg.Config.OverrunPolicy,
			OverrunStates: cfg.Config.OverrunStates,
		},
	}

	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		DB:       cfg.DB,
		Config:   &schedulerCfg,
		Interval: cfg.Config.Interval,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create scheduler runner: %w", err)
	}

	return runner.Run(ctx)
}

func syncScheduledTasks(ctx context.Context, db *sql.DB, tasks []domain.UpsertTaskParams) error {
	if db == nil || len(tasks) == 0 {
		return nil
	}
	registrar := data.NewScheduledTaskRegistrar(db)
	for _, task := range tasks {
		if err := registrar.Upsert(ctx, task); err != nil {
			return fmt.Errorf("sync scheduled task %s: %w", task.TaskName, err)
		}
	}
	return nil
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	DB     *sql.DB
	Logger *slog.Logger
	Config config.ReaperConfig
	// RawRetention is how long raw analytics rows are kept before pruning.
	RawRetention time.Duration
	Metrics      statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:           cfg.DB,
		Config:       cfg.Config,
		RawRetention: cfg.RawRetention,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
