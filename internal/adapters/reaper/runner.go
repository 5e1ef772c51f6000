// Package reaper runs the job reaper loop against the database.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/observability/statsd"
	"github.com/popmap/popmap-api/internal/service"
)

// Runner drives the reaper service cleanup loop.
type Runner struct {
	reaper  *service.ReaperService
	logger  *slog.Logger
	metrics statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB           *sql.DB
	Config       config.ReaperConfig
	RawRetention time.Duration
	Logger       *slog.Logger
	Metrics      statsd.Sink

	// Optional repository overrides for testing. When unset the runner
	// builds repositories on DB.
	Repo      core.ReaperRepository
	Analytics core.AnalyticsRepository
	Reminders core.ReminderRepository
}

// NewRunner creates a reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	analytics := opts.Analytics
	if analytics == nil {
		analytics = data.NewAnalyticsRepo(opts.DB)
	}
	reminders := opts.Reminders
	if reminders == nil {
		reminders = data.NewReminderRepo(opts.DB)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:         repo,
		Config:       opts.Config,
		Analytics:    analytics,
		Reminders:    reminders,
		RawRetention: opts.RawRetention,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper:  reaper,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
