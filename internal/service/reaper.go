package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
	obserrors "github.com/popmap/popmap-api/internal/observability/errors"
	"github.com/popmap/popmap-api/internal/observability/metrics"
	"github.com/popmap/popmap-api/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo         core.ReaperRepository    // Required: reaper repository
	Config       config.ReaperConfig      // Required: reaper configuration
	Analytics    core.AnalyticsRepository // Optional: raw tracking-row pruning
	Reminders    core.ReminderRepository  // Optional: reminder ledger pruning
	RawRetention time.Duration            // Optional: raw analytics retention window
	Logger       *slog.Logger             // Optional: structured logger
	Metrics      statsd.Sink              // Optional: metrics sink (StatsD-compatible)
}

// ReaperService runs the periodic cleanup pass: it fails pending jobs that
// were never picked up, deletes completed and failed jobs past their
// retention, prunes raw analytics rows, and trims the sent-reminder ledger.
// Every operation deletes in bounded batches so a backlog cannot turn into
// one long-running statement.
type ReaperService struct {
	repo         core.ReaperRepository
	config       config.ReaperConfig
	analytics    core.AnalyticsRepository
	reminders    core.ReminderRepository
	rawRetention time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
			"raw_retention", opts.RawRetention,
		)
	}

	return &ReaperService{
		repo:         opts.Repo,
		config:       opts.Config,
		analytics:    opts.Analytics,
		reminders:    opts.Reminders,
		rawRetention: opts.RawRetention,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create ReaperService: %v", err))
	}
	return svc
}

// Run executes cleanup at the configured interval until the context ends.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Stagger instances that start together so they do not hit the
	// database in lockstep.
	if !s.sleepJitter(ctx) {
		return shutdownErr(ctx)
	}

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			return shutdownErr(ctx)

		case <-ticker.C:
			// Keep ticking through failures; transient database trouble
			// resolves itself by the next pass.
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// sleepJitter delays startup by up to a tenth of the interval. Reports false
// when the context ended during the wait.
func (s *ReaperService) sleepJitter(ctx context.Context) bool {
	maxJitter := s.config.Interval / 10
	if maxJitter <= 0 {
		return true
	}

	timer := time.NewTimer(rand.N(maxJitter))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// shutdownErr maps context termination to the Run contract: cancellation is
// a graceful shutdown, anything else is a failure.
func shutdownErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// cleanupOp names one cleanup operation for metrics and error reporting.
type cleanupOp struct {
	name  string
	label string
	run   func(context.Context) (int64, error)
}

// opResult carries one operation's outcome into metrics emission. A batch
// interrupted by context cancellation keeps its partial count with a nil
// error so shutdown does not read as a cleanup failure on dashboards.
type opResult struct {
	name  string
	count int64
	err   error
}

func (s *ReaperService) cleanupOps() []cleanupOp {
	return []cleanupOp{
		{name: "fail_pending", label: "fail stale pending jobs", run: s.failStalePendingJobs},
		{name: "delete_completed", label: "delete old completed jobs", run: s.deleteOldCompletedJobs},
		{name: "delete_failed", label: "delete old failed jobs", run: s.deleteOldFailedJobs},
		{name: "prune_analytics", label: "prune raw analytics", run: s.pruneRawAnalytics},
		{name: "delete_reminder_logs", label: "delete old reminder logs", run: s.deleteOldReminderLogs},
	}
}

// runCleanup performs all cleanup operations. Operations run independently:
// one failing does not stop the rest.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()

	var (
		errs        []error
		allCanceled = true
		results     = make([]opResult, 0, 5)
	)
	for _, op := range s.cleanupOps() {
		count, err := op.run(ctx)
		results = append(results, opResult{
			name:  op.name,
			count: count,
			err:   suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op.label, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	s.emitCleanupMetrics(results, time.Since(start))

	if len(errs) == 0 {
		return nil
	}
	if allCanceled {
		return context.Canceled
	}
	return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
}

// drainBatches repeats one bounded operation until it reports no more rows,
// checking the context between batches.
func drainBatches(ctx context.Context, batch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := batch(ctx)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// failStalePendingJobs marks pending jobs older than the configured max age
// as failed.
func (s *ReaperService) failStalePendingJobs(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.FailStalePendingJobs(ctx, s.config.PendingMaxAge, s.config.BatchSize)
	})
	if err != nil {
		return total, err
	}

	s.logReaped(ctx, "failed stale pending jobs", total, "max_age", s.config.PendingMaxAge)
	return total, nil
}

func (s *ReaperService) deleteOldCompletedJobs(ctx context.Context) (int64, error) {
	return s.deleteOldJobs(ctx, model.JobStatusCompleted, s.config.CompletedMaxAge, "deleted old completed jobs")
}

func (s *ReaperService) deleteOldFailedJobs(ctx context.Context) (int64, error) {
	return s.deleteOldJobs(ctx, model.JobStatusFailed, s.config.FailedMaxAge, "deleted old failed jobs")
}

// deleteOldJobs deletes terminal jobs in one status older than maxAge.
func (s *ReaperService) deleteOldJobs(
	ctx context.Context,
	status model.JobStatus,
	maxAge time.Duration,
	logMsg string,
) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    status,
			MaxAge:    maxAge,
			BatchSize: s.config.BatchSize,
		})
	})
	if err != nil {
		return total, err
	}

	s.logReaped(ctx, logMsg, total, "max_age", maxAge)
	return total, nil
}

// pruneRawAnalytics removes raw page views and interactions past the
// retention window. Rollups in analytics_daily are kept indefinitely.
func (s *ReaperService) pruneRawAnalytics(ctx context.Context) (int64, error) {
	if s.analytics == nil || s.rawRetention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-s.rawRetention)
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.analytics.DeleteRawBefore(ctx, cutoff, s.config.BatchSize)
	})
	if err != nil {
		return total, err
	}

	s.logReaped(ctx, "pruned raw analytics rows", total, "retention", s.rawRetention)
	return total, nil
}

// deleteOldReminderLogs removes sent-reminder ledger rows older than the
// configured max age.
func (s *ReaperService) deleteOldReminderLogs(ctx context.Context) (int64, error) {
	if s.reminders == nil {
		return 0, nil
	}

	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.reminders.DeleteOldLogs(ctx, s.config.ReminderLogMaxAge, s.config.BatchSize)
	})
	if err != nil {
		return total, err
	}

	s.logReaped(ctx, "deleted old reminder logs", total, "max_age", s.config.ReminderLogMaxAge)
	return total, nil
}

// logReaped records a cleanup operation that removed at least one row.
func (s *ReaperService) logReaped(ctx context.Context, msg string, count int64, attrs ...any) {
	if count == 0 || s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, append([]any{"count", count}, attrs...)...)
}

func (s *ReaperService) emitCleanupMetrics(results []opResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var (
		total    int64
		firstErr error
	)
	for _, r := range results {
		total += r.count
		if firstErr == nil {
			firstErr = r.err
		}
	}

	tags := map[string]string{"result": cleanupResult(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, r := range results {
		s.emitOperationMetric(r)
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitOperationMetric(r opResult) {
	tags := map[string]string{
		"operation": r.name,
		"result":    cleanupResult(r.count, r.err),
	}
	if r.err != nil {
		if class := obserrors.Classify(r.err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if r.err == nil && r.count > 0 {
		s.metrics.Count("reaper.rows_processed", r.count, metrics.CloneTags(tags))
	}
}

func cleanupResult(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
