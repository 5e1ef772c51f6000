package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ScheduledJobsRepository is the recurring-task store the scheduler
// ticks against. Selection locks rows so concurrent schedulers divide
// the due tasks between them instead of double-firing.
type ScheduledJobsRepository interface {
	// FindDue returns tasks whose interval has elapsed, or that never
	// fired, up to limit. Rows claimed by another scheduler are skipped.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTask, error)

	// FindDueTx is FindDue inside the caller's transaction; the rows
	// stay locked until the transaction ends.
	FindDueTx(ctx context.Context, tx *sql.Tx, p domain.FindDueParams) ([]domain.ScheduledTask, error)

	// MarkQueued stamps last_queued_at and clears the task's fire key.
	// False with a nil error means no task row matched the id.
	MarkQueued(ctx context.Context, id string, now time.Time) (bool, error)

	// MarkQueuedTx stamps last_queued_at inside the caller's
	// transaction, setting or clearing the fire key per the params.
	MarkQueuedTx(ctx context.Context, tx *sql.Tx, p domain.MarkQueuedParams) (bool, error)

	// UpdateActiveFireKeyTx sets or clears a task's fire key without
	// touching its schedule.
	UpdateActiveFireKeyTx(ctx context.Context, tx *sql.Tx, p domain.UpdateActiveFireKeyParams) error

	// TryWithTaskLock runs fn in a transaction holding the task's
	// advisory lock. Returns (false, nil) without running fn when the
	// lock is held elsewhere, (true, nil) when fn succeeded, and
	// (true, err) when fn ran and failed.
	TryWithTaskLock(
		ctx context.Context,
		taskName string,
		fn func(context.Context, *sql.Tx) error,
	) (bool, error)
}

// JobIntrospector reports what the job queue currently holds for a
// scheduled task, so overrun policies can decide whether a due task may
// fire again. A job counts as running only while its lease is live.
type JobIntrospector interface {
	RunningJobExistsByTaskName(ctx context.Context, taskName string, now time.Time) (bool, error)
	// JobStatesByTaskName aggregates the task's jobs into an overrun
	// state mask: running under a live lease, pending, pending with
	// retries.
	JobStatesByTaskName(ctx context.Context, taskName string, now time.Time) (domain.OverrunStateMask, error)
}

// JobScheduler turns due scheduled tasks into queue jobs.
type JobScheduler interface {
	// Tick processes one batch of due tasks and reports how many it
	// handled.
	Tick(ctx context.Context, now time.Time) (int, error)
}

// SchedulerConfig holds configuration for the job scheduler.
type SchedulerConfig struct {
	BatchSize       int                    `json:"batch_size"`
	DefaultJobType  model.JobType          `json:"default_job_type"`
	DefaultPriority int                    `json:"default_priority"`
	MaxRetries      int                    `json:"max_retries"`
	Strategy        domain.StrategyOptions `json:"strategy"`
}

// DefaultSchedulerConfig returns a SchedulerConfig with sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:       25,
		DefaultJobType:  model.JobTypeReminders,
		DefaultPriority: 0,
		MaxRetries:      3,
		Strategy: domain.StrategyOptions{
			Overrun:       domain.OverrunPolicySkip,
			OverrunStates: domain.OverrunStatesDefault,
		},
	}
}
