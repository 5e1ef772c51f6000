package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/popmap/popmap-api/internal/domain"
)

// ScheduledTaskRegistrar writes recurring task definitions into
// scheduled_jobs by task name. Startup syncs the binary's task list
// through it; the scheduler tick loop reads the rows back through
// ScheduledJobsRepo.
type ScheduledTaskRegistrar struct {
	DB *sql.DB
}

func NewScheduledTaskRegistrar(db *sql.DB) *ScheduledTaskRegistrar {
	return &ScheduledTaskRegistrar{DB: db}
}

// Upsert creates or updates the task named in req. The schedule
// position survives an update: last_queued_at is left alone, so a
// redeploy does not make every task immediately due. Overrun settings
// only change when req carries them, keeping values tuned directly in
// the database across restarts that leave them unset.
func (r *ScheduledTaskRegistrar) Upsert(ctx context.Context, req domain.UpsertTaskParams) error {
	if req.TaskName == "" {
		return errors.New("task name is required")
	}
	secs := int64(req.Interval / time.Second)
	if secs <= 0 {
		return errors.New("interval must be positive")
	}

	var policy any
	if req.OverrunPolicy != nil {
		policy = string(*req.OverrunPolicy)
	}
	var stateMask any
	if req.OverrunStates != nil {
		stateMask = int16(*req.OverrunStates)
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (task_name, payload, scheduled_interval, overrun_policy, overrun_state_mask, created_at, updated_at)
		VALUES ($1, COALESCE($2, '{}'::jsonb), ($3::int * interval '1 second'), $4, $5, $6, $6)
		ON CONFLICT (task_name) DO UPDATE
		SET payload = EXCLUDED.payload,
		    scheduled_interval = EXCLUDED.scheduled_interval,
		    overrun_policy = COALESCE(EXCLUDED.overrun_policy, scheduled_jobs.overrun_policy),
		    overrun_state_mask = COALESCE(EXCLUDED.overrun_state_mask, scheduled_jobs.overrun_state_mask),
		    updated_at = EXCLUDED.updated_at
	`, req.TaskName, req.Payload, secs, policy, stateMask, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert scheduled task: %w", err)
	}
	return nil
}
