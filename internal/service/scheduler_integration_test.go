package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDBScheduler wires a scheduler service against the real repositories,
// the same way the runner does in production.
func newDBScheduler(db *sql.DB, overrun domain.OverrunPolicy) *SchedulerService {
	cfg := core.DefaultSchedulerConfig()
	cfg.Strategy.Overrun = overrun

	jobs := data.NewJobRepo(db, data.RepoConfig{})
	return NewSchedulerService(SchedulerServiceOptions{
		Repo:            data.NewScheduledJobsRepo(db),
		Jobs:            jobs,
		JobIntrospector: jobs,
		Config:          &cfg,
	})
}

// uniqueTaskName builds a task name no other test (or the seeded tasks)
// uses, since the suite may share one database. The prefix before ":"
// is not a job type, so jobs enqueued for it get the default type.
func uniqueTaskName(label string) string {
	return fmt.Sprintf("svc_%s_%d:tick", label, time.Now().UnixNano())
}

// taskOverrides carries optional column values for insertTickTask.
type taskOverrides struct {
	Payload       string
	Interval      string
	OverrunPolicy *domain.OverrunPolicy
	OverrunStates *domain.OverrunStateMask
}

func insertTickTask(t *testing.T, db *sql.DB, taskName string, opts taskOverrides) string {
	t.Helper()

	payload := opts.Payload
	if payload == "" {
		payload = `{"window_minutes":30}`
	}
	interval := opts.Interval
	if interval == "" {
		interval = "30 seconds"
	}

	var policy any
	if opts.OverrunPolicy != nil {
		policy = string(*opts.OverrunPolicy)
	}
	var states any
	if opts.OverrunStates != nil {
		states = int16(*opts.OverrunStates)
	}

	var taskID string
	err := db.QueryRow(`
		INSERT INTO scheduled_jobs (task_name, payload, scheduled_interval, overrun_policy, overrun_state_mask)
		VALUES ($1, $2, $3::interval, $4, $5)
		RETURNING id
	`, taskName, payload, interval, policy, states).Scan(&taskID)
	require.NoError(t, err)
	return taskID
}

// insertTaskJob seeds a queue job carrying the scheduler task name in
// its metadata, the shape the introspector matches on.
func insertTaskJob(t *testing.T, db *sql.DB, taskName, status string, leaseExpires *time.Time) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO jobs (type, status, payload, metadata, lease_expires_at)
		VALUES ($1, $2, '{}', jsonb_build_object('scheduler.task_name', $3::text), $4)
	`, model.JobTypeReminders, status, taskName, leaseExpires)
	require.NoError(t, err)
}

func jobsForTask(t *testing.T, db *sql.DB, taskName string) []model.Job {
	t.Helper()

	rows, err := db.Query(`
		SELECT id, type, status, payload, metadata, created_at
		FROM jobs
		WHERE metadata->>'scheduler.task_name' = $1
		ORDER BY created_at
	`, taskName)
	require.NoError(t, err)
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var job model.Job
		err := rows.Scan(&job.ID, &job.Type, &job.Status, &job.Payload, &job.Metadata, &job.CreatedAt)
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	require.NoError(t, rows.Err())
	return jobs
}

func taskScheduleState(t *testing.T, db *sql.DB, taskID string) (lastQueued sql.NullTime, fireKey sql.NullString) {
	t.Helper()

	err := db.QueryRow(
		"SELECT last_queued_at, active_fire_key FROM scheduled_jobs WHERE id = $1",
		taskID,
	).Scan(&lastQueued, &fireKey)
	require.NoError(t, err)
	return lastQueued, fireKey
}

func TestSchedulerService_Integration_QueuePolicy(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		scheduler := newDBScheduler(db, domain.OverrunPolicyQueue)

		taskName := uniqueTaskName("queue")
		taskID := insertTickTask(t, db, taskName, taskOverrides{})

		// The seeded recurring tasks may also fire on this tick, so the
		// processed count is a floor, and job assertions stay scoped to
		// this test's task name.
		processed, err := scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, 1)

		jobs := jobsForTask(t, db, taskName)
		require.Len(t, jobs, 1)
		assert.Equal(t, model.JobTypeReminders, jobs[0].Type)
		assert.JSONEq(t, `{"window_minutes":30}`, string(jobs[0].Payload))

		var meta map[string]string
		require.NoError(t, json.Unmarshal(jobs[0].Metadata, &meta))
		assert.Equal(t, taskName, meta["scheduler.task_name"])
		assert.Equal(t, "30s", meta["scheduler.interval"])
		require.NotEmpty(t, meta["scheduler.fire_key"])

		// The queue policy stamps the schedule after the enqueue,
		// recording the slot's fire key with it.
		lastQueued, fireKey := taskScheduleState(t, db, taskID)
		assert.True(t, lastQueued.Valid)
		require.True(t, fireKey.Valid)
		assert.Equal(t, meta["scheduler.fire_key"], fireKey.String)

		// A second tick in the same interval finds the task not due and
		// leaves its single job alone.
		_, err = scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.Len(t, jobsForTask(t, db, taskName), 1)
	})
}

func TestSchedulerService_Integration_JobTypeFromTaskPrefix(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		scheduler := newDBScheduler(db, domain.OverrunPolicyQueue)

		// "rollup:" ahead of the unique suffix selects the rollup job
		// type, unlike the svc_* names which fall back to the default.
		taskName := fmt.Sprintf("rollup:t%d", time.Now().UnixNano())
		insertTickTask(t, db, taskName, taskOverrides{Payload: `{"day":"2025-05-31"}`})

		processed, err := scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, 1)

		jobs := jobsForTask(t, db, taskName)
		require.Len(t, jobs, 1)
		assert.Equal(t, model.JobTypeRollup, jobs[0].Type)
		assert.JSONEq(t, `{"day":"2025-05-31"}`, string(jobs[0].Payload))
	})
}

func TestSchedulerService_Integration_SkipPolicy_RunningJob(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		scheduler := newDBScheduler(db, domain.OverrunPolicySkip)

		taskName := uniqueTaskName("skip_running")
		taskID := insertTickTask(t, db, taskName, taskOverrides{})

		// A running job with a live lease blocks the enqueue.
		leaseExpires := time.Now().Add(5 * time.Minute)
		insertTaskJob(t, db, taskName, "running", &leaseExpires)

		processed, err := scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, 1)

		jobs := jobsForTask(t, db, taskName)
		require.Len(t, jobs, 1)
		assert.Equal(t, model.JobStatusRunning, jobs[0].Status)

		// The blocked slot is skipped, not deferred: the schedule still
		// advances.
		lastQueued, _ := taskScheduleState(t, db, taskID)
		assert.True(t, lastQueued.Valid)
	})
}

func TestSchedulerService_Integration_SkipPolicy_ExpiredLease(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		scheduler := newDBScheduler(db, domain.OverrunPolicySkip)

		taskName := uniqueTaskName("skip_expired")
		taskID := insertTickTask(t, db, taskName, taskOverrides{})

		// The stale running job's lease is already over, so it does not
		// count as running and the task fires normally.
		expired := time.Now().Add(-5 * time.Minute)
		insertTaskJob(t, db, taskName, "running", &expired)

		processed, err := scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, 1)

		jobs := jobsForTask(t, db, taskName)
		require.Len(t, jobs, 2)

		var pendingFound bool
		for _, job := range jobs {
			if job.Status == model.JobStatusPending {
				pendingFound = true
				assert.JSONEq(t, `{"window_minutes":30}`, string(job.Payload))
			}
		}
		require.True(t, pendingFound, "expected a fresh pending job beside the stale one")

		lastQueued, fireKey := taskScheduleState(t, db, taskID)
		assert.True(t, lastQueued.Valid)
		assert.True(t, fireKey.Valid)
	})
}

func TestSchedulerService_Integration_SkipPolicy_TaskStateMask(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		scheduler := newDBScheduler(db, domain.OverrunPolicySkip)

		// This task's own override blocks on pending work too, which the
		// default mask would let through.
		policy := domain.OverrunPolicySkip
		states := domain.OverrunStateRunning | domain.OverrunStatePending | domain.OverrunStateRetrying
		taskName := uniqueTaskName("skip_pending")
		taskID := insertTickTask(t, db, taskName, taskOverrides{
			OverrunPolicy: &policy,
			OverrunStates: &states,
		})

		insertTaskJob(t, db, taskName, "pending", nil)

		processed, err := scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, 1)

		jobs := jobsForTask(t, db, taskName)
		require.Len(t, jobs, 1)
		assert.Equal(t, model.JobStatusPending, jobs[0].Status)

		lastQueued, _ := taskScheduleState(t, db, taskID)
		assert.True(t, lastQueued.Valid)
	})
}

func TestSchedulerService_Integration_ReschedulePolicy(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		scheduler := newDBScheduler(db, domain.OverrunPolicyReschedule)

		taskName := uniqueTaskName("reschedule")
		taskID := insertTickTask(t, db, taskName, taskOverrides{})

		before := time.Now()
		processed, err := scheduler.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, 1)

		assert.Empty(t, jobsForTask(t, db, taskName), "reschedule must not enqueue jobs")

		lastQueued, _ := taskScheduleState(t, db, taskID)
		require.True(t, lastQueued.Valid)
		assert.WithinDuration(t, before, lastQueued.Time, 5*time.Second)
	})
}

func TestSchedulerService_Integration_ConcurrentSchedulers(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		replica1 := newDBScheduler(db, domain.OverrunPolicyQueue)
		replica2 := newDBScheduler(db, domain.OverrunPolicyQueue)

		taskName := uniqueTaskName("concurrent")
		taskID := insertTickTask(t, db, taskName, taskOverrides{})

		// Both replicas tick at the same instant. The advisory task lock
		// and the fire key together allow at most one enqueue per slot.
		now := time.Now()
		ready := make(chan struct{})
		errs := make(chan error, 2)
		for _, replica := range []*SchedulerService{replica1, replica2} {
			go func(s *SchedulerService) {
				<-ready
				_, err := s.Tick(ctx, now)
				errs <- err
			}(replica)
		}
		close(ready)
		for range 2 {
			require.NoError(t, <-errs)
		}

		jobs := jobsForTask(t, db, taskName)
		require.Len(t, jobs, 1, "concurrent replicas must enqueue exactly one job")
		assert.Equal(t, model.JobTypeReminders, jobs[0].Type)

		var meta map[string]string
		require.NoError(t, json.Unmarshal(jobs[0].Metadata, &meta))
		_, fireKey := taskScheduleState(t, db, taskID)
		require.True(t, fireKey.Valid)
		assert.Equal(t, fireKey.String, meta["scheduler.fire_key"])
	})
}
