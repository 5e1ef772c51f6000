package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/model"
)

const defaultMaxJobRetries = 3

// jobChannel names the NOTIFY channel for a job type. The insert and
// wait sides must agree on it.
func jobChannel(t model.JobType) string {
	return "job_added_" + string(t)
}

// Create validates and inserts a pending job, then notifies waiting
// workers of that type. Insert and notify share one transaction so a
// woken worker always finds the row.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	ins, err := r.newJobInsert(req)
	if err != nil {
		return nil, err
	}

	var job *model.Job
	if err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJob(ctx, tx, ins)
			return insertErr
		},
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// CreateInTx inserts a job inside the caller's transaction, so a job
// enqueues atomically with the domain write that wants it. The
// notification only reaches workers if the caller commits.
func (r *JobRepo) CreateInTx(ctx context.Context, sqlTx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error) {
	if sqlTx == nil {
		return nil, errors.New("transaction is required")
	}
	ins, err := r.newJobInsert(req)
	if err != nil {
		return nil, err
	}

	query, args := ins.query()
	job, err := scanJob(sqlTx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, jobChannel(req.Type), job.ID); err != nil {
		return nil, fmt.Errorf("send job notification: %w", err)
	}
	return job, nil
}

// jobInsert is a validated, encoded job ready to insert.
type jobInsert struct {
	req         *model.CreateJobRequest
	payload     []byte
	meta        []byte
	maxRetries  int
	scheduledAt time.Time
}

func (r *JobRepo) newJobInsert(req *model.CreateJobRequest) (*jobInsert, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	meta := []byte(`{}`)
	if req.Metadata != nil {
		if meta, err = json.Marshal(req.Metadata); err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxJobRetries
	}
	scheduledAt := r.timeProvider.Now().UTC()
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}

	return &jobInsert{
		req:         req,
		payload:     payload,
		meta:        meta,
		maxRetries:  maxRetries,
		scheduledAt: scheduledAt,
	}, nil
}

func (ins *jobInsert) query() (string, []any) {
	const q = `
      INSERT INTO jobs(type, status, priority, payload, metadata, event_id, business_id, scheduled_at, max_retries)
      VALUES ($1,'pending',$2,$3,$4,$5,$6,$7,$8)
      RETURNING ` + jobColumns

	return q, []any{
		ins.req.Type,
		ins.req.Priority,
		ins.payload,
		ins.meta,
		ins.req.EventID,
		ins.req.BusinessID,
		ins.scheduledAt,
		ins.maxRetries,
	}
}

func (r *JobRepo) insertJob(ctx context.Context, tx pgx.Tx, ins *jobInsert) (*model.Job, error) {
	query, args := ins.query()
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, err := collectOneJob(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("collect job: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, jobChannel(ins.req.Type), job.ID); err != nil {
		return nil, fmt.Errorf("send job notification: %w", err)
	}
	return job, nil
}

// collectOneJob reads a single job from pgx rows, pgx.ErrNoRows when
// the result set is empty.
func collectOneJob(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	job, err := scanJob(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one jobColumns row, normalizing timestamps to UTC and
// absent JSON to an empty object.
func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job                                    model.Job
		payload, metadata                      []byte
		eventID, businessID, lastError         sql.NullString
		startedAt, completedAt, leaseExpiresAt sql.NullTime
	)
	if err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.Priority,
		&payload,
		&metadata,
		&eventID,
		&businessID,
		&job.ScheduledAt,
		&startedAt,
		&completedAt,
		&job.RetryCount,
		&job.MaxRetries,
		&lastError,
		&leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Payload = jsonOrEmpty(payload)
	job.Metadata = jsonOrEmpty(metadata)
	job.EventID = nullableStr(eventID)
	job.BusinessID = nullableStr(businessID)
	job.LastError = nullableStr(lastError)
	job.StartedAt = nullableUTC(startedAt)
	job.CompletedAt = nullableUTC(completedAt)
	job.LeaseExpiresAt = nullableUTC(leaseExpiresAt)
	return &job, nil
}

func jsonOrEmpty(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func nullableStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableUTC(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Due jobs are claimed highest priority first, oldest schedule first.
// SKIP LOCKED keeps concurrent workers off each other's rows.
const reserveNextSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE type = $1 AND status = 'pending' AND scheduled_at <= $2
    ORDER BY priority DESC, scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'running',
    started_at = COALESCE(j.started_at, $3),
    lease_expires_at = $4,
    updated_at = $5
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.type, j.status, j.priority, j.payload, j.metadata, j.event_id, j.business_id, j.scheduled_at, j.started_at, j.completed_at, j.retry_count, j.max_retries, j.last_error, j.lease_expires_at, j.created_at, j.updated_at`

// ReserveNext claims the next due job of the given type and starts its
// lease. Expired leases of that type are requeued first, so a crashed
// worker's jobs rejoin the queue before new claims are handed out.
// Returns model.ErrNoJobsAvailable when nothing is due.
func (r *JobRepo) ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("invalid job type: %s", jobType)
	}
	if _, err := r.requeueExpired(ctx, jobType); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now()
			lease := now.Add(time.Duration(leaseSeconds) * time.Second)

			rows, err := tx.Query(ctx, reserveNextSQL, jobType, now.UTC(), now.UTC(), lease.UTC(), now.UTC())
			if err != nil {
				return fmt.Errorf("reserve job: %w", err)
			}
			defer rows.Close()

			j, err := collectOneJob(rows)
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if err != nil {
				return fmt.Errorf("reserve job: %w", err)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Requeue passes serialize per job type through an advisory lock in
// class 1001. Losing the lock means another worker is requeueing the
// same type right now, so this pass can skip.
const requeueLockClass int64 = 1001

func requeueLockKey(jobType model.JobType) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobType))
	return int64(h.Sum32() & math.MaxInt32)
}

// requeueExpired flips running jobs with lapsed leases back to pending
// and reports how many moved.
func (r *JobRepo) requeueExpired(ctx context.Context, jobType model.JobType) (int64, error) {
	var requeued int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				requeueLockClass, requeueLockKey(jobType),
			).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			res, err := tx.ExecContext(ctx, `
          UPDATE jobs
          SET status = 'pending', lease_expires_at = NULL
          WHERE type = $1 AND status = 'running'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $2
        `, jobType, r.timeProvider.Now().UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			if requeued, err = res.RowsAffected(); err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return requeued, nil
}

// Heartbeat extends the lease on a running job. A false return means
// the job is no longer running, so the worker should stop processing
// it; the row may already have been requeued to another worker.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, jobID, now.Add(time.Duration(leaseSeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return affected > 0, nil
}

// Complete marks a running job completed. False means no running row
// matched: the job already finished, or its lease lapsed and the row
// went back to pending.
func (r *JobRepo) Complete(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = 'completed',
		    completed_at = $2,
		    updated_at = $3,
		    lease_expires_at = NULL,
		    last_error = NULL
		WHERE id = $1 AND status = 'running'
		RETURNING metadata->>'scheduler.task_name', metadata->>'scheduler.fire_key'
	`

	var taskName, fireKey sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id, now, now).Scan(&taskName, &fireKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	if taskName.Valid && fireKey.Valid {
		r.releaseSchedulerFire(ctx, id, model.JobStatusCompleted, taskName.String, fireKey.String)
	}
	return true, nil
}

// Fail records a failure on a running job. The job returns to pending
// with a retry delay until max_retries is exhausted, then goes to
// failed for good. False mirrors Complete: no running row matched.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	now := r.timeProvider.Now()
	retryAt := now.Add(time.Duration(r.retryDelaySeconds) * time.Second)

	query := `
      UPDATE jobs
      SET
        last_error = $2,
        retry_count = retry_count + 1,
        status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
        completed_at = CASE WHEN retry_count + 1 >= max_retries THEN $3::timestamptz ELSE NULL END,
        lease_expires_at = NULL,
        scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
                            ELSE $4::timestamptz END,
        updated_at = $5
      WHERE id = $1 AND status = 'running'
      RETURNING status, metadata->>'scheduler.task_name', metadata->>'scheduler.fire_key'
    `

	var status string
	var taskName, fireKey sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id, errMsg, now.UTC(), retryAt.UTC(), now.UTC()).Scan(&status, &taskName, &fireKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	// A retriable failure keeps its fire key, so the scheduler treats
	// the retry as part of the same firing.
	if status == string(model.JobStatusFailed) && taskName.Valid && fireKey.Valid {
		r.releaseSchedulerFire(ctx, id, model.JobStatusFailed, taskName.String, fireKey.String)
	}
	return true, nil
}

// releaseSchedulerFire finishes the bookkeeping for a job the scheduler
// fired: the task's fire key is released and job_meta records the
// terminal status. Failures are logged rather than returned; the job
// row itself already reached its final state.
func (r *JobRepo) releaseSchedulerFire(ctx context.Context, id string, status model.JobStatus, taskName, fireKey string) {
	if err := r.clearActiveFireKey(ctx, taskName, fireKey); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "clear active fire key failed",
			"task_name", taskName,
			"fire_key", fireKey,
			"error", err,
		)
	}
	if err := r.updateJobMetaStatus(ctx, id, status); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "update job_meta status failed",
			"job_id", id,
			"status", status,
			"error", err,
		)
	}
}

// clearActiveFireKey releases a scheduled task's fire key, but only if
// it still holds the given value; a newer firing is left alone.
func (r *JobRepo) clearActiveFireKey(ctx context.Context, taskName, fireKey string) error {
	if strings.TrimSpace(taskName) == "" || strings.TrimSpace(fireKey) == "" {
		return nil
	}

	if _, err := r.DB.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET active_fire_key = NULL,
		    active_fire_key_set_at = NULL,
		    updated_at = $3
		WHERE task_name = $1
		  AND active_fire_key = $2
	`, taskName, fireKey, r.timeProvider.Now().UTC()); err != nil {
		return fmt.Errorf("clear active fire key: %w", err)
	}
	return nil
}

// updateJobMetaStatus upserts the last status seen for a job into
// job_meta, where scheduler diagnostics read it.
func (r *JobRepo) updateJobMetaStatus(ctx context.Context, id string, status model.JobStatus) error {
	if strings.TrimSpace(id) == "" || !status.Valid() {
		return nil
	}

	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO job_meta (job_id, last_status, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (job_id) DO UPDATE
		SET last_status = EXCLUDED.last_status,
		    updated_at = now()
	`, id, status); err != nil {
		return fmt.Errorf("update job_meta status: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID, ErrJobNotFound when absent.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectOneJob(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Stats counts jobs of the given type per status.
func (r *JobRepo) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM jobs
  WHERE type = $1
  `, jobType).Scan(
		&s.Pending,
		&s.Running,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &s, nil
}

// JobStatesByTaskName reports which queue states currently exist for a
// scheduled task's jobs. Overrun policies read the mask to decide
// whether a due task may fire again.
func (r *JobRepo) JobStatesByTaskName(ctx context.Context, taskName string, now time.Time) (domain.OverrunStateMask, error) {
	query := `
		SELECT
			COALESCE(bool_or(status = 'running' AND lease_expires_at > $1), FALSE) AS has_running,
			COALESCE(bool_or(status = 'pending'), FALSE) AS has_pending,
			COALESCE(bool_or(status = 'pending' AND COALESCE(retry_count, 0) > 0), FALSE) AS has_retrying
		FROM jobs
		WHERE metadata->>'scheduler.task_name' = $2
		  AND status IN ('running', 'pending')
	`

	var hasRunning, hasPending, hasRetrying bool
	if err := r.DB.QueryRowContext(ctx, query, now.UTC(), taskName).Scan(&hasRunning, &hasPending, &hasRetrying); err != nil {
		return 0, fmt.Errorf("check job states by task name: %w", err)
	}

	var mask domain.OverrunStateMask
	if hasRunning {
		mask |= domain.OverrunStateRunning
	}
	if hasPending {
		mask |= domain.OverrunStatePending
	}
	if hasRetrying {
		mask |= domain.OverrunStateRetrying
	}
	return mask, nil
}

// RunningJobExistsByTaskName reports whether a scheduled task has a job
// running under an unexpired lease.
func (r *JobRepo) RunningJobExistsByTaskName(ctx context.Context, taskName string, now time.Time) (bool, error) {
	mask, err := r.JobStatesByTaskName(ctx, taskName, now)
	if err != nil {
		return false, err
	}
	return mask.Has(domain.OverrunStateRunning), nil
}

// Delete removes a finished or not-yet-started job. Running jobs and
// jobs under an active lease are refused with the matching sentinel.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	now := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id = $1
		  AND status IN ('pending', 'completed', 'failed')
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $2)
	`, id, now.UTC())
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// The delete matched nothing; look at the row to say why.
	job, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("re-check job after delete: %w", err)
	}
	if !isJobStatusDeletable(job.Status) {
		return ErrJobNotDeletable
	}
	if job.LeaseExpiresAt != nil && now.Before(*job.LeaseExpiresAt) {
		return ErrJobReserved
	}
	return errors.New("job looked deletable but delete removed nothing")
}

// DeletePendingByEvent deletes pending jobs tied to an event. Running
// jobs and jobs with an active lease are left alone; their handlers
// re-check the event. Returns the number deleted.
func (r *JobRepo) DeletePendingByEvent(ctx context.Context, eventID string) (int, error) {
	if strings.TrimSpace(eventID) == "" {
		return 0, errors.New("event id is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE event_id = $1
		  AND status = 'pending'
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $2)
	`, eventID, r.timeProvider.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete jobs by event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(affected), nil
}

func isJobStatusDeletable(status model.JobStatus) bool {
	return status == model.JobStatusPending ||
		status == model.JobStatusCompleted ||
		status == model.JobStatusFailed
}

// WaitForNotification blocks until a NOTIFY lands on the job type's
// channel, the context is cancelled, or the connection drops. Waking is
// a hint to poll, not a delivery guarantee; queue workers still sweep
// on a timer.
func (r *JobRepo) WaitForNotification(ctx context.Context, jobType model.JobType) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	channel := jobChannel(jobType)
	quoted := pgx.Identifier{channel}.Sanitize()
	if _, err := conn.ExecContext(ctx, "LISTEN "+quoted); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	// UNLISTEN runs on a fresh context: the connection goes back to the
	// pool, so the subscription must be dropped even after cancellation.
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "UNLISTEN "+quoted)
	}()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", dc)
		}
		_, err := std.Conn().WaitForNotification(ctx)
		return err
	})
}
