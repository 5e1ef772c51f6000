package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain"
)

// ScheduledJobsRepo stores the recurring task table the scheduler
// ticks over: the reminder scan, the analytics rollup, and whatever
// else is registered at startup. Concurrent schedulers coordinate
// through row locks on selection and per-task advisory locks.
type ScheduledJobsRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

func NewScheduledJobsRepo(db *sql.DB) *ScheduledJobsRepo {
	return &ScheduledJobsRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewScheduledJobsRepoWithTimeProvider creates a ScheduledJobsRepo with a custom TimeProvider (useful for testing).
func NewScheduledJobsRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *ScheduledJobsRepo {
	return &ScheduledJobsRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

// taskLockKey hashes a task name into the bigint keyspace of Postgres
// advisory locks, masked to stay non-negative.
func taskLockKey(taskName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(taskName))
	return int64(h.Sum64() & math.MaxInt64)
}

const scheduledJobColumns = `
  id,
  task_name,
  payload,
  EXTRACT(EPOCH FROM scheduled_interval)::bigint AS interval_seconds,
  last_queued_at,
  updated_at,
  overrun_policy,
  overrun_state_mask,
  active_fire_key
`

// A task is due when it never fired or its interval has elapsed since
// the last firing. Never-fired tasks sort first; SKIP LOCKED keeps two
// schedulers from picking up the same rows.
const findDueSQL = `
	SELECT ` + scheduledJobColumns + `
	FROM scheduled_jobs
	WHERE (last_queued_at IS NULL OR last_queued_at + scheduled_interval <= $1)
	ORDER BY
		CASE WHEN last_queued_at IS NULL THEN 0 ELSE 1 END,
		last_queued_at ASC,
		created_at ASC
	LIMIT $2
	FOR UPDATE SKIP LOCKED
`

// FindDue returns up to limit due tasks. Outside a transaction the row
// locks release as soon as the statement ends, so this is a snapshot
// for strategies that re-lock per task; use FindDueTx when selection
// and update must stay under one lock.
func (r *ScheduledJobsRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTask, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var tasks []domain.ScheduledTask
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, findDueSQL, now.UTC(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		collected, err := pgx.CollectRows(rows, rowToScheduledTask)
		if err != nil {
			return err
		}
		tasks = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query due scheduled tasks: %w", err)
	}
	return tasks, nil
}

// FindDueTx selects due tasks inside the caller's transaction, keeping
// their rows locked until it ends. Pair with MarkQueuedTx so no other
// scheduler sees the task as due between selection and update.
func (r *ScheduledJobsRepo) FindDueTx(ctx context.Context, tx *sql.Tx, p domain.FindDueParams) ([]domain.ScheduledTask, error) {
	if p.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", p.Limit)
	}

	rows, err := tx.QueryContext(ctx, findDueSQL, p.Now.UTC(), p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query due scheduled tasks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanScheduledTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled tasks: %w", err)
	}
	return tasks, nil
}

// Fire-key columns are written as one nullable pair: a nil key clears
// both, a set key records when it was set.
const markQueuedSQL = `
	UPDATE scheduled_jobs
	SET last_queued_at = $2,
	    updated_at = $3,
	    active_fire_key = $4,
	    active_fire_key_set_at = $5
	WHERE id = $1
`

// MarkQueued stamps last_queued_at and clears any fire key. False with
// a nil error means no task row matched the id.
func (r *ScheduledJobsRepo) MarkQueued(ctx context.Context, id string, now time.Time) (bool, error) {
	key, setAt := fireKeyValues(nil, nil, time.Time{})
	res, err := r.DB.ExecContext(ctx, markQueuedSQL, id, now.UTC(), r.timeProvider.Now().UTC(), key, setAt)
	if err != nil {
		return false, fmt.Errorf("update scheduled task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkQueuedTx stamps last_queued_at inside the caller's transaction,
// setting or clearing the fire key per the params. Use with FindDueTx
// so selection and update happen under the same row lock.
func (r *ScheduledJobsRepo) MarkQueuedTx(ctx context.Context, tx *sql.Tx, p domain.MarkQueuedParams) (bool, error) {
	now := r.timeProvider.Now().UTC()
	key, setAt := fireKeyValues(p.ActiveFireKey, p.ActiveFireKeySetAt, now)

	res, err := tx.ExecContext(ctx, markQueuedSQL, p.ID, p.Now.UTC(), now, key, setAt)
	if err != nil {
		return false, fmt.Errorf("update scheduled task (tx): %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected (tx): %w", err)
	}
	return affected > 0, nil
}

// UpdateActiveFireKeyTx sets or clears a task's fire key without
// touching its schedule.
func (r *ScheduledJobsRepo) UpdateActiveFireKeyTx(ctx context.Context, tx *sql.Tx, p domain.UpdateActiveFireKeyParams) error {
	now := r.timeProvider.Now().UTC()
	key, setAt := fireKeyValues(p.FireKey, &p.SetAt, now)

	if _, err := tx.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET updated_at = $2,
		    active_fire_key = $3,
		    active_fire_key_set_at = $4
		WHERE id = $1
	`, p.ID, now, key, setAt); err != nil {
		return fmt.Errorf("update active fire key: %w", err)
	}
	return nil
}

// fireKeyValues resolves the nullable fire-key column pair. A nil or
// blank key clears both columns; otherwise the set-at timestamp is
// taken from setAt when present, the fallback when not.
func fireKeyValues(key *string, setAt *time.Time, fallback time.Time) (*string, *time.Time) {
	if key == nil {
		return nil, nil
	}
	k := strings.TrimSpace(*key)
	if k == "" {
		return nil, nil
	}

	ts := fallback.UTC()
	if setAt != nil && !setAt.IsZero() {
		ts = setAt.UTC()
	}
	return &k, &ts
}

// TryWithTaskLock runs fn in a transaction holding the task's advisory
// lock, or reports (false, nil) without running fn when another holder
// has it. The transaction commits even when fn fails: bookkeeping fn
// wrote before the failure stays, and fn's error is returned alongside
// locked=true.
func (r *ScheduledJobsRepo) TryWithTaskLock(
	ctx context.Context,
	taskName string,
	fn func(context.Context, *sql.Tx) error,
) (bool, error) {
	var locked bool
	var fnErr error

	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1)", taskLockKey(taskName)).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock for task %s: %w", taskName, err)
			}
			if !locked {
				return nil
			}
			fnErr = fn(ctx, tx)
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return locked, fnErr
}

// scheduledTaskRow mirrors scheduledJobColumns so both pgx struct
// collection and database/sql scanning land in one place.
type scheduledTaskRow struct {
	ID               string         `db:"id"`
	TaskName         string         `db:"task_name"`
	Payload          []byte         `db:"payload"`
	IntervalSeconds  sql.NullInt64  `db:"interval_seconds"`
	LastQueuedAt     sql.NullTime   `db:"last_queued_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	OverrunPolicy    sql.NullString `db:"overrun_policy"`
	OverrunStateMask sql.NullInt64  `db:"overrun_state_mask"`
	ActiveFireKey    sql.NullString `db:"active_fire_key"`
}

func (row *scheduledTaskRow) toDomain() domain.ScheduledTask {
	task := domain.ScheduledTask{
		ID:        row.ID,
		TaskName:  row.TaskName,
		UpdatedAt: row.UpdatedAt,
	}

	if row.IntervalSeconds.Valid {
		task.Interval = time.Duration(row.IntervalSeconds.Int64) * time.Second
	}
	if row.Payload != nil {
		task.Payload = json.RawMessage(row.Payload)
	}
	if row.LastQueuedAt.Valid {
		task.LastQueuedAt = &row.LastQueuedAt.Time
	}
	if row.OverrunPolicy.Valid {
		p := domain.OverrunPolicy(row.OverrunPolicy.String)
		task.OverrunPolicy = &p
	}
	if row.OverrunStateMask.Valid {
		if val := row.OverrunStateMask.Int64; val >= 0 && val <= math.MaxUint8 {
			mask := domain.OverrunStateMask(val)
			task.OverrunStates = &mask
		}
	}
	if row.ActiveFireKey.Valid {
		if key := strings.TrimSpace(row.ActiveFireKey.String); key != "" {
			task.ActiveFireKey = &key
		}
	}

	return task
}

func rowToScheduledTask(row pgx.CollectableRow) (domain.ScheduledTask, error) {
	dbRow, err := pgx.RowToStructByName[scheduledTaskRow](row)
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("scan scheduled task row: %w", err)
	}
	return dbRow.toDomain(), nil
}

func scanScheduledTask(rows *sql.Rows) (domain.ScheduledTask, error) {
	var row scheduledTaskRow
	if err := rows.Scan(
		&row.ID,
		&row.TaskName,
		&row.Payload,
		&row.IntervalSeconds,
		&row.LastQueuedAt,
		&row.UpdatedAt,
		&row.OverrunPolicy,
		&row.OverrunStateMask,
		&row.ActiveFireKey,
	); err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("scan scheduled task row: %w", err)
	}
	return row.toDomain(), nil
}
