package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/testutil"
)

// TestJobRepo_Integration_CreateAndReserve tests the full flow of creating and reserving jobs.
func TestJobRepo_Integration_CreateAndReserve(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Create multiple jobs with different priorities
		jobs := []*model.CreateJobRequest{
			{
				Type:     model.JobTypeEmail,
				Payload:  json.RawMessage(`{"template": "event_reminder", "to": "low@example.com"}`),
				Priority: 25,
			},
			{
				Type:     model.JobTypeEmail,
				Payload:  json.RawMessage(`{"template": "event_reminder", "to": "high@example.com"}`),
				Priority: 75,
			},
			{
				Type:     model.JobTypeEmail,
				Payload:  json.RawMessage(`{"template": "event_reminder", "to": "medium@example.com"}`),
				Priority: 50,
			},
		}

		for _, req := range jobs {
			_, err := repo.Create(context.Background(), req)
			require.NoError(t, err)
		}

		// Reserve jobs and verify they come out in priority order
		reserved1, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		assert.Equal(t, 75, reserved1.Priority) // Highest priority first

		reserved2, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		assert.Equal(t, 50, reserved2.Priority) // Medium priority second

		reserved3, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		assert.Equal(t, 25, reserved3.Priority) // Lowest priority last

		// No more jobs available
		_, err = repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_JobLifecycle tests the complete lifecycle of a job.
func TestJobRepo_Integration_JobLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		// Use a fixed time provider to control time for retry delays
		fixedTime := testutil.TestTime()
		timeProvider := NewFixedTimeProvider(fixedTime)
		repo := NewJobRepo(db, RepoConfig{
			RetryDelaySeconds: 5,
			TimeProvider:      timeProvider,
		})

		// 1. Create a job
		req := &model.CreateJobRequest{
			Type:       model.JobTypeEmail,
			Payload:    json.RawMessage(`{"template": "form_submission", "to": "owner@example.com"}`),
			MaxRetries: 2,
		}
		job, err := repo.Create(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)

		// 2. Reserve the job
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reserved.ID)
		assert.Equal(t, model.JobStatusRunning, reserved.Status)
		assert.NotNil(t, reserved.StartedAt)
		assert.NotNil(t, reserved.LeaseExpiresAt)

		// 3. Extend the lease (heartbeat)
		success, err := repo.Heartbeat(context.Background(), job.ID, 60)
		require.NoError(t, err)
		assert.True(t, success)

		// 4. Fail the job (first attempt)
		success, err = repo.Fail(context.Background(), job.ID, "first failure")
		require.NoError(t, err)
		assert.True(t, success)

		// 5. Job should be back to pending for retry, but it has a retry delay
		// Advance time beyond the retry delay (5 seconds) to make the job available
		timeProvider.AddTime(6 * time.Second)

		retryJob, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, retryJob.ID)
		assert.Equal(t, 1, retryJob.RetryCount)
		assert.Equal(t, "first failure", *retryJob.LastError)

		// 6. Complete the job on retry
		success, err = repo.Complete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.True(t, success)

		// 7. Job should no longer be available
		_, err = repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_ConcurrentReservation tests concurrent job reservation.
func TestJobRepo_Integration_ConcurrentReservation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Create a single job
		req := &model.CreateJobRequest{
			Type:    model.JobTypeEmail,
			Payload: json.RawMessage(`{"template": "form_submission", "to": "owner@example.com"}`),
		}
		job, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// Try to reserve the same job concurrently
		results := make(chan *model.Job, 2)
		errors := make(chan error, 2)

		for range 2 {
			go func() {
				reserved, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
				if err != nil {
					errors <- err
				} else {
					results <- reserved
				}
			}()
		}

		// One should succeed, one should fail
		var successCount, errorCount int
		var reservedJob *model.Job

		for range 2 {
			select {
			case job := <-results:
				successCount++
				reservedJob = job
			case err := <-errors:
				errorCount++
				require.ErrorIs(t, err, model.ErrNoJobsAvailable)
			case <-time.After(5 * time.Second):
				t.Fatal("Test timed out")
			}
		}

		assert.Equal(t, 1, successCount, "Exactly one goroutine should succeed")
		assert.Equal(t, 1, errorCount, "Exactly one goroutine should fail")
		if reservedJob != nil {
			assert.Equal(t, job.ID, reservedJob.ID)
		}
	})
}

// TestJobRepo_Integration_Stats tests job statistics.
func TestJobRepo_Integration_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Create jobs with different priorities to control reservation order
		// 2 pending jobs (lowest priorities - won't be reserved)
		for i := range 2 {
			req := &model.CreateJobRequest{
				Type:     model.JobTypeEmail,
				Payload:  json.RawMessage(`{"template": "form_submission", "to": "pending@example.com"}`),
				Priority: 10 + i, // Low priorities: 10, 11
			}
			_, err := repo.Create(context.Background(), req)
			require.NoError(t, err)
		}

		// 1 running job (medium priority - will be reserved second)
		req := &model.CreateJobRequest{
			Type:     model.JobTypeEmail,
			Payload:  json.RawMessage(`{"template": "form_submission", "to": "running@example.com"}`),
			Priority: 40,
		}
		runningJob, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// 1 completed job (highest priority - will be reserved first)
		req = &model.CreateJobRequest{
			Type:     model.JobTypeEmail,
			Payload:  json.RawMessage(`{"template": "form_submission", "to": "completed@example.com"}`),
			Priority: 50,
		}
		completedJob, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// 1 failed job (third highest priority - will be reserved third)
		req = &model.CreateJobRequest{
			Type:       model.JobTypeEmail,
			Payload:    json.RawMessage(`{"template": "form_submission", "to": "failed@example.com"}`),
			Priority:   30,
			MaxRetries: 1,
		}
		failedJob, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// Process jobs in priority order (highest first)
		// 1. Reserve and complete the completed job (priority 50)
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		require.Equal(t, completedJob.ID, reserved.ID)
		_, err = repo.Complete(context.Background(), reserved.ID)
		require.NoError(t, err)

		// 2. Reserve the running job (priority 40) and leave it running
		reserved, err = repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		require.Equal(t, runningJob.ID, reserved.ID)

		// 3. Reserve and fail the failed job (priority 30)
		reserved, err = repo.ReserveNext(context.Background(), model.JobTypeEmail, 30)
		require.NoError(t, err)
		require.Equal(t, failedJob.ID, reserved.ID)
		// With MaxRetries=1, first failure should immediately mark it as failed
		_, err = repo.Fail(context.Background(), reserved.ID, "failure that exceeds max retries")
		require.NoError(t, err)

		// 4. Leave the 2 pending jobs (priorities 10, 11) unreserved

		// Get stats
		stats, err := repo.Stats(context.Background(), model.JobTypeEmail)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Pending)
		assert.Equal(t, 1, stats.Running)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
	})
}

// TestJobRepo_Integration_EventAssociation tests the event_id and business_id columns.
func TestJobRepo_Integration_EventAssociation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		// Without an association both columns stay NULL
		req1 := &model.CreateJobRequest{
			Type:    model.JobTypeEmail,
			Payload: json.RawMessage(`{"template": "form_submission", "to": "owner@example.com"}`),
		}
		job1, err := repo.Create(ctx, req1)
		require.NoError(t, err)
		assert.Nil(t, job1.EventID)
		assert.Nil(t, job1.BusinessID)

		// Reserve the job and verify fields are preserved
		reserved, err := repo.ReserveNext(ctx, model.JobTypeEmail, 30)
		require.NoError(t, err)
		assert.Equal(t, job1.ID, reserved.ID)
		assert.Nil(t, reserved.EventID)
		assert.Nil(t, reserved.BusinessID)

		// With an association the IDs round-trip through reserve
		businessID, eventID := insertEventFixture(ctx, t, db)
		req2 := testutil.NewJobRequest().
			WithPayloadString(`{"template": "event_reminder", "to": "attendee@example.com"}`).
			WithEventID(eventID).
			WithBusinessID(businessID).
			Build()
		job2, err := repo.Create(ctx, req2)
		require.NoError(t, err)
		require.NotNil(t, job2.EventID)
		require.NotNil(t, job2.BusinessID)
		assert.Equal(t, eventID, *job2.EventID)
		assert.Equal(t, businessID, *job2.BusinessID)

		reserved2, err := repo.ReserveNext(ctx, model.JobTypeEmail, 30)
		require.NoError(t, err)
		require.Equal(t, job2.ID, reserved2.ID)
		require.NotNil(t, reserved2.EventID)
		assert.Equal(t, eventID, *reserved2.EventID)

		// An event that does not exist is rejected by the FK
		bogus := "550e8400-e29b-41d4-a716-446655440999"
		_, err = repo.Create(ctx, &model.CreateJobRequest{
			Type:    model.JobTypeEmail,
			Payload: json.RawMessage(`{"template": "event_reminder", "to": "nobody@example.com"}`),
			EventID: &bogus,
		})
		require.Error(t, err)
	})
}

// TestJobRepo_Integration_SchedulerFireKey tests the idempotent-enqueue index and
// the fire key handoff back to scheduled_jobs on completion.
func TestJobRepo_Integration_SchedulerFireKey(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		taskName := fmt.Sprintf("firekey_%d:scan", time.Now().UnixNano())
		fireKey := taskName + ":2025-06-01T10:30:00Z"
		meta := json.RawMessage(`{"scheduler.task_name": "` + taskName + `", "scheduler.fire_key": "` + fireKey + `"}`)

		// Provision the scheduler row with the fire key already active, as
		// the scheduler leaves it after enqueueing.
		_, err := db.ExecContext(ctx, `
			INSERT INTO scheduled_jobs (task_name, payload, scheduled_interval, active_fire_key, active_fire_key_set_at)
			VALUES ($1, '{}', '30 minutes', $2, now())
		`, taskName, fireKey)
		require.NoError(t, err)

		reminderJob := func(metadata json.RawMessage) *model.CreateJobRequest {
			return testutil.NewJobRequest().
				WithType(model.JobTypeReminders).
				WithPayloadString(`{}`).
				WithMetadata(metadata).
				Build()
		}

		job, err := repo.Create(ctx, reminderJob(meta))
		require.NoError(t, err)

		// A replica enqueueing the same fire hits the unique index
		_, err = repo.Create(ctx, reminderJob(meta))
		require.Error(t, err)
		var pgErr *pgconn.PgError
		require.ErrorAs(t, err, &pgErr)
		assert.Equal(t, pgerrcode.UniqueViolation, pgErr.Code)

		// A different fire key is fine
		_, err = repo.Create(ctx, reminderJob(json.RawMessage(
			`{"scheduler.task_name": "`+taskName+`", "scheduler.fire_key": "`+taskName+`:2025-06-01T11:00:00Z"}`,
		)))
		require.NoError(t, err)

		// Completing the job clears the active fire key so the next fire can enqueue
		reserved, err := repo.ReserveNext(ctx, model.JobTypeReminders, 30)
		require.NoError(t, err)
		require.Equal(t, job.ID, reserved.ID)

		success, err := repo.Complete(ctx, job.ID)
		require.NoError(t, err)
		require.True(t, success)

		var activeKey sql.NullString
		err = db.QueryRowContext(ctx, `
			SELECT active_fire_key FROM scheduled_jobs WHERE task_name = $1
		`, taskName).Scan(&activeKey)
		require.NoError(t, err)
		assert.False(t, activeKey.Valid, "active fire key should be cleared after completion")
	})
}
