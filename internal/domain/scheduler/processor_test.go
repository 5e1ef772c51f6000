package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTaskStore struct {
	markParams   []domain.MarkQueuedParams
	markResults  []bool
	markErrors   []error
	updateParams []domain.UpdateActiveFireKeyParams
	updateErr    error
}

func (s *stubTaskStore) MarkQueued(_ context.Context, params domain.MarkQueuedParams) (bool, error) {
	s.markParams = append(s.markParams, params)
	var result bool
	if len(s.markResults) > 0 {
		result = s.markResults[0]
		s.markResults = s.markResults[1:]
	}
	var err error
	if len(s.markErrors) > 0 {
		err = s.markErrors[0]
		s.markErrors = s.markErrors[1:]
	}
	return result, err
}

func (s *stubTaskStore) UpdateActiveFireKey(_ context.Context, params domain.UpdateActiveFireKeyParams) error {
	s.updateParams = append(s.updateParams, params)
	return s.updateErr
}

type stubJobStateReader struct {
	mask domain.OverrunStateMask
	err  error
}

func (s *stubJobStateReader) JobStatesByTaskName(
	_ context.Context,
	_ string,
	_ time.Time,
) (domain.OverrunStateMask, error) {
	return s.mask, s.err
}

type enqueueCall struct {
	task    domain.ScheduledTask
	fireKey string
}

type stubJobEnqueuer struct {
	created bool
	err     error
	calls   []enqueueCall
}

func (s *stubJobEnqueuer) Enqueue(
	_ context.Context,
	task domain.ScheduledTask,
	fireKey string,
) (bool, error) {
	s.calls = append(s.calls, enqueueCall{task: task, fireKey: fireKey})
	return s.created, s.err
}

func newSkipProcessor(reader *stubJobStateReader) *scheduler.TaskProcessor {
	return scheduler.NewTaskProcessor(scheduler.TaskProcessorOptions{
		StateReader: reader,
	})
}

func TestTaskProcessor_TaskNotDue(t *testing.T) {
	now := time.Now()
	last := now.Add(-30 * time.Second)
	task := domain.ScheduledTask{
		ID:           "task-1",
		TaskName:     "reminders:scan",
		Interval:     time.Minute,
		LastQueuedAt: &last,
	}

	store := &stubTaskStore{}
	processor := newSkipProcessor(&stubJobStateReader{})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:  task,
		Now:   now,
		Store: store,
	})
	require.NoError(t, err)
	assert.False(t, result.Worked)
	assert.Empty(t, store.markParams)
}

func TestTaskProcessor_SkipPolicyBlockedStillAdvancesSchedule(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "skip-blocked",
		TaskName: "reminders:scan",
		Interval: time.Minute,
	}

	reader := &stubJobStateReader{mask: domain.OverrunStateRunning}
	store := &stubTaskStore{markResults: []bool{true}}
	processor := newSkipProcessor(reader)

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:  task,
		Now:   now,
		Store: store,
	})
	require.NoError(t, err)
	assert.True(t, result.MarkedQueued)
	assert.True(t, result.Worked)
	assert.False(t, result.Enqueued)
	assert.False(t, result.ShouldEnqueue)

	// The blocked slot is skipped, not deferred.
	require.Len(t, store.markParams, 1)
	assert.Nil(t, store.markParams[0].ActiveFireKey)
}

func TestTaskProcessor_SkipPolicyEnqueues(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "skip-ok",
		TaskName: "reminders:scan",
		Interval: time.Minute,
	}

	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: true}
	processor := newSkipProcessor(&stubJobStateReader{})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	require.True(t, result.Enqueued)
	require.True(t, result.Worked)

	assert.Len(t, store.markParams, 1)
	require.Len(t, store.updateParams, 1)
	assert.Equal(t, task.ID, store.updateParams[0].ID)
	assert.Equal(t, result.FireKey, *store.updateParams[0].FireKey)

	require.Len(t, enqueuer.calls, 1)
	assert.Equal(t, result.FireKey, enqueuer.calls[0].fireKey)
}

func TestTaskProcessor_SkipPolicyBlockedByActiveFireKey(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "skip-fired",
		TaskName: "reminders:scan",
		Interval: time.Minute,
	}
	currentKey := scheduler.ComputeFireKey(task, now)
	task.ActiveFireKey = &currentKey

	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: true}
	processor := newSkipProcessor(&stubJobStateReader{})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	assert.False(t, result.ShouldEnqueue, "slot already fired")
	assert.False(t, result.Enqueued)
	assert.Empty(t, enqueuer.calls)
}

func TestTaskProcessor_SkipPolicyIgnoresStaleFireKey(t *testing.T) {
	now := time.Now()
	staleKey := "skip-stale:12345"
	task := domain.ScheduledTask{
		ID:            "skip-stale",
		TaskName:      "reminders:scan",
		Interval:      time.Minute,
		ActiveFireKey: &staleKey,
	}

	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: true}
	processor := newSkipProcessor(&stubJobStateReader{})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	assert.True(t, result.Enqueued, "a previous slot's key should not block")
}

func TestTaskProcessor_QueuePolicyStampsAfterEnqueue(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "queue",
		TaskName: "rollup:daily",
		Interval: 2 * time.Minute,
	}

	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: true}
	processor := scheduler.NewTaskProcessor(scheduler.TaskProcessorOptions{
		DefaultPolicy: domain.OverrunPolicyQueue,
		DefaultStates: domain.OverrunStatesDefault,
	})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	require.True(t, result.Enqueued)
	assert.False(t, result.MarkedQueued, "queue policy has no pre-enqueue stamp")

	require.Len(t, store.markParams, 1)
	require.NotNil(t, store.markParams[0].ActiveFireKey)
	assert.Equal(t, result.FireKey, *store.markParams[0].ActiveFireKey)
	require.NotNil(t, store.markParams[0].ActiveFireKeySetAt)
	assert.True(t, now.Equal(*store.markParams[0].ActiveFireKeySetAt))
}

func TestTaskProcessor_ReschedulePolicyNeverEnqueues(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "resched",
		TaskName: "rollup:daily",
		Interval: time.Hour,
	}

	store := &stubTaskStore{markResults: []bool{true}}
	processor := scheduler.NewTaskProcessor(scheduler.TaskProcessorOptions{
		DefaultPolicy: domain.OverrunPolicyReschedule,
	})

	// No enqueuer: reschedule must not need one.
	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:  task,
		Now:   now,
		Store: store,
	})
	require.NoError(t, err)
	assert.True(t, result.MarkedQueued)
	assert.True(t, result.Worked)
	assert.False(t, result.ShouldEnqueue)
	assert.False(t, result.Enqueued)
	assert.Empty(t, store.updateParams)
}

func TestTaskProcessor_LostEnqueueRaceSkipsFinalize(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "lost-race",
		TaskName: "reminders:scan",
		Interval: time.Minute,
	}

	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: false}
	processor := newSkipProcessor(&stubJobStateReader{})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	assert.True(t, result.ShouldEnqueue)
	assert.False(t, result.Enqueued, "another replica won the fire key")
	assert.True(t, result.MarkedQueued)
	assert.Empty(t, store.updateParams, "no fire key to record for a job we did not create")
}

func TestTaskProcessor_TaskPolicyOverridesDefault(t *testing.T) {
	now := time.Now()
	queue := domain.OverrunPolicyQueue
	task := domain.ScheduledTask{
		ID:            "override",
		TaskName:      "rollup:daily",
		Interval:      time.Minute,
		OverrunPolicy: &queue,
	}

	// Reader reports running, which would block the default skip policy.
	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: true}
	processor := newSkipProcessor(&stubJobStateReader{mask: domain.OverrunStateRunning})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	assert.True(t, result.Enqueued, "task-level queue policy wins over the default")
}

func TestTaskProcessor_ZeroStateOverrideFallsBackToDefault(t *testing.T) {
	now := time.Now()
	zero := domain.OverrunStateMask(0)
	task := domain.ScheduledTask{
		ID:            "zero-mask",
		TaskName:      "reminders:scan",
		Interval:      time.Minute,
		OverrunStates: &zero,
	}

	store := &stubTaskStore{markResults: []bool{true}}
	enqueuer := &stubJobEnqueuer{created: true}
	processor := newSkipProcessor(&stubJobStateReader{mask: domain.OverrunStateRunning})

	result, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:     task,
		Now:      now,
		Store:    store,
		Enqueuer: enqueuer,
	})
	require.NoError(t, err)
	assert.False(t, result.Enqueued, "zero mask means default states, which block on running")
}

func TestTaskProcessor_SkipPolicyMissingStateReader(t *testing.T) {
	task := domain.ScheduledTask{
		ID:       "missing-reader",
		TaskName: "reminders:scan",
		Interval: time.Minute,
	}

	processor := scheduler.NewTaskProcessor(scheduler.TaskProcessorOptions{})
	_, err := processor.Process(context.Background(), scheduler.ProcessParams{
		Task:  task,
		Now:   time.Now(),
		Store: &stubTaskStore{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job state reader is not configured")
}

func TestTaskProcessor_ErrorPaths(t *testing.T) {
	now := time.Now()
	task := domain.ScheduledTask{
		ID:       "errors",
		TaskName: "reminders:scan",
		Interval: time.Minute,
	}

	t.Run("state reader failure", func(t *testing.T) {
		processor := newSkipProcessor(&stubJobStateReader{err: errors.New("db down")})
		_, err := processor.Process(context.Background(), scheduler.ProcessParams{
			Task:  task,
			Now:   now,
			Store: &stubTaskStore{},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "check job states")
	})

	t.Run("mark queued failure", func(t *testing.T) {
		store := &stubTaskStore{markErrors: []error{errors.New("db down")}}
		processor := newSkipProcessor(&stubJobStateReader{})
		_, err := processor.Process(context.Background(), scheduler.ProcessParams{
			Task:  task,
			Now:   now,
			Store: store,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mark task queued")
	})

	t.Run("enqueue failure", func(t *testing.T) {
		store := &stubTaskStore{markResults: []bool{true}}
		enqueuer := &stubJobEnqueuer{err: errors.New("insert failed")}
		processor := newSkipProcessor(&stubJobStateReader{})
		_, err := processor.Process(context.Background(), scheduler.ProcessParams{
			Task:     task,
			Now:      now,
			Store:    store,
			Enqueuer: enqueuer,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "enqueue job")
	})

	t.Run("fire key update failure", func(t *testing.T) {
		store := &stubTaskStore{markResults: []bool{true}, updateErr: errors.New("db down")}
		enqueuer := &stubJobEnqueuer{created: true}
		processor := newSkipProcessor(&stubJobStateReader{})
		_, err := processor.Process(context.Background(), scheduler.ProcessParams{
			Task:     task,
			Now:      now,
			Store:    store,
			Enqueuer: enqueuer,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set active fire key")
	})
}

func TestComputeFireKey(t *testing.T) {
	task := domain.ScheduledTask{ID: "t1", Interval: time.Minute}
	base := time.Unix(1_700_000_000, 0)

	sameSlot := scheduler.ComputeFireKey(task, base.Add(10*time.Second))
	assert.Equal(t, scheduler.ComputeFireKey(task, base), sameSlot,
		"times within one interval share a slot")

	nextSlot := scheduler.ComputeFireKey(task, base.Add(time.Minute))
	assert.NotEqual(t, scheduler.ComputeFireKey(task, base), nextSlot)

	// Without a usable interval the key degrades to the exact second.
	instant := domain.ScheduledTask{ID: "t2"}
	assert.Equal(t, fmt.Sprintf("t2:%d", base.Unix()), scheduler.ComputeFireKey(instant, base))
}
