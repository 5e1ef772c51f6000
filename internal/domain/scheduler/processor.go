// Package scheduler holds the policy flow that turns a due scheduled
// task into at most one queue job per interval slot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/popmap/popmap-api/internal/domain"
)

// TaskStore executes scheduler persistence operations within the ambient transaction.
type TaskStore interface {
	MarkQueued(ctx context.Context, params domain.MarkQueuedParams) (bool, error)
	UpdateActiveFireKey(ctx context.Context, params domain.UpdateActiveFireKeyParams) error
}

// JobStateReader reports the current overrun states for a scheduled task.
type JobStateReader interface {
	JobStatesByTaskName(ctx context.Context, taskName string, now time.Time) (domain.OverrunStateMask, error)
}

// JobEnqueuer creates a job for the provided scheduled task using the
// supplied fire key. False with a nil error means the key already had a
// job, which another replica racing on the same slot may have enqueued.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, task domain.ScheduledTask, fireKey string) (bool, error)
}

// TaskProcessorOptions configures TaskProcessor defaults.
type TaskProcessorOptions struct {
	DefaultPolicy domain.OverrunPolicy
	DefaultStates domain.OverrunStateMask
	StateReader   JobStateReader
}

// TaskProcessor owns the overrun policy flow for scheduled tasks: when
// a due task may enqueue, when firing only advances the schedule, and
// how the fire key records the slot that fired.
type TaskProcessor struct {
	defaultPolicy domain.OverrunPolicy
	defaultStates domain.OverrunStateMask
	stateReader   JobStateReader
}

// NewTaskProcessor constructs a TaskProcessor with sane defaults.
func NewTaskProcessor(opts TaskProcessorOptions) *TaskProcessor {
	policy := opts.DefaultPolicy
	if policy == "" {
		policy = domain.OverrunPolicySkip
	}
	states := opts.DefaultStates
	if states == 0 {
		states = domain.OverrunStatesDefault
	}
	return &TaskProcessor{
		defaultPolicy: policy,
		defaultStates: states,
		stateReader:   opts.StateReader,
	}
}

// ProcessParams supplies the per-invocation collaborators for Process.
type ProcessParams struct {
	Task     domain.ScheduledTask
	Now      time.Time
	Store    TaskStore
	Enqueuer JobEnqueuer
}

// ProcessResult captures the outcome of processing a scheduled task.
type ProcessResult struct {
	Worked        bool
	Enqueued      bool
	MarkedQueued  bool
	FireKey       string
	ShouldEnqueue bool
}

// firing carries one due task through the policy flow.
type firing struct {
	task     domain.ScheduledTask
	strategy taskStrategy
	fireKey  string
	now      time.Time
	store    TaskStore
	enqueuer JobEnqueuer
}

// Process evaluates a scheduled task and applies overrun policy updates
// via the provided collaborators. A task that is not yet due returns an
// empty result.
func (p *TaskProcessor) Process(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	if params.Store == nil {
		return nil, errors.New("task store is required")
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	if !isTaskDue(params.Task, now) {
		return &ProcessResult{}, nil
	}

	return p.processFiring(ctx, &firing{
		task:     params.Task,
		strategy: p.resolveStrategy(params.Task),
		fireKey:  ComputeFireKey(params.Task, now),
		now:      now,
		store:    params.Store,
		enqueuer: params.Enqueuer,
	})
}

func (p *TaskProcessor) processFiring(ctx context.Context, f *firing) (*ProcessResult, error) {
	result := &ProcessResult{FireKey: f.fireKey}

	shouldEnqueue, err := p.shouldEnqueue(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("check overrun policy: %w", err)
	}
	result.ShouldEnqueue = shouldEnqueue

	// Skip and reschedule advance the schedule whether or not a job is
	// enqueued: a blocked slot is skipped, not deferred. The queue
	// policy stamps the schedule after its enqueue instead.
	if f.strategy.policy != domain.OverrunPolicyQueue {
		marked, err := f.stampSchedule(ctx)
		if err != nil {
			return nil, err
		}
		if marked {
			result.MarkedQueued = true
			result.Worked = true
		}
	}

	if !shouldEnqueue {
		return result, nil
	}
	if f.enqueuer == nil {
		return nil, errors.New("job enqueuer is required")
	}

	created, err := f.enqueuer.Enqueue(ctx, f.task, f.fireKey)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	if !created {
		return result, nil
	}
	result.Enqueued = true
	result.Worked = true

	if err := f.finalizeEnqueue(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// shouldEnqueue decides whether the firing produces a job. Under the
// skip policy a task is blocked while any of its configured overrun
// states exist, or while the stored fire key already names this slot.
func (p *TaskProcessor) shouldEnqueue(ctx context.Context, f *firing) (bool, error) {
	switch f.strategy.policy {
	case domain.OverrunPolicyQueue:
		return true, nil
	case domain.OverrunPolicyReschedule:
		return false, nil
	case domain.OverrunPolicySkip:
		if p.stateReader == nil {
			return false, errors.New("job state reader is not configured")
		}
		states, err := p.stateReader.JobStatesByTaskName(ctx, f.task.TaskName, f.now)
		if err != nil {
			return false, fmt.Errorf("check job states: %w", err)
		}
		if states&f.strategy.states != 0 {
			return false, nil
		}
		if key := f.task.ActiveFireKey; key != nil && *key != "" && *key == f.fireKey {
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown overrun policy: %s", f.strategy.policy)
	}
}

// stampSchedule advances last_queued_at without touching the fire key.
func (f *firing) stampSchedule(ctx context.Context) (bool, error) {
	marked, err := f.store.MarkQueued(ctx, domain.MarkQueuedParams{
		ID:  f.task.ID,
		Now: f.now,
	})
	if err != nil {
		return false, fmt.Errorf("mark task queued: %w", err)
	}
	return marked, nil
}

// finalizeEnqueue records the fire key after a job was created. The
// queue policy also stamps the schedule here, since it skipped the
// pre-enqueue stamp.
func (f *firing) finalizeEnqueue(ctx context.Context) error {
	switch f.strategy.policy {
	case domain.OverrunPolicyQueue:
		setAt := f.now
		_, err := f.store.MarkQueued(ctx, domain.MarkQueuedParams{
			ID:                 f.task.ID,
			Now:                f.now,
			ActiveFireKey:      &f.fireKey,
			ActiveFireKeySetAt: &setAt,
		})
		if err != nil {
			return fmt.Errorf("mark task queued after enqueue: %w", err)
		}
	case domain.OverrunPolicySkip, domain.OverrunPolicyReschedule:
		err := f.store.UpdateActiveFireKey(ctx, domain.UpdateActiveFireKeyParams{
			ID:      f.task.ID,
			FireKey: &f.fireKey,
			SetAt:   f.now,
		})
		if err != nil {
			return fmt.Errorf("set active fire key: %w", err)
		}
	default:
		return fmt.Errorf("unknown overrun policy: %s", f.strategy.policy)
	}
	return nil
}

type taskStrategy struct {
	policy domain.OverrunPolicy
	states domain.OverrunStateMask
}

// resolveStrategy merges per-task overrides with the processor
// defaults. The resolved state mask is never zero: an explicit zero
// override means "use the default", not "block on nothing".
func (p *TaskProcessor) resolveStrategy(task domain.ScheduledTask) taskStrategy {
	policy := p.defaultPolicy
	states := p.defaultStates

	if task.OverrunPolicy != nil {
		policy = *task.OverrunPolicy
	}
	if task.OverrunStates != nil {
		if overrides := *task.OverrunStates; overrides != 0 {
			states = overrides
		} else {
			states = domain.OverrunStatesDefault
		}
	}
	if states == 0 {
		states = domain.OverrunStatesDefault
	}

	return taskStrategy{policy: policy, states: states}
}

func isTaskDue(task domain.ScheduledTask, now time.Time) bool {
	if task.LastQueuedAt == nil {
		return true
	}
	return !task.LastQueuedAt.Add(task.Interval).After(now)
}

// ComputeFireKey derives the idempotency key for firing task at now.
// The key is stable within one interval slot, so replicas racing on the
// same slot agree on it and the unique index lets only one enqueue win.
func ComputeFireKey(task domain.ScheduledTask, now time.Time) string {
	intervalSec := int64(task.Interval / time.Second)
	if intervalSec <= 0 {
		return fmt.Sprintf("%s:%d", task.ID, now.Unix())
	}
	slot := now.Unix() / intervalSec
	return fmt.Sprintf("%s:%d", task.ID, slot)
}
