// Package service provides business logic services for the popmap platform.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/model"
	domainscheduler "github.com/popmap/popmap-api/internal/domain/scheduler"
)

// SchedulerService implements the JobScheduler interface.
// It processes due scheduled tasks, applies overrun strategy, enqueues jobs, and updates last_queued_at.
// Safe under concurrent replicas through database-level concurrency controls.
type SchedulerService struct {
	repo         core.ScheduledJobsRepository
	jobs         core.JobRepository
	jobq         core.JobIntrospector
	cfg          core.SchedulerConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger

	taskProcessor *domainscheduler.TaskProcessor
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) *SchedulerService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Config == nil {
		defaultCfg := core.DefaultSchedulerConfig()
		opts.Config = &defaultCfg
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &SchedulerService{
		repo:         opts.Repo,
		jobs:         opts.Jobs,
		jobq:         opts.JobIntrospector,
		cfg:          *opts.Config,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger,
		taskProcessor: domainscheduler.NewTaskProcessor(domainscheduler.TaskProcessorOptions{
			DefaultPolicy: opts.Config.Strategy.Overrun,
			DefaultStates: opts.Config.Strategy.OverrunStates,
			StateReader:   opts.JobIntrospector,
		}),
	}
}

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Repo            core.ScheduledJobsRepository
	Jobs            core.JobRepository
	JobIntrospector core.JobIntrospector
	Config          *core.SchedulerConfig
	TimeProvider    data.TimeProvider
	Logger          *slog.Logger
}

// Tick processes due scheduled tasks and enqueues jobs according to strategy.
// Returns the number of tasks processed.
//
// Algorithm:
// 1. Find due tasks using batch size limit
// 2. For each task, try to acquire advisory lock by task name
// 3. If lock acquired, apply overrun policy and potentially enqueue job
// 4. Update last_queued_at timestamp
//
// Concurrency safety:
// - FindDue uses FOR UPDATE SKIP LOCKED to prevent double-processing
// - TryWithTaskLock uses advisory locks to ensure only one replica processes each task.
func (s *SchedulerService) Tick(ctx context.Context, now time.Time) (int, error) {
	// Find due tasks
	due, err := s.repo.FindDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("find due tasks: %w", err)
	}

	processed := 0
	for _, task := range due {
		worked := false
		// Try to acquire advisory lock for this task
		lockOK, lockErr := s.repo.TryWithTaskLock(ctx, task.TaskName, func(ctx context.Context, tx *sql.Tx) error {
			w, processErr := s.processTask(ctx, tx, task)
			if w {
				worked = true
			}
			return processErr
		})
		if lockErr != nil {
			return processed, fmt.Errorf("process task %s: %w", task.TaskName, lockErr)
		}
		if lockOK && worked {
			processed++
		}
		// If ok==false, another replica is handling this task; skip
	}

	return processed, nil
}

// processTask handles a single scheduled task within a transaction.
// Returns worked=true if this invocation actually made a change (updated last_queued_at or created a job).
// This function is called within TryWithTaskLock, so it has exclusive access to the task during execution.
func (s *SchedulerService) processTask(
	ctx context.Context,
	tx *sql.Tx,
	task domain.ScheduledTask,
) (bool, error) {
	now := s.timeProvider.Now()

	if s.taskProcessor == nil {
		return false, errors.New("task processor is not configured")
	}

	result, err := s.taskProcessor.Process(ctx, domainscheduler.ProcessParams{
		Task: task,
		Now:  now,
		Store: taskStoreAdapter{
			repo: s.repo,
			tx:   tx,
		},
		Enqueuer: taskEnqueuer{
			service: s,
			tx:      tx,
		},
	})
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}
	return result.Worked, nil
}

type taskStoreAdapter struct {
	repo core.ScheduledJobsRepository
	tx   *sql.Tx
}

func (a taskStoreAdapter) MarkQueued(ctx context.Context, params domain.MarkQueuedParams) (bool, error) {
	return a.repo.MarkQueuedTx(ctx, a.tx, params)
}

func (a taskStoreAdapter) UpdateActiveFireKey(ctx context.Context, params domain.UpdateActiveFireKeyParams) error {
	return a.repo.UpdateActiveFireKeyTx(ctx, a.tx, params)
}

type taskEnqueuer struct {
	service *SchedulerService
	tx      *sql.Tx
}

func (e taskEnqueuer) Enqueue(ctx context.Context, task domain.ScheduledTask, fireKey string) (bool, error) {
	return e.service.enqueueJob(ctx, enqueueJobParams{
		Tx:      e.tx,
		Task:    task,
		FireKey: fireKey,
	})
}

type enqueueJobParams struct {
	Tx      *sql.Tx
	Task    domain.ScheduledTask
	FireKey string
}

// enqueueJob creates a new job for the scheduled task.
// Returns created=true if a new job was inserted (not a duplicate), otherwise false.
func (s *SchedulerService) enqueueJob(ctx context.Context, params enqueueJobParams) (bool, error) {
	task := params.Task

	req, err := s.buildJobRequest(task, params.FireKey)
	if err != nil {
		return false, fmt.Errorf("build job request: %w", err)
	}

	// Create the job (idempotent via unique fire key)
	created, err := s.createJobWithRetry(ctx, params.Tx, req)
	if err != nil {
		return false, err
	}
	return created, nil
}

// buildJobRequest creates a CreateJobRequest with scheduler metadata attached.
func (s *SchedulerService) buildJobRequest(
	task domain.ScheduledTask,
	fireKey string,
) (*model.CreateJobRequest, error) {
	meta, err := s.buildSchedulerMetadata(task, fireKey)
	if err != nil {
		return nil, err
	}

	// Determine job type from task name, falling back to default
	jobType := s.cfg.DefaultJobType
	if specificType, ok := jobTypeFromTaskName(task.TaskName); ok {
		jobType = specificType
	}

	payload := task.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	return &model.CreateJobRequest{
		Type:       jobType,
		Priority:   s.cfg.DefaultPriority,
		Payload:    payload,
		Metadata:   meta,
		MaxRetries: s.cfg.MaxRetries,
	}, nil
}

// createJobWithRetry creates a job with idempotency handling.
// Returns created=true if a new job row was inserted; false if it was a duplicate/no-op.
func (s *SchedulerService) createJobWithRetry(
	ctx context.Context,
	tx *sql.Tx,
	req *model.CreateJobRequest,
) (bool, error) {
	err := s.insertJob(ctx, tx, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Duplicate due to unique fire key; treat as success/no-op
			return false, nil
		}
		return false, fmt.Errorf("create job: %w", err)
	}
	return true, nil
}

func (s *SchedulerService) insertJob(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) error {
	if tx == nil {
		_, err := s.jobs.Create(ctx, req)
		return err
	}

	if creator, ok := s.jobs.(core.JobRepositoryTx); ok {
		_, err := creator.CreateInTx(ctx, tx, req)
		return err
	}

	if s.logger != nil {
		s.logger.WarnContext(
			ctx,
			"job repository missing transactional support; falling back to non-transactional create",
		)
	}

	_, err := s.jobs.Create(ctx, req)
	return err
}

// buildSchedulerMetadata prepares scheduler metadata with idempotent fire key.
func (s *SchedulerService) buildSchedulerMetadata(task domain.ScheduledTask, fireKey string) (json.RawMessage, error) {
	m := map[string]any{
		"scheduler.task_name": task.TaskName,
		"scheduler.interval":  task.Interval.String(),
		"scheduler.fire_key":  fireKey,
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return json.RawMessage(b), nil
}

// jobTypeFromTaskName determines the job type from the task name's leading
// segment, so "reminders:scan" enqueues a reminders job and "rollup:daily"
// an analytics rollup. Returns the job type and whether one was determined.
func jobTypeFromTaskName(taskName string) (model.JobType, bool) {
	segment, _, _ := strings.Cut(taskName, ":")
	jobType := model.JobType(strings.TrimSpace(segment))
	if jobType.Valid() {
		return jobType, true
	}
	return "", false
}
