package data

import (
	"database/sql"
	"errors"
	"log/slog"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotDeletable is returned when attempting to delete a job that is not in a deletable state.
	ErrJobNotDeletable = errors.New("job cannot be deleted (must be in pending, completed, or failed status)")
	// ErrJobReserved is returned when attempting to delete a job that has an active lease.
	ErrJobReserved = errors.New("job is reserved and cannot be deleted")
)

const defaultRetryDelaySeconds = 30

// RepoConfig holds the tunables and injectable collaborators of JobRepo.
type RepoConfig struct {
	RetryDelaySeconds int
	Logger            *slog.Logger
	TimeProvider      TimeProvider
}

// JobRepo is the Postgres job queue. Workers reserve pending rows under
// FOR UPDATE SKIP LOCKED leases, completions feed scheduler bookkeeping,
// and LISTEN/NOTIFY wakes idle workers when rows arrive.
type JobRepo struct {
	DB *sql.DB

	retryDelaySeconds int
	timeProvider      TimeProvider
	logger            *slog.Logger
}

// NewJobRepo builds a JobRepo, filling unset config with the real clock
// and the default retry delay.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	delay := cfg.RetryDelaySeconds
	if delay <= 0 {
		delay = defaultRetryDelaySeconds
	}
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:                db,
		retryDelaySeconds: delay,
		timeProvider:      tp,
		logger:            cfg.Logger,
	}
}

const jobColumns = `
  id,
  type,
  status,
  priority,
  payload,
  metadata,
  event_id,
  business_id,
  scheduled_at,
  started_at,
  completed_at,
  retry_count,
  max_retries,
  last_error,
  lease_expires_at,
  created_at,
  updated_at
`
