package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the background job worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeScheduler runs the job scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
	// ServiceModeAll enables every service in one process.
	ServiceModeAll ServiceMode = "all"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeScheduler,
		ServiceModeReaper,
		ServiceModeAll,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// "all" expands to every concrete service. It validates that all service names are valid and
// returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeWorker,
			ServiceModeScheduler,
			ServiceModeReaper:
			services[mode] = true
		case ServiceModeAll:
			services[ServiceModeHTTP] = true
			services[ServiceModeWorker] = true
			services[ServiceModeScheduler] = true
			services[ServiceModeReaper] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, scheduler, reaper, all)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains scheduler service configuration.
type SchedulerConfig struct {
	// BatchSize is the number of due tasks to fire per tick.
	BatchSize int `env:"SCHEDULER_BATCH_SIZE" envDefault:"25"`

	// DefaultJobType is the fallback job type for scheduled tasks that do not
	// carry their own.
	DefaultJobType model.JobType `env:"SCHEDULER_DEFAULT_JOB_TYPE" envDefault:"email"`

	// DefaultPriority is the default priority for scheduled jobs.
	DefaultPriority int `env:"SCHEDULER_DEFAULT_PRIORITY" envDefault:"0"`

	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int `env:"SCHEDULER_MAX_RETRIES" envDefault:"3"`

	// OverrunPolicy determines how to handle tasks that overrun their schedule.
	// Valid values: skip, queue, reschedule
	OverrunPolicy domain.OverrunPolicy `env:"SCHEDULER_OVERRUN" envDefault:"skip"`

	// OverrunStates defines which job states block new enqueue attempts when OverrunPolicy=skip.
	// Comma-separated list of: running, pending, retrying.
	OverrunStates domain.OverrunStateMask `env:"SCHEDULER_OVERRUN_STATES" envDefault:"running"`

	// Interval is the scheduler tick interval.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.OverrunStates == 0 {
		s.OverrunStates = domain.OverrunStatesDefault
	}
}

// WorkerConfig contains background job worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease a job before it can be requeued.
	JobLease time.Duration `env:"WORKER_JOB_LEASE" envDefault:"60s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.JobLease < 5*time.Second {
		w.JobLease = 5 * time.Second
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// ReminderLogMaxAge is the maximum age for sent-reminder ledger rows
	// before deletion. Kept well past the reminder window so re-scans of
	// recent events still dedup.
	ReminderLogMaxAge time.Duration `env:"REAPER_REMINDER_LOG_MAX_AGE" envDefault:"2160h"` // 90 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.ReminderLogMaxAge < 24*time.Hour {
		r.ReminderLogMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

// ReminderConfig tunes the event reminder dispatch task.
type ReminderConfig struct {
	// Interval is the spacing between reminder scan runs. The scheduler
	// syncs it into the reminders:scan task cadence at startup.
	Interval time.Duration `env:"REMINDER_INTERVAL" envDefault:"30m"`

	// LeadTime is how far ahead of an event's start the reminder fires.
	// Each scan covers the whole lead window; the sent ledger dedups.
	LeadTime time.Duration `env:"REMINDER_LEAD_TIME" envDefault:"24h"`

	// BatchSize caps how many reminder emails a single run enqueues.
	BatchSize int `env:"REMINDER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reminder configuration values.
func (r *ReminderConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.LeadTime < time.Hour {
		r.LeadTime = time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
}

// AnalyticsConfig tunes tracking ingestion and rollups.
type AnalyticsConfig struct {
	// RollupInterval is the spacing between daily aggregation runs.
	RollupInterval time.Duration `env:"ANALYTICS_ROLLUP_INTERVAL" envDefault:"24h"`

	// RawRetention is how long raw page views and interactions are kept
	// before the reaper prunes them. Rollups are kept indefinitely.
	RawRetention time.Duration `env:"ANALYTICS_RAW_RETENTION" envDefault:"2160h"` // 90 days
}

// Sanitize applies guardrails to analytics configuration values.
func (a *AnalyticsConfig) Sanitize() {
	if a.RollupInterval < time.Hour {
		a.RollupInterval = time.Hour
	}
	if a.RawRetention < 24*time.Hour {
		a.RawRetention = 24 * time.Hour
	}
}
