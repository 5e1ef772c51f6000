package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

const emailTemplateEventReminder = "event_reminder"

const (
	defaultReminderWindow      = 24 * time.Hour
	defaultReminderBatchLimit  = 500
	defaultReminderConcurrency = 4
)

// ReminderServiceOptions groups dependencies for ReminderService.
type ReminderServiceOptions struct {
	Reminders core.ReminderRepository // Required: candidate scan + sent ledger
	Jobs      core.JobRepository      // Required: email job enqueue
	// Window is how far ahead of start time reminders go out.
	Window time.Duration
	// BatchLimit caps candidates per scan; the next scan picks up the rest.
	BatchLimit int
	// Concurrency bounds parallel dispatch within one scan.
	Concurrency int
	// BaseURL is the public origin used to build unsubscribe links.
	BaseURL string
	Logger  *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// ReminderService turns upcoming events into reminder emails: it scans for
// reminder-eligible RSVPs on approved events starting inside the window,
// claims each (rsvp, event) pair in the sent ledger, and enqueues one email
// job per claimed recipient. Scans are idempotent; a pair is claimed at most
// once no matter how often or how concurrently the scan runs.
type ReminderService struct {
	reminders   core.ReminderRepository
	jobs        core.JobRepository
	window      time.Duration
	batchLimit  int
	concurrency int
	baseURL     string
	logger      *slog.Logger
	now         func() time.Time
}

// NewReminderService constructs a new ReminderService.
func NewReminderService(opts ReminderServiceOptions) (*ReminderService, error) {
	if opts.Reminders == nil {
		return nil, errors.New("ReminderRepository is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}

	window := opts.Window
	if window <= 0 {
		window = defaultReminderWindow
	}
	batchLimit := opts.BatchLimit
	if batchLimit <= 0 {
		batchLimit = defaultReminderBatchLimit
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultReminderConcurrency
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reminder_service")
	}

	return &ReminderService{
		reminders:   opts.Reminders,
		jobs:        opts.Jobs,
		window:      window,
		batchLimit:  batchLimit,
		concurrency: concurrency,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		logger:      logger,
		now:         now,
	}, nil
}

// MustNewReminderService constructs a new ReminderService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewReminderService(opts ReminderServiceOptions) *ReminderService {
	svc, err := NewReminderService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create ReminderService: %v", err))
	}
	return svc
}

// ReminderScanStats summarizes one scan run.
type ReminderScanStats struct {
	Candidates int `json:"candidates"`
	Queued     int `json:"queued"`
	Skipped    int `json:"skipped"` // claimed by an earlier or concurrent scan
	Failed     int `json:"failed"`
}

// reminderEmailData is the template data carried by reminder email jobs.
type reminderEmailData struct {
	EventTitle     string `json:"event_title"`
	EventAddress   string `json:"event_address"`
	EventStart     string `json:"event_start"` // RFC 3339
	BusinessName   string `json:"business_name"`
	RecipientName  string `json:"recipient_name,omitempty"`
	UnsubscribeURL string `json:"unsubscribe_url,omitempty"`
}

// Scan runs one reminder pass over the upcoming window. Per-candidate
// failures are counted, not fatal; the scan itself only errors when the
// candidate query does.
func (s *ReminderService) Scan(ctx context.Context) (*ReminderScanStats, error) {
	from := s.now().UTC()
	candidates, err := s.reminders.ListDueCandidates(ctx, core.ReminderWindowParams{
		From:  from,
		To:    from.Add(s.window),
		Limit: s.batchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}

	var queued, skipped, failed atomic.Int64
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, candidate := range candidates {
		group.Go(func() error {
			switch s.dispatch(gctx, candidate, from) {
			case dispatchQueued:
				queued.Add(1)
			case dispatchSkipped:
				skipped.Add(1)
			case dispatchFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait() // workers never return errors; failures are counted

	stats := &ReminderScanStats{
		Candidates: len(candidates),
		Queued:     int(queued.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "reminder scan complete",
			"candidates", stats.Candidates, "queued", stats.Queued,
			"skipped", stats.Skipped, "failed", stats.Failed)
	}
	return stats, nil
}

type dispatchResult int

const (
	dispatchQueued dispatchResult = iota
	dispatchSkipped
	dispatchFailed
)

// dispatch claims the (rsvp, event) pair and enqueues the email job. The
// claim happens first so a crash between claim and enqueue loses at most one
// reminder rather than double-sending.
func (s *ReminderService) dispatch(
	ctx context.Context,
	candidate *model.ReminderCandidate,
	sentAt time.Time,
) dispatchResult {
	claimed, err := s.reminders.RecordSent(ctx, core.RecordReminderParams{
		RSVPID:  candidate.RSVPID,
		EventID: candidate.EventID,
		Email:   candidate.Email,
		SentAt:  sentAt,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "reminder claim failed",
				"rsvp_id", candidate.RSVPID, "event_id", candidate.EventID, "error", err)
		}
		return dispatchFailed
	}
	if !claimed {
		return dispatchSkipped
	}

	if err := s.enqueueReminderEmail(ctx, candidate); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "reminder enqueue failed",
				"rsvp_id", candidate.RSVPID, "event_id", candidate.EventID, "error", err)
		}
		return dispatchFailed
	}
	return dispatchQueued
}

func (s *ReminderService) enqueueReminderEmail(ctx context.Context, candidate *model.ReminderCandidate) error {
	emailData := reminderEmailData{
		EventTitle:    candidate.EventTitle,
		EventAddress:  candidate.EventAddress,
		EventStart:    candidate.EventStart.UTC().Format(time.RFC3339),
		BusinessName:  candidate.BusinessName,
		RecipientName: candidate.Name,
	}
	if s.baseURL != "" && candidate.UnsubscribeToken != "" {
		emailData.UnsubscribeURL = fmt.Sprintf("%s/rsvps/unsubscribe/%s", s.baseURL, candidate.UnsubscribeToken)
	}
	raw, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("encode reminder data: %w", err)
	}

	payload, err := json.Marshal(model.EmailJobPayload{
		Template: emailTemplateEventReminder,
		To:       candidate.Email,
		ToName:   candidate.Name,
		Subject:  fmt.Sprintf("Reminder: %s starts soon", candidate.EventTitle),
		Data:     raw,
	})
	if err != nil {
		return fmt.Errorf("encode reminder payload: %w", err)
	}

	eventID := candidate.EventID
	_, err = s.jobs.Create(ctx, &model.CreateJobRequest{
		Type:       model.JobTypeEmail,
		Payload:    payload,
		EventID:    &eventID,
		MaxRetries: 3,
	})
	return err
}
