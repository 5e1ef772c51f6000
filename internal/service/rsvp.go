package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrRSVPClosed is returned when the target event is not open for RSVPs:
// not approved, cancelled, or already ended.
var ErrRSVPClosed = errors.New("event is not open for RSVPs")

// RSVPServiceOptions groups dependencies for RSVPService.
type RSVPServiceOptions struct {
	RSVPs      core.RSVPRepository            // Required: RSVP storage
	Events     core.EventRepository           // Required: event gate checks
	GuestPrefs core.GuestPreferenceRepository // Optional: global guest opt-outs
	Logger     *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// RSVPService records interest in events for signed-in profiles and guests,
// and owns the tokened unsubscribe flow guests reach from reminder emails.
type RSVPService struct {
	rsvps      core.RSVPRepository
	events     core.EventRepository
	guestPrefs core.GuestPreferenceRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewRSVPService constructs a new RSVPService.
func NewRSVPService(opts RSVPServiceOptions) (*RSVPService, error) {
	if opts.RSVPs == nil {
		return nil, errors.New("RSVPRepository is required")
	}
	if opts.Events == nil {
		return nil, errors.New("EventRepository is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "rsvp_service")
	}

	return &RSVPService{
		rsvps:      opts.RSVPs,
		events:     opts.Events,
		guestPrefs: opts.GuestPrefs,
		logger:     logger,
		now:        now,
	}, nil
}

// MustNewRSVPService constructs a new RSVPService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewRSVPService(opts RSVPServiceOptions) *RSVPService {
	svc, err := NewRSVPService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create RSVPService: %v", err))
	}
	return svc
}

// Upsert creates or updates the RSVP for an open event. A signed-in actor is
// bound by profile; anonymous callers must supply a guest email.
func (s *RSVPService) Upsert(
	ctx context.Context,
	actor Actor,
	req *model.UpsertRSVPRequest,
) (*model.RSVP, error) {
	if actor.ProfileID != "" {
		// The session principal wins over any guest fields in the body.
		req.ProfileID = &actor.ProfileID
		req.GuestEmail = nil
		req.GuestName = nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive(s.now()) {
		return nil, ErrRSVPClosed
	}

	rsvp, err := s.rsvps.Upsert(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "rsvp recorded",
			"rsvp_id", rsvp.ID, "event_id", rsvp.EventID,
			"status", rsvp.Status, "guest", rsvp.IsGuest())
	}
	return rsvp, nil
}

// ListMine returns the acting profile's RSVPs.
func (s *RSVPService) ListMine(ctx context.Context, actor Actor) ([]*model.RSVP, error) {
	if actor.ProfileID == "" {
		return nil, ErrForbidden
	}
	return s.rsvps.ListByProfile(ctx, actor.ProfileID)
}

// CountsForEvent returns interested/going totals for an event.
func (s *RSVPService) CountsForEvent(ctx context.Context, eventID string) (*model.RSVPCounts, error) {
	return s.rsvps.CountsByEvent(ctx, eventID)
}

// Remove withdraws the acting profile's RSVP for an event. Returns false
// when no RSVP existed.
func (s *RSVPService) Remove(ctx context.Context, actor Actor, eventID string) (bool, error) {
	if actor.ProfileID == "" {
		return false, ErrForbidden
	}
	return s.rsvps.Remove(ctx, core.RemoveRSVPParams{
		EventID:   eventID,
		ProfileID: &actor.ProfileID,
	})
}

// SetRemindersEnabled toggles reminder emails for one of the actor's RSVPs.
func (s *RSVPService) SetRemindersEnabled(
	ctx context.Context,
	actor Actor,
	rsvpID string,
	enabled bool,
) error {
	rsvp, err := s.rsvps.GetByID(ctx, rsvpID)
	if err != nil {
		return err
	}
	owns := rsvp.ProfileID != nil && actor.Owns(*rsvp.ProfileID)
	if !owns && !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.rsvps.SetRemindersEnabled(ctx, rsvpID, enabled)
}

// ResolveUnsubscribe returns the RSVP behind an unsubscribe token so the
// confirmation page can show what is being unsubscribed. No auth.
func (s *RSVPService) ResolveUnsubscribe(ctx context.Context, token string) (*model.RSVP, error) {
	return s.rsvps.GetByUnsubscribeToken(ctx, token)
}

// Unsubscribe disables reminders for the tokened RSVP. Guest RSVPs also
// record a global opt-out so future reminder scans skip the address entirely.
// No auth; the token is the capability.
func (s *RSVPService) Unsubscribe(ctx context.Context, token string) (*model.RSVP, error) {
	rsvp, err := s.rsvps.GetByUnsubscribeToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.rsvps.SetRemindersEnabled(ctx, rsvp.ID, false); err != nil {
		return nil, fmt.Errorf("disable reminders: %w", err)
	}
	rsvp.RemindersEnabled = false

	if rsvp.IsGuest() && s.guestPrefs != nil {
		email := rsvp.ContactEmail()
		if email != "" {
			if _, prefErr := s.guestPrefs.Unsubscribe(ctx, email); prefErr != nil {
				// The per-RSVP toggle already took effect; the global opt-out
				// can be retried from the next reminder email.
				if s.logger != nil {
					s.logger.WarnContext(ctx, "guest opt-out failed", "rsvp_id", rsvp.ID, "error", prefErr)
				}
			}
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "rsvp unsubscribed", "rsvp_id", rsvp.ID, "guest", rsvp.IsGuest())
	}
	return rsvp, nil
}
