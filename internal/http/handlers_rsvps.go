package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// RSVPHandlers serves RSVP endpoints: the upsert on the event path, the
// caller's own RSVP list and reminder toggles, and the tokened guest
// unsubscribe flow reached from reminder emails.
type RSVPHandlers struct {
	rsvps  *service.RSVPService
	logger *slog.Logger
}

// RSVPHandlersOptions groups dependencies for NewRSVPHandlers.
type RSVPHandlersOptions struct {
	RSVPs  *service.RSVPService
	Logger *slog.Logger
}

// NewRSVPHandlers constructs RSVPHandlers with explicit dependency injection.
func NewRSVPHandlers(opts RSVPHandlersOptions) *RSVPHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RSVPHandlers{rsvps: opts.RSVPs, logger: logger}
}

// Upsert handles POST /api/events/{id}/rsvp. A signed-in caller is bound by
// profile; anonymous callers RSVP as guests with an email address. The event
// id in the path wins over any event_id in the body.
func (h *RSVPHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpsertRSVPRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.EventID = eventID

	rsvp, err := h.rsvps.Upsert(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, rsvp)
}

// Remove handles DELETE /api/events/{id}/rsvp: withdraws the signed-in
// caller's RSVP for the event.
func (h *RSVPHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	removed, err := h.rsvps.Remove(r.Context(), ActorFromContext(r.Context()), eventID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if !removed {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "rsvp_not_found", Err: errors.New("rsvp not found")},
		)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// Counts handles GET /api/events/{id}/rsvp-counts: public interested/going
// totals for an event.
func (h *RSVPHandlers) Counts(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	counts, err := h.rsvps.CountsForEvent(r.Context(), eventID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, counts)
}

type rsvpListResponse struct {
	RSVPs []*model.RSVP `json:"rsvps"`
}

// ListMine handles GET /api/rsvps: the signed-in caller's RSVPs.
func (h *RSVPHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	rsvps, err := h.rsvps.ListMine(r.Context(), ActorFromContext(r.Context()))
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if rsvps == nil {
		rsvps = []*model.RSVP{}
	}
	WriteJSON(w, http.StatusOK, rsvpListResponse{RSVPs: rsvps})
}

type rsvpRemindersRequest struct {
	Enabled bool `json:"enabled"`
}

// SetReminders handles PATCH /api/rsvps/{id}/reminders: toggles reminder
// emails for one of the caller's RSVPs.
func (h *RSVPHandlers) SetReminders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req rsvpRemindersRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.rsvps.SetRemindersEnabled(r.Context(), ActorFromContext(r.Context()), id, req.Enabled); err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"id": id, "reminders_enabled": req.Enabled})
}

// ResolveUnsubscribe handles GET /rsvps/unsubscribe/{token}. No auth; the
// token is the capability. The confirmation page uses it to show what is
// being unsubscribed before the POST.
func (h *RSVPHandlers) ResolveUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token, ok := pathUUID(w, r, "token")
	if !ok {
		return
	}

	rsvp, err := h.rsvps.ResolveUnsubscribe(r.Context(), token)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, rsvp)
}

// Unsubscribe handles POST /rsvps/unsubscribe/{token}: disables reminders
// for the tokened RSVP, recording a global opt-out for guest addresses.
func (h *RSVPHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token, ok := pathUUID(w, r, "token")
	if !ok {
		return
	}

	rsvp, err := h.rsvps.Unsubscribe(r.Context(), token)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, rsvp)
}
