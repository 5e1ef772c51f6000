package httpx

import (
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// AnalyticsHandlers serves the public tracking beacons and the premium
// dashboard. Tracking endpoints accept anonymous traffic and always return
// 204 on accepted beacons so the frontend never retries them.
type AnalyticsHandlers struct {
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

// AnalyticsHandlersOptions groups dependencies for AnalyticsHandlers.
type AnalyticsHandlersOptions struct {
	Analytics *service.AnalyticsService // Required
	Logger    *slog.Logger
}

// NewAnalyticsHandlers constructs handlers for analytics endpoints.
func NewAnalyticsHandlers(opts AnalyticsHandlersOptions) *AnalyticsHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandlers{analytics: opts.Analytics, logger: logger}
}

// TrackPageView records one page load beacon.
func (h *AnalyticsHandlers) TrackPageView(w http.ResponseWriter, r *http.Request) {
	var req model.TrackPageViewRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.analytics.TrackPageView(r.Context(), &req, r.UserAgent()); err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrackInteraction records one user action beacon.
func (h *AnalyticsHandlers) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	var req model.TrackInteractionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.analytics.TrackInteraction(r.Context(), &req); err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Overview returns dashboard metrics for a business over a trailing window.
// The range query sets the window in days; the service clamps it.
func (h *AnalyticsHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	businessID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rangeDays := parseIntQuery(r, "range", 0)

	overview, err := h.analytics.Overview(r.Context(), ActorFromContext(r.Context()), businessID, rangeDays)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

type eventStatsResponse struct {
	Events []*model.EventStats `json:"events"`
}

// EventStats returns per-event views and RSVP conversion for a business.
func (h *AnalyticsHandlers) EventStats(w http.ResponseWriter, r *http.Request) {
	businessID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rangeDays := parseIntQuery(r, "range", 0)

	stats, err := h.analytics.EventStats(r.Context(), ActorFromContext(r.Context()), businessID, rangeDays)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if stats == nil {
		stats = []*model.EventStats{}
	}
	WriteJSON(w, http.StatusOK, eventStatsResponse{Events: stats})
}
