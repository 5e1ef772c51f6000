package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// InstagramHandlers serves the business owner's Instagram import surface.
type InstagramHandlers struct {
	instagram *service.InstagramService
	logger    *slog.Logger
}

// InstagramHandlersOptions groups dependencies for NewInstagramHandlers.
type InstagramHandlersOptions struct {
	Instagram *service.InstagramService
	Logger    *slog.Logger
}

// NewInstagramHandlers constructs InstagramHandlers with explicit dependency injection.
func NewInstagramHandlers(opts InstagramHandlersOptions) *InstagramHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &InstagramHandlers{instagram: opts.Instagram, logger: logger}
}

// Import handles POST /api/businesses/{id}/instagram/import.
func (h *InstagramHandlers) Import(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.instagram.Import(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type instagramHistoryResponse struct {
	Imports []*model.InstagramImportLogEntry `json:"imports"`
}

// History handles GET /api/businesses/{id}/instagram/history.
func (h *InstagramHandlers) History(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.instagram.History(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*model.InstagramImportLogEntry{}
	}
	WriteJSON(w, http.StatusOK, instagramHistoryResponse{Imports: entries})
}

// configured writes a 503 when the Instagram stack was not wired (no scraper
// or extractor credentials in the environment).
func (h *InstagramHandlers) configured(w http.ResponseWriter) bool {
	if h.instagram == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "instagram_not_configured",
			Err:     errors.New("instagram import is not configured"),
		})
		return false
	}
	return true
}
