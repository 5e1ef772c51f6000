package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// CategoryHandlers serves the public category list and the admin CRUD.
type CategoryHandlers struct {
	categories *service.CategoryService
	logger     *slog.Logger
}

// CategoryHandlersOptions groups dependencies for NewCategoryHandlers.
type CategoryHandlersOptions struct {
	Categories *service.CategoryService
	Logger     *slog.Logger
}

// NewCategoryHandlers constructs CategoryHandlers with explicit dependency injection.
func NewCategoryHandlers(opts CategoryHandlersOptions) *CategoryHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryHandlers{categories: opts.Categories, logger: logger}
}

type categoryListResponse struct {
	Categories []*model.Category `json:"categories"`
}

// List handles GET /api/categories. include_inactive=true is honored for
// admins only.
func (h *CategoryHandlers) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	categories, err := h.categories.List(r.Context(), ActorFromContext(r.Context()), includeInactive)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if categories == nil {
		categories = []*model.Category{}
	}
	WriteJSON(w, http.StatusOK, categoryListResponse{Categories: categories})
}

// GetBySlug handles GET /api/categories/{slug}.
func (h *CategoryHandlers) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("slug is required")},
		)
		return
	}

	category, err := h.categories.GetBySlug(r.Context(), slug)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, category)
}

// Create handles POST /api/categories. Admin only.
func (h *CategoryHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCategoryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	category, err := h.categories.Create(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, category)
}

// Update handles PATCH /api/categories/{id}. Admin only.
func (h *CategoryHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdateCategoryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	category, err := h.categories.Update(r.Context(), ActorFromContext(r.Context()), id, req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, category)
}

// Delete handles DELETE /api/categories/{id}. Admin only. Events keep their
// other categories.
func (h *CategoryHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.categories.Delete(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if !deleted {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "category_not_found", Err: errors.New("category not found")},
		)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
