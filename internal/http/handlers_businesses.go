package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

const (
	defaultBusinessPageSize = 50
	maxBusinessPageSize     = 200
)

// BusinessHandlers serves business CRUD, the owner's subdomain claim, and the
// admin verification toggle.
type BusinessHandlers struct {
	businesses *service.BusinessService
	logger     *slog.Logger
}

// BusinessHandlersOptions groups dependencies for NewBusinessHandlers.
type BusinessHandlersOptions struct {
	Businesses *service.BusinessService
	Logger     *slog.Logger
}

// NewBusinessHandlers constructs BusinessHandlers with explicit dependency injection.
func NewBusinessHandlers(opts BusinessHandlersOptions) *BusinessHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BusinessHandlers{businesses: opts.Businesses, logger: logger}
}

type businessListResponse struct {
	Businesses []*model.Business `json:"businesses"`
}

// List handles GET /api/businesses. view=mine narrows the listing to the
// signed-in caller's businesses.
func (h *BusinessHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("view") == "mine" {
		businesses, err := h.businesses.ListMine(r.Context(), ActorFromContext(r.Context()))
		if err != nil {
			WriteServiceError(w, r, h.logger, err)
			return
		}
		writeBusinessList(w, businesses)
		return
	}

	limit, offset := ParseLimitOffset(r, defaultBusinessPageSize, maxBusinessPageSize)
	sort, dir := ParseSortParam(q, "sort", "dir")
	opts := model.BusinessListOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   sort,
		Dir:    dir,
	}
	if v := q.Get("q"); v != "" {
		opts.Q = &v
	}
	if v := q.Get("owner_id"); v != "" {
		opts.OwnerID = &v
	}
	if v := q.Get("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     errors.New("verified must be a valid boolean"),
			})
			return
		}
		opts.Verified = &verified
	}

	businesses, err := h.businesses.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	writeBusinessList(w, businesses)
}

func writeBusinessList(w http.ResponseWriter, businesses []*model.Business) {
	if businesses == nil {
		businesses = []*model.Business{}
	}
	WriteJSON(w, http.StatusOK, businessListResponse{Businesses: businesses})
}

// Create handles POST /api/businesses. The owner is always the signed-in
// caller; attendees must switch roles first.
func (h *BusinessHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBusinessRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	business, err := h.businesses.Create(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, business)
}

// Get handles GET /api/businesses/{id}.
func (h *BusinessHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	business, err := h.businesses.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, business)
}

// Update handles PATCH /api/businesses/{id}. Owner or admin only.
func (h *BusinessHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdateBusinessRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	business, err := h.businesses.Update(r.Context(), ActorFromContext(r.Context()), id, req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, business)
}

// Delete handles DELETE /api/businesses/{id}. Owner or admin only. Events and
// forms under the business go with it.
func (h *BusinessHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.businesses.Delete(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if !deleted {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "business_not_found", Err: errors.New("business not found")},
		)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type claimSubdomainRequest struct {
	Subdomain string `json:"subdomain"`
}

// ClaimSubdomain handles POST /api/businesses/{id}/subdomain. An empty
// subdomain releases the claim. The owner's plan must carry the custom
// subdomain entitlement.
func (h *BusinessHandlers) ClaimSubdomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req claimSubdomainRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	business, err := h.businesses.ClaimSubdomain(r.Context(), ActorFromContext(r.Context()), id, req.Subdomain)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, business)
}

type businessVerifyRequest struct {
	Verified bool `json:"verified"`
}

// SetVerified handles POST /api/businesses/{id}/verify. Admin only. An empty
// body verifies; send {"verified": false} to revoke the badge.
func (h *BusinessHandlers) SetVerified(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	req := businessVerifyRequest{Verified: true}
	if err := decodeOptionalJSON(r, &req); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return
	}

	business, err := h.businesses.SetVerified(r.Context(), ActorFromContext(r.Context()), id, req.Verified)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, business)
}
