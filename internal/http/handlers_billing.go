package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// BillingHandlers exposes the plan catalog and the subscription lifecycle.
// Checkout and cancellation go through Stripe; the resulting state lands via
// the webhook handlers, so these endpoints only open sessions and schedule
// changes.
type BillingHandlers struct {
	billing *service.BillingService
	logger  *slog.Logger
}

// BillingHandlersOptions groups dependencies for BillingHandlers.
type BillingHandlersOptions struct {
	Billing *service.BillingService // Required
	Logger  *slog.Logger
}

// NewBillingHandlers constructs handlers for billing endpoints.
func NewBillingHandlers(opts BillingHandlersOptions) *BillingHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandlers{billing: opts.Billing, logger: logger}
}

type planListResponse struct {
	Plans []*model.Plan `json:"plans"`
}

// ListPlans returns the plan catalog. Internally granted plans stay hidden
// unless an admin asks for them with include_all=true.
func (h *BillingHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	publicOnly := true
	if r.URL.Query().Get("include_all") == "true" {
		actor := ActorFromContext(r.Context())
		publicOnly = !actor.IsAdmin()
	}

	plans, err := h.billing.ListPlans(r.Context(), publicOnly)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if plans == nil {
		plans = []*model.Plan{}
	}
	WriteJSON(w, http.StatusOK, planListResponse{Plans: plans})
}

// SeedPlans inserts any missing rows from the canonical plan catalog.
func (h *BillingHandlers) SeedPlans(w http.ResponseWriter, r *http.Request) {
	inserted, err := h.billing.SeedDefaultPlans(r.Context(), ActorFromContext(r.Context()))
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"inserted": inserted})
}

// Subscription returns the caller's subscription joined with its plan.
func (h *BillingHandlers) Subscription(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())

	sub, err := h.billing.CurrentSubscription(r.Context(), actor.ProfileID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if sub == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "no_subscription",
			Err:     errors.New("no subscription on file"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
}

// Checkout opens a Stripe checkout session for a purchasable plan. The
// session URL is returned for the frontend to redirect to; the subscription
// itself is created when the completed-checkout webhook arrives.
func (h *BillingHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if _, err := uuid.Parse(req.PlanID); err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation_failed",
			Err:     errors.New("plan_id must be a valid UUID"),
		})
		return
	}

	result, err := h.billing.CreateCheckoutSession(r.Context(), ActorFromContext(r.Context()), req.PlanID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Cancel schedules the caller's subscription to lapse at period end. The
// updated subscription is returned so the frontend can show the lapse date.
func (h *BillingHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	sub, err := h.billing.CancelAtPeriodEnd(r.Context(), ActorFromContext(r.Context()))
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}
