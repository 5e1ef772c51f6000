package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/service"
)

// stripeWebhookMaxBody caps webhook payload reads. Stripe events are small;
// anything past this is not a legitimate delivery.
const stripeWebhookMaxBody = 1 << 20

// WebhookHandlers receives provider callbacks. These endpoints sit outside
// the session and CSRF layers; authenticity comes from the provider's
// signature, which the service verifies against the raw body.
type WebhookHandlers struct {
	billing *service.BillingWebhookService
	logger  *slog.Logger
}

// WebhookHandlersOptions groups dependencies for WebhookHandlers.
type WebhookHandlersOptions struct {
	Billing *service.BillingWebhookService // Optional: deliveries are rejected when nil
	Logger  *slog.Logger
}

// NewWebhookHandlers constructs handlers for provider webhook endpoints.
func NewWebhookHandlers(opts WebhookHandlersOptions) *WebhookHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandlers{billing: opts.Billing, logger: logger}
}

// Stripe handles one Stripe event delivery. The body must be passed to the
// service byte-for-byte as received or signature verification fails, so this
// handler never decodes it. A 200 acknowledges the delivery; Stripe retries
// anything else.
func (h *WebhookHandlers) Stripe(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "billing_not_configured",
			Err:     errors.New("billing is not configured"),
		})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, stripeWebhookMaxBody))
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_payload",
			Err:     errors.New("could not read webhook payload"),
		})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.billing.HandleEvent(r.Context(), payload, signature); err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
