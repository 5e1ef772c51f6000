package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency ping so a wedged pool cannot
// hang the probe.
const healthCheckTimeout = 2 * time.Second

// HealthHandlers answers liveness and readiness probes. Each configured
// dependency is pinged; any failure turns the response into a 503 so the
// load balancer drains the instance.
type HealthHandlers struct {
	db     func(ctx context.Context) error
	redis  func(ctx context.Context) error
	logger *slog.Logger
}

// HealthHandlersOptions groups dependencies for HealthHandlers. Ping
// functions are optional; nil checks are skipped.
type HealthHandlersOptions struct {
	DB     func(ctx context.Context) error
	Redis  func(ctx context.Context) error
	Logger *slog.Logger
}

// NewHealthHandlers constructs handlers for health probes.
func NewHealthHandlers(opts HealthHandlersOptions) *HealthHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandlers{db: opts.DB, redis: opts.Redis, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports process liveness and dependency readiness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	healthy = h.runCheck(r.Context(), "db", h.db, checks) && healthy
	healthy = h.runCheck(r.Context(), "redis", h.redis, checks) && healthy

	status := http.StatusOK
	resp := healthResponse{Status: "ok", Checks: checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "degraded"
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, resp)
}

func (h *HealthHandlers) runCheck(
	ctx context.Context,
	name string,
	ping func(ctx context.Context) error,
	checks map[string]string,
) bool {
	if ping == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
		checks[name] = "failed"
		return false
	}
	checks[name] = "ok"
	return true
}
