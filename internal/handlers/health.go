package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/repositories"
)

// ReadinessCheck reports whether a named dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	started      time.Time
	clock        func() time.Time
	checks       map[string]ReadinessCheck
	dependencies repositories.HealthRepository
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock injects a custom clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadinessCheck registers a dependency probe evaluated by Readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// WithHealthDependencies wires a probe set whose checks run concurrently
// with per-dependency timeouts.
func WithHealthDependencies(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.dependencies = repo
	}
}

// NewHealthHandlers constructs the health endpoints.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:  time.Now,
		checks: make(map[string]ReadinessCheck),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.started = h.clock().UTC()
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.started).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz reports dependency readiness. Any failing check turns the probe
// into a 503 with the failing dependency names.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	failing := make(map[string]string)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failing[name] = err.Error()
		}
	}
	if h.dependencies != nil {
		report, err := h.dependencies.Collect(ctx)
		if err != nil {
			failing["dependencies"] = err.Error()
		}
		for _, status := range report.Dependencies {
			if !status.Healthy {
				failing[status.Name] = status.Error
			}
		}
	}

	if len(failing) > 0 {
		httpx.WriteJSON(ctx, w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unavailable",
			"failures": failing,
		})
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{"status": "ok"})
}
