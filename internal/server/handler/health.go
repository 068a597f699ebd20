package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness and dependency health.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks may be empty.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logHandler(logger, "health")}
}

// HealthCheck runs every probe with a short deadline and answers 503 when any
// fails.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
