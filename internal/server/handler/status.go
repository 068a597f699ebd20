package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/matchcast/internal/service"
)

// StatusSource reports the rating engine's readiness.
type StatusSource interface {
	Ready() bool
	LastRebuild() (service.RebuildSummary, bool)
}

// LiveCounter reports live match tracking figures.
type LiveCounter interface {
	LiveCount() int
	Dropped() int64
}

// StatusHandler serves the runtime status.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	ratings   StatusSource
	live      LiveCounter
}

// NewStatusHandler creates a StatusHandler. live may be nil.
func NewStatusHandler(mode string, startedAt time.Time, ratings StatusSource, live LiveCounter) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, ratings: ratings, live: live}
}

// GetStatus reports mode, uptime, rating readiness and live match counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"ratings_ready":  h.ratings.Ready(),
	}
	if last, ok := h.ratings.LastRebuild(); ok {
		body["last_rebuild"] = last
	}
	if h.live != nil {
		body["live_matches"] = h.live.LiveCount()
		body["live_dropped"] = h.live.Dropped()
	}
	writeJSON(w, http.StatusOK, body)
}
