package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/service"
)

// RatingAPI is the part of service.RatingService the handlers use.
type RatingAPI interface {
	Table() ([]domain.TeamRating, error)
	Current(team string) (domain.TeamRating, error)
	TeamForm(team string) (map[int]domain.FormSnapshot, error)
	TeamHistory(team string) ([]domain.RatingChange, error)
	Rebuild(ctx context.Context) (service.RebuildSummary, error)
}

// RatingHandler serves ratings, form and rebuild endpoints.
type RatingHandler struct {
	svc    RatingAPI
	logger *slog.Logger
}

// NewRatingHandler creates a RatingHandler.
func NewRatingHandler(svc RatingAPI, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{svc: svc, logger: logHandler(logger, "ratings")}
}

// List returns the ratings table, strongest first.
// GET /api/ratings
func (h *RatingHandler) List(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.Table()
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratings": table, "count": len(table)})
}

// Get returns one team's rating.
// GET /api/ratings/{team}
func (h *RatingHandler) Get(w http.ResponseWriter, r *http.Request) {
	tr, err := h.svc.Current(r.PathValue("team"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// History returns a team's rating movements.
// GET /api/ratings/{team}/history
func (h *RatingHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := h.svc.TeamHistory(r.PathValue("team"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": r.PathValue("team"), "history": hist})
}

// Form returns a team's rolling form, one entry per window, smallest first.
// GET /api/teams/{team}/form
func (h *RatingHandler) Form(w http.ResponseWriter, r *http.Request) {
	form, err := h.svc.TeamForm(r.PathValue("team"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	windows := make([]domain.FormSnapshot, 0, len(form))
	for _, snap := range form {
		windows = append(windows, snap)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Window < windows[j].Window })
	writeJSON(w, http.StatusOK, map[string]any{"team": r.PathValue("team"), "windows": windows})
}

// Rebuild replays the match log synchronously.
// POST /api/ratings/rebuild
func (h *RatingHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "rating rebuild requested")
	summary, err := h.svc.Rebuild(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
