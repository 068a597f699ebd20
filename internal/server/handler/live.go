package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/service"
)

// LiveAPI is the part of service.LiveService the handlers use.
type LiveAPI interface {
	Start(ctx context.Context, req service.StartMatchRequest) (domain.Transition, error)
	Update(ctx context.Context, matchID string, u domain.LiveUpdate) (domain.Transition, error)
	Finish(ctx context.Context, matchID string) (domain.Transition, error)
	Stop(ctx context.Context, matchID string) error
	Get(ctx context.Context, matchID string) (domain.LiveMatchState, error)
	List(ctx context.Context) []domain.LiveMatchState
}

// LiveHandler serves live match endpoints.
type LiveHandler struct {
	svc    LiveAPI
	logger *slog.Logger
}

// NewLiveHandler creates a LiveHandler.
func NewLiveHandler(svc LiveAPI, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{svc: svc, logger: logHandler(logger, "live")}
}

// Start begins tracking a match.
// POST /api/live
func (h *LiveHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req service.StartMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	tr, err := h.svc.Start(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tr)
}

// List returns every tracked match.
// GET /api/live
func (h *LiveHandler) List(w http.ResponseWriter, r *http.Request) {
	matches := h.svc.List(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

// Get returns one match.
// GET /api/live/{id}
func (h *LiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Update applies a score/minute observation.
// POST /api/live/{id}/update
func (h *LiveHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u domain.LiveUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	tr, err := h.svc.Update(r.Context(), r.PathValue("id"), u)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// Finish ends a match at its current minute.
// POST /api/live/{id}/finish
func (h *LiveHandler) Finish(w http.ResponseWriter, r *http.Request) {
	tr, err := h.svc.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// Stop stops tracking a match.
// DELETE /api/live/{id}
func (h *LiveHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Stop(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
