package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/ingest"
	"github.com/alanyoungcy/matchcast/internal/prob"
	"github.com/alanyoungcy/matchcast/internal/service"
)

// PredictionAPI is the part of service.PredictionService the handlers use.
type PredictionAPI interface {
	Predict(ctx context.Context, req service.PredictRequest) (domain.Prediction, error)
	Get(ctx context.Context, id string) (domain.Prediction, error)
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error)
}

// PredictionHandler serves prediction endpoints.
type PredictionHandler struct {
	svc    PredictionAPI
	logger *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(svc PredictionAPI, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{svc: svc, logger: logHandler(logger, "predictions")}
}

type predictBody struct {
	Team     string `json:"team"`
	Opponent string `json:"opponent"`
	Date     string `json:"date"`
	Venue    string `json:"venue"`
}

// predictionResponse rounds probabilities for display; the stored prediction
// keeps full precision.
type predictionResponse struct {
	domain.Prediction
	Probabilities domain.Probabilities `json:"probabilities"`
}

func present(p domain.Prediction) predictionResponse {
	return predictionResponse{Prediction: p, Probabilities: prob.Round(p.Probabilities, 3)}
}

// Predict scores one fixture.
// POST /api/predict
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var body predictBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	date, err := ingest.ParseDate(body.Date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	venue, err := domain.ParseVenue(body.Venue)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	p, err := h.svc.Predict(r.Context(), service.PredictRequest{
		Team:     body.Team,
		Opponent: body.Opponent,
		Date:     date,
		Venue:    venue,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, present(p))
}

// Get returns a stored prediction.
// GET /api/predictions/{id}
func (h *PredictionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, present(p))
}

// List returns recent predictions, newest first.
// GET /api/predictions
func (h *PredictionHandler) List(w http.ResponseWriter, r *http.Request) {
	preds, err := h.svc.Recent(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]predictionResponse, 0, len(preds))
	for _, p := range preds {
		out = append(out, present(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": out, "count": len(out)})
}
