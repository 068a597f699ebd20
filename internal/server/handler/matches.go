package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/service"
)

// maxCSVBytes caps an uploaded match log.
const maxCSVBytes = 64 << 20

// MatchAPI is the part of service.IngestService the handlers use.
type MatchAPI interface {
	ImportCSV(ctx context.Context, source string, r io.Reader) (service.ImportSummary, error)
	ImportBlob(ctx context.Context, key string) (service.ImportSummary, error)
	Matches(ctx context.Context, team string, opts domain.ListOpts) ([]domain.MatchRecord, error)
	Count(ctx context.Context) (int64, error)
}

// MatchHandler serves match log import and listing.
type MatchHandler struct {
	svc    MatchAPI
	logger *slog.Logger
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(svc MatchAPI, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{svc: svc, logger: logHandler(logger, "matches")}
}

// Import loads a match log. A JSON body {"key": "..."} imports an object
// from storage; any other body is read as CSV.
// POST /api/matches/import
func (h *MatchHandler) Import(w http.ResponseWriter, r *http.Request) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		summary service.ImportSummary
		err     error
	)
	if mt == "application/json" {
		var body struct {
			Key string `json:"key"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		if body.Key == "" {
			writeServiceError(w, r, h.logger, fmt.Errorf("%w: key is required", domain.ErrInvalidRecord))
			return
		}
		summary, err = h.svc.ImportBlob(r.Context(), body.Key)
	} else {
		summary, err = h.svc.ImportCSV(r.Context(), "upload", http.MaxBytesReader(w, r.Body, maxCSVBytes))
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type matchView struct {
	Date         string `json:"date"`
	Team         string `json:"team"`
	Opponent     string `json:"opponent"`
	Venue        string `json:"venue"`
	GoalsFor     int    `json:"gf"`
	GoalsAgainst int    `json:"ga"`
	Result       string `json:"result"`
	Shots        *int   `json:"sh,omitempty"`
	ShotsOnTgt   *int   `json:"sot,omitempty"`
	Season       string `json:"season,omitempty"`
}

// List returns a team's stored matches, newest first. Without a team it
// returns the row count only.
// GET /api/matches?team=
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	if team == "" {
		n, err := h.svc.Count(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": n})
		return
	}

	recs, err := h.svc.Matches(r.Context(), team, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]matchView, 0, len(recs))
	for _, m := range recs {
		out = append(out, matchView{
			Date:         m.MatchDate.Format(domain.DateLayout),
			Team:         m.Team,
			Opponent:     m.Opponent,
			Venue:        string(m.Venue),
			GoalsFor:     m.GoalsFor,
			GoalsAgainst: m.GoalsAgainst,
			Result:       string(m.Result()),
			Shots:        m.Shots,
			ShotsOnTgt:   m.ShotsOnTarget,
			Season:       m.Season,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": team, "matches": out, "count": len(out)})
}
