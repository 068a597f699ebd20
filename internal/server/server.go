package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/server/handler"
	"github.com/alanyoungcy/matchcast/internal/server/middleware"
	"github.com/alanyoungcy/matchcast/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port             int
	CORSOrigins      []string
	APIKey           string // if empty, authentication is disabled
	PredictPerMinute int    // 0 disables the predict rate limit
}

// Handlers aggregates the HTTP handlers the server registers. Nil handlers
// leave their routes unregistered.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Ratings     *handler.RatingHandler
	Predictions *handler.PredictionHandler
	Matches     *handler.MatchHandler
	Live        *handler.LiveHandler
	Broadcast   *handler.BroadcastHandler
}

// Server is the HTTP + WebSocket API for ratings, predictions and live
// matches.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in auth, logging and
// CORS middleware, outermost last.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if h := handlers.Health; h != nil {
		mux.HandleFunc("GET /api/health", h.HealthCheck)
	}
	if h := handlers.Status; h != nil {
		mux.HandleFunc("GET /api/status", h.GetStatus)
	}

	if h := handlers.Predictions; h != nil {
		limited := middleware.RateLimit(limiter, "predict", cfg.PredictPerMinute, time.Minute, logger)
		mux.Handle("POST /api/predict", limited(http.HandlerFunc(h.Predict)))
		mux.HandleFunc("GET /api/predictions", h.List)
		mux.HandleFunc("GET /api/predictions/{id}", h.Get)
	}

	if h := handlers.Ratings; h != nil {
		mux.HandleFunc("GET /api/ratings", h.List)
		mux.HandleFunc("GET /api/ratings/{team}", h.Get)
		mux.HandleFunc("GET /api/ratings/{team}/history", h.History)
		mux.HandleFunc("GET /api/teams/{team}/form", h.Form)
		mux.HandleFunc("POST /api/ratings/rebuild", h.Rebuild)
	}

	if h := handlers.Matches; h != nil {
		mux.HandleFunc("POST /api/matches/import", h.Import)
		mux.HandleFunc("GET /api/matches", h.List)
	}

	if h := handlers.Live; h != nil {
		mux.HandleFunc("POST /api/live", h.Start)
		mux.HandleFunc("GET /api/live", h.List)
		mux.HandleFunc("GET /api/live/{id}", h.Get)
		mux.HandleFunc("POST /api/live/{id}/update", h.Update)
		mux.HandleFunc("POST /api/live/{id}/finish", h.Finish)
		mux.HandleFunc("DELETE /api/live/{id}", h.Stop)
	}

	if h := handlers.Broadcast; h != nil {
		mux.HandleFunc("POST /api/broadcast/{topic}", h.Broadcast)
		mux.HandleFunc("GET /api/ws/stats", h.Stats)
	}

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
