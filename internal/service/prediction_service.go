package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/matchcast/internal/classifier"
	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/prob"
)

// FeatureSource yields pre-match features. *RatingService satisfies it.
type FeatureSource interface {
	FeaturesFor(ctx context.Context, team, opponent string, date time.Time, venue domain.Venue) (domain.FeatureVector, error)
}

// PredictRequest names a fixture from Team's perspective.
type PredictRequest struct {
	Team     string       `json:"team"`
	Opponent string       `json:"opponent"`
	Date     time.Time    `json:"date"`
	Venue    domain.Venue `json:"venue"`
}

func (r PredictRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Team) == "" || strings.TrimSpace(r.Opponent) == "":
		return fmt.Errorf("%w: team and opponent are required", domain.ErrInvalidRecord)
	case r.Team == r.Opponent:
		return fmt.Errorf("%w: team and opponent must differ", domain.ErrInvalidRecord)
	case r.Date.IsZero():
		return fmt.Errorf("%w: missing match date", domain.ErrInvalidRecord)
	case r.Venue != domain.VenueHome && r.Venue != domain.VenueAway:
		return fmt.Errorf("%w: unknown venue %q", domain.ErrInvalidRecord, r.Venue)
	}
	return nil
}

// PredictionService scores fixtures with the configured classifier and keeps
// a record of every answer.
type PredictionService struct {
	features   FeatureSource
	cache      domain.FeatureCache
	classifier domain.Classifier
	store      domain.PredictionStore
	bus        domain.SignalBus
	logger     *slog.Logger
	now        func() time.Time
}

// NewPredictionService creates a PredictionService. cache, store and bus may
// be nil.
func NewPredictionService(
	features FeatureSource,
	cache domain.FeatureCache,
	c domain.Classifier,
	store domain.PredictionStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		features:   features,
		cache:      cache,
		classifier: c,
		store:      store,
		bus:        bus,
		logger:     logger.With(slog.String("component", "prediction_service")),
		now:        time.Now,
	}
}

// Predict assembles features for the fixture, classifies them and stores the
// prediction.
func (s *PredictionService) Predict(ctx context.Context, req PredictRequest) (domain.Prediction, error) {
	if err := req.validate(); err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: predict: %w", err)
	}

	fv, err := s.lookupFeatures(ctx, req)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: features: %w", err)
	}

	probs, modelID, err := classifier.Predict(ctx, s.classifier, fv)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: classify: %w", err)
	}

	p := domain.Prediction{
		ID:            uuid.NewString(),
		Team:          req.Team,
		Opponent:      req.Opponent,
		MatchDate:     req.Date,
		Venue:         req.Venue,
		Probabilities: probs,
		Label:         probs.Label(),
		ModelID:       modelID,
		Features:      fv,
		CreatedAt:     s.now().UTC(),
	}
	if s.store != nil {
		if err := s.store.Create(ctx, p); err != nil {
			return domain.Prediction{}, fmt.Errorf("prediction_service: store: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "prediction made",
		slog.String("id", p.ID),
		slog.String("team", p.Team),
		slog.String("opponent", p.Opponent),
		slog.String("label", string(p.Label)),
		slog.String("model", p.ModelID),
	)
	publish(ctx, s.bus, s.logger, domain.TopicPredictions, domain.MsgPredictionReady, predictionView(p))
	return p, nil
}

func (s *PredictionService) lookupFeatures(ctx context.Context, req PredictRequest) (domain.FeatureVector, error) {
	if s.cache != nil {
		fv, err := s.cache.Get(ctx, req.Team, req.Opponent, req.Date)
		if err == nil && fv.Venue == req.Venue {
			return fv, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "feature cache read failed", slog.String("error", err.Error()))
		}
	}

	fv, err := s.features.FeaturesFor(ctx, req.Team, req.Opponent, req.Date, req.Venue)
	if err != nil {
		return domain.FeatureVector{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, fv); err != nil {
			s.logger.WarnContext(ctx, "feature cache write failed", slog.String("error", err.Error()))
		}
	}
	return fv, nil
}

// Get returns a stored prediction.
func (s *PredictionService) Get(ctx context.Context, id string) (domain.Prediction, error) {
	if s.store == nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: get %s: %w", id, domain.ErrNotFound)
	}
	return s.store.GetByID(ctx, id)
}

// Recent lists stored predictions, newest first.
func (s *PredictionService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRecent(ctx, opts)
}

// predictionSummary is the compact form broadcast to subscribers.
type predictionSummary struct {
	ID        string `json:"id"`
	Team      string `json:"team"`
	Opponent  string `json:"opponent"`
	MatchDate string `json:"match_date"`
	Venue     string `json:"venue"`
	domain.Probabilities
	Label      string  `json:"label"`
	ModelID    string  `json:"model_id"`
	RatingDiff float64 `json:"rating_diff"`
}

func predictionView(p domain.Prediction) predictionSummary {
	return predictionSummary{
		ID:            p.ID,
		Team:          p.Team,
		Opponent:      p.Opponent,
		MatchDate:     p.MatchDate.Format(domain.DateLayout),
		Venue:         string(p.Venue),
		Probabilities: prob.Round(p.Probabilities, 3),
		Label:         string(p.Label),
		ModelID:       p.ModelID,
		RatingDiff:    math.Round(p.Features.RatingDiff*100) / 100,
	}
}
