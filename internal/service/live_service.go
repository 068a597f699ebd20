package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/live"
	"github.com/alanyoungcy/matchcast/internal/prob"
)

// EventMirror copies live transitions to an external log such as Kafka.
type EventMirror interface {
	PublishTransition(ctx context.Context, tr domain.Transition) error
}

// RatingLookup returns home minus away for two rated teams.
type RatingLookup interface {
	RatingDiff(home, away string) (float64, bool)
}

// StartMatchRequest begins tracking a match.
type StartMatchRequest struct {
	MatchID  string `json:"match_id,omitempty"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

// LiveService runs live matches and fans out every accepted transition to
// the cache, the event store, the bus and the optional mirror.
type LiveService struct {
	manager  *live.Manager
	ratings  RatingLookup
	cache    domain.LiveMatchCache
	events   domain.LiveEventStore
	bus      domain.SignalBus
	mirror   EventMirror
	notifier Notifier
	logger   *slog.Logger
}

// NewLiveService creates a LiveService. Every dependency except manager may
// be nil.
func NewLiveService(
	manager *live.Manager,
	ratings RatingLookup,
	cache domain.LiveMatchCache,
	events domain.LiveEventStore,
	bus domain.SignalBus,
	mirror EventMirror,
	notifier Notifier,
	logger *slog.Logger,
) *LiveService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &LiveService{
		manager:  manager,
		ratings:  ratings,
		cache:    cache,
		events:   events,
		bus:      bus,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "live_service")),
	}
}

// Start begins tracking a match. The pre-match rating gap is attached when
// both teams are rated.
func (s *LiveService) Start(ctx context.Context, req StartMatchRequest) (domain.Transition, error) {
	var diff float64
	if s.ratings != nil {
		if d, ok := s.ratings.RatingDiff(req.HomeTeam, req.AwayTeam); ok {
			diff = d
		}
	}
	return s.manager.Start(ctx, live.StartRequest{
		MatchID:    req.MatchID,
		HomeTeam:   req.HomeTeam,
		AwayTeam:   req.AwayTeam,
		RatingDiff: diff,
	})
}

// Update applies a score/minute observation.
func (s *LiveService) Update(ctx context.Context, matchID string, u domain.LiveUpdate) (domain.Transition, error) {
	return s.manager.Update(ctx, matchID, u)
}

// Finish ends a match at its current minute.
func (s *LiveService) Finish(ctx context.Context, matchID string) (domain.Transition, error) {
	return s.manager.Finish(ctx, matchID)
}

// Stop stops tracking a match.
func (s *LiveService) Stop(ctx context.Context, matchID string) error {
	return s.manager.Stop(ctx, matchID)
}

// Get returns a match's state. Matches owned by another process are served
// from the shared cache.
func (s *LiveService) Get(ctx context.Context, matchID string) (domain.LiveMatchState, error) {
	st, err := s.manager.Get(ctx, matchID)
	if err == nil || !errors.Is(err, domain.ErrNotFound) || s.cache == nil {
		return st, err
	}
	return s.cache.Get(ctx, matchID)
}

// List returns every match tracked by this process.
func (s *LiveService) List(ctx context.Context) []domain.LiveMatchState {
	return s.manager.List(ctx)
}

// LiveCount is the number of matches tracked by this process.
func (s *LiveService) LiveCount() int { return s.manager.Count() }

// Dropped reports transitions lost to a full outbox.
func (s *LiveService) Dropped() int64 { return s.manager.Dropped() }

// Run consumes transitions until ctx is cancelled.
func (s *LiveService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "live broadcaster started")
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "live broadcaster stopped")
			return ctx.Err()
		case tr := <-s.manager.Transitions():
			s.handle(ctx, tr)
		}
	}
}

func (s *LiveService) handle(ctx context.Context, tr domain.Transition) {
	st := tr.State
	log := s.logger.With(slog.String("match_id", st.MatchID))

	if s.cache != nil {
		var err error
		if tr.Stopped {
			err = s.cache.Delete(ctx, st.MatchID)
		} else {
			err = s.cache.Set(ctx, st)
		}
		if err != nil {
			log.WarnContext(ctx, "live cache write failed", slog.String("error", err.Error()))
		}
	}

	if s.events != nil && len(tr.Events) > 0 {
		if err := s.events.Append(ctx, st, tr.Events); err != nil {
			log.WarnContext(ctx, "persist live events failed", slog.String("error", err.Error()))
		}
	}

	if s.mirror != nil {
		if err := s.mirror.PublishTransition(ctx, tr); err != nil {
			log.WarnContext(ctx, "mirror live transition failed", slog.String("error", err.Error()))
		}
	}

	msgType := transitionType(tr)
	publish(ctx, s.bus, s.logger, domain.TopicLiveMatches, msgType, st)
	if !tr.Stopped {
		publish(ctx, s.bus, s.logger, domain.TopicLiveMatches, domain.MsgPredictionUpdate, livePredictionView(tr))
	}

	if msgType == domain.MsgMatchFinished {
		title := fmt.Sprintf("%s %d-%d %s", st.HomeTeam, st.HomeScore, st.AwayScore, st.AwayTeam)
		msg := fmt.Sprintf("Full time at minute %d", st.Minute)
		if err := s.notifier.Notify(ctx, domain.MsgMatchFinished, title, msg); err != nil {
			log.WarnContext(ctx, "notify match finished failed", slog.String("error", err.Error()))
		}
	}
}

// transitionType picks the bus message type that best describes a transition.
func transitionType(tr domain.Transition) string {
	if tr.Stopped {
		return domain.MsgMatchStopped
	}
	if len(tr.Events) == 0 && tr.State.Status == domain.StatusPreMatch {
		return domain.MsgMatchStarted
	}
	goal := false
	for _, ev := range tr.Events {
		if sc, ok := ev.(domain.StatusChangeEvent); ok && sc.To == domain.StatusFullTime {
			return domain.MsgMatchFinished
		}
		if ev.Kind() == domain.EventGoal {
			goal = true
		}
	}
	if goal {
		return domain.MsgScoreUpdate
	}
	return domain.MsgMinuteUpdate
}

type livePredictionSummary struct {
	MatchID string `json:"match_id"`
	domain.Probabilities
	Confidence float64 `json:"confidence"`
	Minute     int     `json:"minute"`
	ModelID    string  `json:"model_id"`
}

func livePredictionView(tr domain.Transition) livePredictionSummary {
	return livePredictionSummary{
		MatchID:       tr.State.MatchID,
		Probabilities: prob.Round(tr.Prediction.Probabilities, 3),
		Confidence:    tr.Prediction.Confidence,
		Minute:        tr.Prediction.Minute,
		ModelID:       tr.Prediction.ModelID,
	}
}
