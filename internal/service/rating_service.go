package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/pipeline"
)

const rebuildLockKey = "rating_rebuild"

// RatingConfig holds the engine parameters and rebuild lock lease.
type RatingConfig struct {
	Fold    pipeline.FoldConfig
	LockTTL time.Duration
}

// RebuildSummary describes the last completed rebuild.
type RebuildSummary struct {
	Records   int           `json:"records"`
	Fixtures  int           `json:"fixtures"`
	Teams     int           `json:"teams"`
	LastMatch string        `json:"last_match,omitempty"`
	Flushed   int64         `json:"features_flushed"`
	Duration  time.Duration `json:"duration_ns"`
	At        time.Time     `json:"at"`
}

// RatingService owns the folded engine state. Rebuild replays the whole
// match log and swaps the result in atomically, so readers always see one
// complete fold.
type RatingService struct {
	matches  domain.MatchStore
	history  domain.RatingHistoryStore
	features domain.FeatureCache
	lock     domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	cfg      RatingConfig
	logger   *slog.Logger

	state atomic.Pointer[pipeline.State]

	mu   sync.Mutex // serializes rebuilds inside this process
	last RebuildSummary
}

// NewRatingService creates a RatingService. features, lock, bus, audit and
// notifier may be nil.
func NewRatingService(
	matches domain.MatchStore,
	history domain.RatingHistoryStore,
	features domain.FeatureCache,
	lock domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	cfg RatingConfig,
	logger *slog.Logger,
) *RatingService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &RatingService{
		matches:  matches,
		history:  history,
		features: features,
		lock:     lock,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "rating_service")),
	}
}

// Rebuild folds the stored match log from scratch, persists the rating
// history and publishes the new state.
func (s *RatingService) Rebuild(ctx context.Context) (RebuildSummary, error) {
	summary, err := s.rebuild(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "rating rebuild failed", slog.String("error", err.Error()))
		if !errors.Is(err, domain.ErrLockHeld) {
			publish(ctx, s.bus, s.logger, domain.TopicGeneral, domain.MsgRebuildFailed, map[string]string{"error": err.Error()})
			_ = s.notifier.Notify(ctx, domain.MsgRebuildFailed, "Rating rebuild failed", err.Error())
		}
		return RebuildSummary{}, err
	}

	s.logger.InfoContext(ctx, "rating rebuild completed",
		slog.Int("records", summary.Records),
		slog.Int("fixtures", summary.Fixtures),
		slog.Int("teams", summary.Teams),
		slog.Duration("duration", summary.Duration),
	)
	if s.audit != nil {
		if err := s.audit.Log(ctx, domain.MsgRebuildCompleted, map[string]any{
			"records":  summary.Records,
			"fixtures": summary.Fixtures,
			"teams":    summary.Teams,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit rebuild failed", slog.String("error", err.Error()))
		}
	}
	publish(ctx, s.bus, s.logger, domain.TopicGeneral, domain.MsgRebuildCompleted, summary)
	_ = s.notifier.Notify(ctx, domain.MsgRebuildCompleted, "Ratings rebuilt",
		fmt.Sprintf("%d fixtures, %d teams", summary.Fixtures, summary.Teams))
	return summary, nil
}

func (s *RatingService) rebuild(ctx context.Context) (RebuildSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		unlock, err := s.lock.Acquire(ctx, rebuildLockKey, s.cfg.LockTTL)
		if err != nil {
			return RebuildSummary{}, fmt.Errorf("rating_service: rebuild: %w", err)
		}
		defer unlock()
	}

	start := time.Now()
	records, err := s.matches.ListAll(ctx)
	if err != nil {
		return RebuildSummary{}, fmt.Errorf("rating_service: load matches: %w", err)
	}
	st, err := pipeline.Fold(ctx, records, s.cfg.Fold)
	if err != nil {
		return RebuildSummary{}, fmt.Errorf("rating_service: fold: %w", err)
	}
	if s.history != nil {
		if err := s.history.ReplaceAll(ctx, st.History()); err != nil {
			return RebuildSummary{}, fmt.Errorf("rating_service: persist history: %w", err)
		}
	}
	s.state.Store(st)

	summary := RebuildSummary{
		Records:  len(records),
		Fixtures: st.Fixtures(),
		Teams:    len(st.Table()),
		Duration: time.Since(start),
		At:       time.Now().UTC(),
	}
	if !st.LastMatch().IsZero() {
		summary.LastMatch = st.LastMatch().Format(domain.DateLayout)
	}
	if s.features != nil {
		n, err := s.features.Flush(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "flush feature cache failed", slog.String("error", err.Error()))
		}
		summary.Flushed = n
	}
	s.last = summary
	return summary, nil
}

// LastRebuild returns the summary of the most recent successful rebuild.
func (s *RatingService) LastRebuild() (RebuildSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, !s.last.At.IsZero()
}

// Ready reports whether a fold has completed.
func (s *RatingService) Ready() bool { return s.state.Load() != nil }

func (s *RatingService) current() (*pipeline.State, error) {
	st := s.state.Load()
	if st == nil {
		return nil, fmt.Errorf("rating_service: %w: no rebuild has completed", domain.ErrNotReady)
	}
	return st, nil
}

// Current returns a team's rating.
func (s *RatingService) Current(team string) (domain.TeamRating, error) {
	st, err := s.current()
	if err != nil {
		return domain.TeamRating{}, err
	}
	for _, tr := range st.Table() {
		if tr.Team == team {
			return tr, nil
		}
	}
	return domain.TeamRating{}, fmt.Errorf("rating_service: team %q: %w", team, domain.ErrNotFound)
}

// Table returns every team's rating, strongest first.
func (s *RatingService) Table() ([]domain.TeamRating, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return st.Table(), nil
}

// TeamForm returns a team's current rolling form per window.
func (s *RatingService) TeamForm(team string) (map[int]domain.FormSnapshot, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	form, ok := st.Form(team)
	if !ok {
		return nil, fmt.Errorf("rating_service: team %q: %w", team, domain.ErrNotFound)
	}
	return form, nil
}

// TeamHistory returns a team's rating movements, oldest first.
func (s *RatingService) TeamHistory(team string) ([]domain.RatingChange, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	h := st.TeamHistory(team)
	if len(h) == 0 {
		return nil, fmt.Errorf("rating_service: team %q: %w", team, domain.ErrNotFound)
	}
	return h, nil
}

// FeaturesFor returns the pre-match features for a fixture.
func (s *RatingService) FeaturesFor(_ context.Context, team, opponent string, date time.Time, venue domain.Venue) (domain.FeatureVector, error) {
	st, err := s.current()
	if err != nil {
		return domain.FeatureVector{}, err
	}
	return st.FeaturesFor(team, opponent, date, venue)
}

// RatingDiff returns home minus away when both teams are rated.
func (s *RatingService) RatingDiff(home, away string) (float64, bool) {
	st := s.state.Load()
	if st == nil {
		return 0, false
	}
	h, okH := st.Rating(home)
	a, okA := st.Rating(away)
	if !okH || !okA {
		return 0, false
	}
	return h - a, true
}
