package rating

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Engine applies the rating recurrence to a Store, one match at a time, in
// chronological order.
type Engine struct {
	store *Store
	k     float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithKFactor overrides the default step size.
func WithKFactor(k float64) Option {
	return func(e *Engine) { e.k = k }
}

// NewEngine creates an engine writing into store.
func NewEngine(store *Store, opts ...Option) *Engine {
	e := &Engine{store: store, k: domain.DefaultKFactor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpectedScore is the probability-like expectation of team against opponent.
func ExpectedScore(teamRating, opponentRating float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponentRating-teamRating)/400))
}

// Current returns team's rating, defaulting for unseen teams.
func (e *Engine) Current(team string) float64 {
	return e.store.Rating(team)
}

// Known reports whether team is registered.
func (e *Engine) Known(team string) bool {
	return e.store.Known(team)
}

// Register lazily creates team at the initial rating.
func (e *Engine) Register(team string) {
	e.store.Register(team)
}

// Store exposes the underlying store.
func (e *Engine) Store() *Store { return e.store }

// Update applies one match's result, seen from team's side, and returns both
// new ratings. The change is zero-sum. Inputs are validated before anything
// is written, so a failed update leaves the store untouched.
func (e *Engine) Update(team, opponent string, result domain.Result) (float64, float64, error) {
	if team == "" || opponent == "" || team == opponent {
		return 0, 0, fmt.Errorf("rating: update %q vs %q: %w", team, opponent, domain.ErrInvalidRatingInput)
	}
	if !result.Valid() {
		return 0, 0, fmt.Errorf("rating: update result %q: %w", result, domain.ErrInvalidRatingInput)
	}

	rt := e.store.Rating(team)
	ro := e.store.Rating(opponent)
	if !finite(rt) || !finite(ro) || !finite(e.k) {
		return 0, 0, fmt.Errorf("rating: update %q vs %q: %w", team, opponent, domain.ErrInvalidRatingInput)
	}

	expected := ExpectedScore(rt, ro)
	delta := e.k * (result.Score() - expected)
	newTeam := rt + delta
	newOpp := ro - delta // k*((1-A)-(1-E))
	if !finite(newTeam) || !finite(newOpp) {
		return 0, 0, fmt.Errorf("rating: update %q vs %q: %w", team, opponent, domain.ErrInvalidRatingInput)
	}

	e.store.ratings[team] = newTeam
	e.store.ratings[opponent] = newOpp
	e.store.matches[team]++
	e.store.matches[opponent]++
	return newTeam, newOpp, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
