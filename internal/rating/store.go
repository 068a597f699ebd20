// Package rating implements the Elo-style team strength recurrence.
package rating

import (
	"fmt"
	"math"
	"sort"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Store holds the current rating of every team seen so far. A Store is owned
// by a single writer; concurrent readers must only see a Store after the
// writer is done with it.
type Store struct {
	initial float64
	ratings map[string]float64
	matches map[string]int
}

// NewStore creates an empty store whose unseen teams start at initial.
func NewStore(initial float64) *Store {
	return &Store{
		initial: initial,
		ratings: make(map[string]float64),
		matches: make(map[string]int),
	}
}

// Initial returns the default rating for unseen teams.
func (s *Store) Initial() float64 { return s.initial }

// Rating returns team's rating, or the initial rating if it has not been seen.
func (s *Store) Rating(team string) float64 {
	if r, ok := s.ratings[team]; ok {
		return r
	}
	return s.initial
}

// Known reports whether team has been registered.
func (s *Store) Known(team string) bool {
	_, ok := s.ratings[team]
	return ok
}

// Register pre-seeds team at the initial rating. It is a no-op for known teams.
func (s *Store) Register(team string) {
	if _, ok := s.ratings[team]; !ok {
		s.ratings[team] = s.initial
	}
}

// Seed sets a team's rating directly, e.g. when restoring from persistence.
func (s *Store) Seed(team string, rating float64) error {
	if team == "" || math.IsNaN(rating) || math.IsInf(rating, 0) {
		return fmt.Errorf("rating: seed %q: %w", team, domain.ErrInvalidRatingInput)
	}
	s.ratings[team] = rating
	return nil
}

// Len returns the number of registered teams.
func (s *Store) Len() int { return len(s.ratings) }

// Table returns every team's rating ordered from strongest to weakest. Equal
// ratings are ordered by team name.
func (s *Store) Table() []domain.TeamRating {
	out := make([]domain.TeamRating, 0, len(s.ratings))
	for team, r := range s.ratings {
		out = append(out, domain.TeamRating{Team: team, Rating: r, Matches: s.matches[team]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Team < out[j].Team
	})
	return out
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	c := NewStore(s.initial)
	for k, v := range s.ratings {
		c.ratings[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	return c
}
