package pipeline

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/features"
	"github.com/alanyoungcy/matchcast/internal/rating"
	"github.com/alanyoungcy/matchcast/internal/rolling"
)

// State is the outcome of a Fold. It must not be modified once Fold returns,
// which makes it safe to share between goroutines.
type State struct {
	ratings   *rating.Engine
	form      *rolling.Engine
	rows      []domain.FeatureRow
	pre       map[string]domain.FeatureVector // both perspectives of every fixture
	history   []domain.RatingChange
	fixtures  int
	lastMatch time.Time
}

func rowKey(team, opponent string, date time.Time) string {
	return date.Format(domain.DateLayout) + "|" + team + "|" + opponent
}

// Rows returns the feature row of every record, in chronological order.
func (s *State) Rows() []domain.FeatureRow { return s.rows }

// History returns every rating movement in processing order.
func (s *State) History() []domain.RatingChange { return s.history }

// Fixtures is the number of real matches processed.
func (s *State) Fixtures() int { return s.fixtures }

// LastMatch is the date of the most recent processed fixture.
func (s *State) LastMatch() time.Time { return s.lastMatch }

// Rating returns a team's current rating and whether the team has played.
func (s *State) Rating(team string) (float64, bool) {
	return s.ratings.Current(team), s.ratings.Known(team)
}

// Table returns the ratings table, strongest first.
func (s *State) Table() []domain.TeamRating {
	return s.ratings.Store().Table()
}

// Form returns a team's current rolling form per window size.
func (s *State) Form(team string) (map[int]domain.FormSnapshot, bool) {
	if !s.form.Known(team) {
		return nil, false
	}
	return s.form.Snapshot(team), true
}

// TeamHistory returns a team's rating movements, oldest first.
func (s *State) TeamHistory(team string) []domain.RatingChange {
	var out []domain.RatingChange
	for _, c := range s.history {
		if c.Team == team {
			out = append(out, c)
		}
	}
	return out
}

// FeaturesFor returns the feature vector for team against opponent on date.
// A fixture present in the log, from either side, returns the vector read
// before it was applied. A date after the last folded match is treated as
// upcoming and built from the latest state. Any other past date is rejected
// with domain.ErrInvalidRecord, since the current state already includes
// later results. Teams that never played return domain.ErrNotFound.
func (s *State) FeaturesFor(team, opponent string, date time.Time, venue domain.Venue) (domain.FeatureVector, error) {
	if fv, ok := s.pre[rowKey(team, opponent, date)]; ok {
		return fv, nil
	}
	if s.fixtures > 0 && !dateOnly(date).After(dateOnly(s.lastMatch)) {
		return domain.FeatureVector{}, fmt.Errorf("pipeline: %s v %s on %s: not after last folded match %s: %w",
			team, opponent, date.Format(domain.DateLayout), s.lastMatch.Format(domain.DateLayout), domain.ErrInvalidRecord)
	}
	for _, t := range []string{team, opponent} {
		if !s.ratings.Known(t) {
			return domain.FeatureVector{}, fmt.Errorf("pipeline: team %q: %w", t, domain.ErrNotFound)
		}
	}
	return features.Build(domain.MatchRecord{
		MatchDate: date,
		Team:      team,
		Opponent:  opponent,
		Venue:     venue,
	}, s.ratings, s.form)
}
