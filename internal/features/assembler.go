// Package features builds pre-match feature vectors from the rating and
// rolling form engines.
package features

import (
	"fmt"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// RatingReader is the read side of the rating engine.
type RatingReader interface {
	Current(team string) float64
	Known(team string) bool
}

// FormReader is the read side of the rolling statistics engine.
type FormReader interface {
	Snapshot(team string) map[int]domain.FormSnapshot
	Known(team string) bool
	Windows() []int
}

// Assembler joins both engines' pre-match state into a FeatureVector. It
// never mutates either engine.
type Assembler struct {
	ratings RatingReader
	form    FormReader
}

// NewAssembler creates an assembler over the two readers.
func NewAssembler(ratings RatingReader, form FormReader) *Assembler {
	return &Assembler{ratings: ratings, form: form}
}

// Build returns the feature vector for m from the engines' current state.
func (a *Assembler) Build(m domain.MatchRecord) (domain.FeatureVector, error) {
	return Build(m, a.ratings, a.form)
}

// Build assembles the feature vector for m. Both participants must already
// be registered with both engines.
func Build(m domain.MatchRecord, ratings RatingReader, form FormReader) (domain.FeatureVector, error) {
	for _, team := range []string{m.Team, m.Opponent} {
		if !ratings.Known(team) || !form.Known(team) {
			return domain.FeatureVector{}, fmt.Errorf("features: build %s: team %q: %w",
				m.Fixture(), team, domain.ErrMissingUpstreamState)
		}
	}

	teamRating := ratings.Current(m.Team)
	oppRating := ratings.Current(m.Opponent)
	teamForm := form.Snapshot(m.Team)
	oppForm := form.Snapshot(m.Opponent)

	sizes := form.Windows()
	windows := make([]domain.WindowFeatures, 0, len(sizes))
	for _, w := range sizes {
		t, o := teamForm[w], oppForm[w]
		windows = append(windows, domain.WindowFeatures{
			Window:       w,
			Team:         t,
			Opponent:     o,
			GoalDiffDiff: t.GoalDifference() - o.GoalDifference(),
			WinRateDiff:  t.WinRate - o.WinRate,
		})
	}

	return domain.FeatureVector{
		MatchDate:      m.MatchDate,
		Team:           m.Team,
		Opponent:       m.Opponent,
		Venue:          m.Venue,
		TeamRating:     teamRating,
		OpponentRating: oppRating,
		RatingDiff:     teamRating - oppRating,
		Windows:        windows,
	}, nil
}
