// Package classifier turns pre-match feature vectors into win/draw/loss
// probabilities.
package classifier

import (
	"context"
	"math"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/prob"
)

// BaselineModelID identifies predictions made by Baseline.
const BaselineModelID = "baseline-elo"

const (
	formWindow   = 5
	formGoalW    = 0.04
	formWinRateW = 0.08
	maxFormAdj   = 0.12
	minDraw      = 0.12
	drawSpan     = 0.16
)

// Baseline converts the Elo expected score into three outcomes. Recent form
// over the 5-match window nudges the expectation, and the draw share grows as
// the two sides get closer.
type Baseline struct {
	homeAdvantage float64
}

// NewBaseline creates a Baseline. homeAdvantage is in rating points and is
// added to the home side's rating difference.
func NewBaseline(homeAdvantage float64) *Baseline {
	return &Baseline{homeAdvantage: homeAdvantage}
}

// ModelID implements domain.Classifier.
func (b *Baseline) ModelID() string { return BaselineModelID }

// Predict implements domain.Classifier. It never fails.
func (b *Baseline) Predict(_ context.Context, fv domain.FeatureVector) (domain.Probabilities, error) {
	diff := fv.RatingDiff
	switch fv.Venue {
	case domain.VenueHome:
		diff += b.homeAdvantage
	case domain.VenueAway:
		diff -= b.homeAdvantage
	}
	expected := 1 / (1 + math.Pow(10, -diff/400))

	if wf, ok := fv.Window(formWindow); ok {
		adj := formGoalW*wf.GoalDiffDiff + formWinRateW*wf.WinRateDiff
		expected += math.Max(-maxFormAdj, math.Min(maxFormAdj, adj))
	}
	expected = math.Max(0.02, math.Min(0.98, expected))

	closeness := 1 - math.Abs(2*expected-1)
	draw := minDraw + drawSpan*closeness
	return prob.Normalize(expected*(1-draw), draw, (1-expected)*(1-draw)), nil
}

var _ domain.Classifier = (*Baseline)(nil)
