// Package prob holds the probability helpers shared by the batch classifier
// path and the live match recomputation.
package prob

import (
	"math"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Normalize scales a win/draw/loss triple so it sums to 1. Negative or
// non-finite components are treated as 0. An all-zero triple becomes uniform.
func Normalize(win, draw, loss float64) domain.Probabilities {
	win, draw, loss = clean(win), clean(draw), clean(loss)
	sum := win + draw + loss
	if sum == 0 {
		return domain.Probabilities{Win: 1.0 / 3, Draw: 1.0 / 3, Loss: 1.0 / 3}
	}
	return domain.Probabilities{Win: win / sum, Draw: draw / sum, Loss: loss / sum}
}

// Round rounds every component to the given number of decimal places. The
// result is for display only and may not sum to exactly 1.
func Round(p domain.Probabilities, places int) domain.Probabilities {
	return domain.Probabilities{
		Win:  roundTo(p.Win, places),
		Draw: roundTo(p.Draw, places),
		Loss: roundTo(p.Loss, places),
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
