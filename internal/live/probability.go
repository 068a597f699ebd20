package live

import (
	"math"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/prob"
)

// ModelID identifies predictions produced by the in-play adjustment.
const ModelID = "live-adjusted"

const (
	regulationMinutes = 90
	halfTimeMinute    = 45
	minTimeFactor     = 0.1
	minDraw           = 0.1
)

// TimeFactor is the share of regulation time still to play, floored at 0.1.
func TimeFactor(minute int) float64 {
	return math.Max(minTimeFactor, float64(regulationMinutes-minute)/regulationMinutes)
}

// Predict recomputes the in-play outcome probabilities for the home side
// from the score difference and the minute.
func Predict(scoreDiff, minute int) domain.LivePrediction {
	tf := TimeFactor(minute)
	elapsed := 1 - tf
	d := float64(scoreDiff)

	var win, loss float64
	switch {
	case scoreDiff > 0:
		win = 0.6 + d*0.15*elapsed
		loss = 0.2 - d*0.05*elapsed
	case scoreDiff < 0:
		win = 0.2 + d*0.05*elapsed
		loss = 0.6 - d*0.15*elapsed
	default:
		win, loss = 0.4, 0.4
	}
	draw := math.Max(minDraw, 1-win-loss)

	return domain.LivePrediction{
		Probabilities: prob.Normalize(win, draw, loss),
		Confidence:    elapsed,
		Minute:        minute,
		ModelID:       ModelID,
	}
}
