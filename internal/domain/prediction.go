package domain

import (
	"context"
	"time"
)

// Probabilities is a win/draw/loss triple from the team's perspective.
type Probabilities struct {
	Win  float64 `json:"win"`
	Draw float64 `json:"draw"`
	Loss float64 `json:"loss"`
}

// Sum returns Win+Draw+Loss.
func (p Probabilities) Sum() float64 {
	return p.Win + p.Draw + p.Loss
}

// Label returns the most likely result. Ties favour a draw.
func (p Probabilities) Label() Result {
	switch {
	case p.Win > p.Draw && p.Win > p.Loss:
		return ResultWin
	case p.Loss > p.Draw && p.Loss > p.Win:
		return ResultLoss
	default:
		return ResultDraw
	}
}

// Prediction is a stored classifier answer for a fixture.
type Prediction struct {
	ID            string        `json:"id"`
	Team          string        `json:"team"`
	Opponent      string        `json:"opponent"`
	MatchDate     time.Time     `json:"match_date"`
	Venue         Venue         `json:"venue"`
	Probabilities Probabilities `json:"probabilities"`
	Label         Result        `json:"label"`
	ModelID       string        `json:"model_id"`
	Features      FeatureVector `json:"features"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Classifier turns a feature vector into outcome probabilities that sum to 1.
type Classifier interface {
	Predict(ctx context.Context, fv FeatureVector) (Probabilities, error)
	ModelID() string
}
