package domain

import "time"

// DefaultInitialRating is the rating of a team the engine has never seen.
const DefaultInitialRating = 1500.0

// DefaultKFactor is the fixed step size of the rating recurrence.
const DefaultKFactor = 32.0

// TeamRating is a team's current strength estimate.
type TeamRating struct {
	Team    string  `json:"team"`
	Rating  float64 `json:"rating"`
	Matches int     `json:"matches"`
}

// RatingChange records one team's rating movement for one match.
type RatingChange struct {
	MatchDate time.Time `json:"match_date"`
	Team      string    `json:"team"`
	Opponent  string    `json:"opponent"`
	Result    Result    `json:"result"`
	Before    float64   `json:"before"`
	After     float64   `json:"after"`
}

// Delta is the signed rating movement.
func (c RatingChange) Delta() float64 {
	return c.After - c.Before
}
