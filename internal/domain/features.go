package domain

import "time"

// DefaultWindows are the trailing window sizes used for form features.
var DefaultWindows = []int{3, 5, 10}

// FormSnapshot summarises a team's last N matches before a given fixture.
// Every average is 0 when the window is empty.
type FormSnapshot struct {
	Window          int     `json:"window"`
	Matches         int     `json:"matches"`
	GoalsFor        float64 `json:"goals_for"`
	GoalsAgainst    float64 `json:"goals_against"`
	WinRate         float64 `json:"win_rate"`
	GoalsForStd     float64 `json:"goals_for_std"`
	GoalsAgainstStd float64 `json:"goals_against_std"`
	Shots           float64 `json:"shots"`
	ShotsOnTarget   float64 `json:"shots_on_target"`
}

// GoalDifference is the mean goal difference over the window.
func (s FormSnapshot) GoalDifference() float64 {
	return s.GoalsFor - s.GoalsAgainst
}

// WindowFeatures pairs both teams' form over one window size.
type WindowFeatures struct {
	Window       int          `json:"window"`
	Team         FormSnapshot `json:"team"`
	Opponent     FormSnapshot `json:"opponent"`
	GoalDiffDiff float64      `json:"goal_diff_diff"`
	WinRateDiff  float64      `json:"win_rate_diff"`
}

// FeatureVector is the pre-match input handed to a classifier. It is built
// only from matches strictly before MatchDate.
type FeatureVector struct {
	MatchDate      time.Time        `json:"match_date"`
	Team           string           `json:"team"`
	Opponent       string           `json:"opponent"`
	Venue          Venue            `json:"venue"`
	TeamRating     float64          `json:"team_rating"`
	OpponentRating float64          `json:"opponent_rating"`
	RatingDiff     float64          `json:"rating_diff"`
	Windows        []WindowFeatures `json:"windows"`
}

// Window returns the features for window size w.
func (f FeatureVector) Window(w int) (WindowFeatures, bool) {
	for _, wf := range f.Windows {
		if wf.Window == w {
			return wf, true
		}
	}
	return WindowFeatures{}, false
}

// FeatureRow ties a feature vector to the record it was built for and the
// outcome that followed.
type FeatureRow struct {
	Record   MatchRecord   `json:"-"`
	Features FeatureVector `json:"features"`
	Result   Result        `json:"result"`
}
