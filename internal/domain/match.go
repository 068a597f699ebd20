package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used in keys and the wire.
const DateLayout = "2006-01-02"

// Venue says whether the row's team played at home or away.
type Venue string

const (
	VenueHome Venue = "home"
	VenueAway Venue = "away"
)

// Opposite returns the venue from the opponent's perspective.
func (v Venue) Opposite() Venue {
	if v == VenueHome {
		return VenueAway
	}
	return VenueHome
}

// ParseVenue accepts "home"/"away" and the short forms "h"/"a".
func ParseVenue(s string) (Venue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home", "h":
		return VenueHome, nil
	case "away", "a":
		return VenueAway, nil
	default:
		return "", fmt.Errorf("%w: unknown venue %q", ErrInvalidRecord, s)
	}
}

// Result is the outcome of a match from one team's perspective.
type Result string

const (
	ResultWin  Result = "W"
	ResultDraw Result = "D"
	ResultLoss Result = "L"
)

// ResultFromGoals derives a result from goals for and against.
func ResultFromGoals(goalsFor, goalsAgainst int) Result {
	switch {
	case goalsFor > goalsAgainst:
		return ResultWin
	case goalsFor == goalsAgainst:
		return ResultDraw
	default:
		return ResultLoss
	}
}

// Score is the actual score used by the rating recurrence.
func (r Result) Score() float64 {
	switch r {
	case ResultWin:
		return 1.0
	case ResultDraw:
		return 0.5
	default:
		return 0.0
	}
}

// Invert returns the same result seen from the other side.
func (r Result) Invert() Result {
	switch r {
	case ResultWin:
		return ResultLoss
	case ResultLoss:
		return ResultWin
	default:
		return ResultDraw
	}
}

// Valid reports whether r is one of the three known results.
func (r Result) Valid() bool {
	return r == ResultWin || r == ResultDraw || r == ResultLoss
}

// MatchRecord is one team's view of a single historical fixture. The log
// carries two records per real match, one from each side.
type MatchRecord struct {
	Seq           int64 // ingestion order, used to break date ties
	MatchDate     time.Time
	Team          string
	Opponent      string
	Venue         Venue
	GoalsFor      int
	GoalsAgainst  int
	Shots         *int
	ShotsOnTarget *int
	Season        string
}

// Result derives the outcome from the recorded goals.
func (m MatchRecord) Result() Result {
	return ResultFromGoals(m.GoalsFor, m.GoalsAgainst)
}

// Validate checks the invariants a record must satisfy before processing.
func (m MatchRecord) Validate() error {
	if m.MatchDate.IsZero() {
		return fmt.Errorf("%w: missing match date", ErrInvalidRecord)
	}
	if strings.TrimSpace(m.Team) == "" || strings.TrimSpace(m.Opponent) == "" {
		return fmt.Errorf("%w: team and opponent are required", ErrInvalidRecord)
	}
	if m.Team == m.Opponent {
		return fmt.Errorf("%w: team %q cannot play itself", ErrInvalidRecord, m.Team)
	}
	if m.Venue != VenueHome && m.Venue != VenueAway {
		return fmt.Errorf("%w: unknown venue %q", ErrInvalidRecord, m.Venue)
	}
	if m.GoalsFor < 0 || m.GoalsAgainst < 0 {
		return fmt.Errorf("%w: negative goals", ErrInvalidRecord)
	}
	if (m.Shots != nil && *m.Shots < 0) || (m.ShotsOnTarget != nil && *m.ShotsOnTarget < 0) {
		return fmt.Errorf("%w: negative shots", ErrInvalidRecord)
	}
	return nil
}

// Mirror returns the opponent's perspective of the same fixture. Shots are
// per-team values and are not known for the other side, so they are cleared.
func (m MatchRecord) Mirror() MatchRecord {
	return MatchRecord{
		Seq:          m.Seq,
		MatchDate:    m.MatchDate,
		Team:         m.Opponent,
		Opponent:     m.Team,
		Venue:        m.Venue.Opposite(),
		GoalsFor:     m.GoalsAgainst,
		GoalsAgainst: m.GoalsFor,
		Season:       m.Season,
	}
}

// FixtureKey identifies a real-world match independent of perspective.
type FixtureKey struct {
	Date  string
	TeamA string // lexicographically smaller side
	TeamB string
}

// Fixture returns the perspective-free key for the record.
func (m MatchRecord) Fixture() FixtureKey {
	a, b := m.Team, m.Opponent
	if b < a {
		a, b = b, a
	}
	return FixtureKey{Date: m.MatchDate.Format(DateLayout), TeamA: a, TeamB: b}
}

func (k FixtureKey) String() string {
	return k.Date + ":" + k.TeamA + ":" + k.TeamB
}
