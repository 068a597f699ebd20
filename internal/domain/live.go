package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MatchStatus is the phase of a live match.
type MatchStatus string

const (
	StatusPreMatch MatchStatus = "pre-match"
	StatusLive     MatchStatus = "live"
	StatusHalfTime MatchStatus = "half-time"
	StatusFullTime MatchStatus = "full-time"
)

// Terminal reports whether no further updates are accepted.
func (s MatchStatus) Terminal() bool { return s == StatusFullTime }

// Side identifies the scoring team in a live match.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// EventKind tags a MatchEvent variant.
type EventKind string

const (
	EventGoal         EventKind = "goal"
	EventStatusChange EventKind = "status_change"
)

// MatchEvent is a closed set of things that can happen during a live match.
type MatchEvent interface {
	Kind() EventKind
	EventMinute() int
	matchEvent()
}

// GoalEvent is emitted once per goal.
type GoalEvent struct {
	Side      Side `json:"side"`
	Minute    int  `json:"minute"`
	HomeScore int  `json:"home_score"`
	AwayScore int  `json:"away_score"`
}

func (GoalEvent) Kind() EventKind    { return EventGoal }
func (e GoalEvent) EventMinute() int { return e.Minute }
func (GoalEvent) matchEvent()        {}

// StatusChangeEvent is emitted on every phase transition.
type StatusChangeEvent struct {
	From   MatchStatus `json:"from"`
	To     MatchStatus `json:"to"`
	Minute int         `json:"minute"`
}

func (StatusChangeEvent) Kind() EventKind    { return EventStatusChange }
func (e StatusChangeEvent) EventMinute() int { return e.Minute }
func (StatusChangeEvent) matchEvent()        {}

// eventEnvelope is the wire form of a MatchEvent.
type eventEnvelope struct {
	Type      EventKind   `json:"type"`
	Minute    int         `json:"minute"`
	Side      Side        `json:"side,omitempty"`
	HomeScore int         `json:"home_score,omitempty"`
	AwayScore int         `json:"away_score,omitempty"`
	From      MatchStatus `json:"from,omitempty"`
	To        MatchStatus `json:"to,omitempty"`
}

// EventLog is an ordered list of match events with a tagged JSON encoding.
type EventLog []MatchEvent

func (l EventLog) MarshalJSON() ([]byte, error) {
	out := make([]eventEnvelope, 0, len(l))
	for _, ev := range l {
		switch e := ev.(type) {
		case GoalEvent:
			out = append(out, eventEnvelope{Type: EventGoal, Minute: e.Minute, Side: e.Side, HomeScore: e.HomeScore, AwayScore: e.AwayScore})
		case StatusChangeEvent:
			out = append(out, eventEnvelope{Type: EventStatusChange, Minute: e.Minute, From: e.From, To: e.To})
		default:
			return nil, fmt.Errorf("domain: unknown match event %T", ev)
		}
	}
	return json.Marshal(out)
}

func (l *EventLog) UnmarshalJSON(data []byte) error {
	var raw []eventEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	events := make(EventLog, 0, len(raw))
	for _, e := range raw {
		switch e.Type {
		case EventGoal:
			events = append(events, GoalEvent{Side: e.Side, Minute: e.Minute, HomeScore: e.HomeScore, AwayScore: e.AwayScore})
		case EventStatusChange:
			events = append(events, StatusChangeEvent{From: e.From, To: e.To, Minute: e.Minute})
		default:
			return fmt.Errorf("domain: unknown match event type %q", e.Type)
		}
	}
	*l = events
	return nil
}

// Last returns up to n of the most recent events.
func (l EventLog) Last(n int) EventLog {
	if n >= len(l) {
		return l
	}
	return l[len(l)-n:]
}

// LiveMatchState is the mutable state of one in-progress match.
type LiveMatchState struct {
	MatchID    string      `json:"match_id"`
	HomeTeam   string      `json:"home_team"`
	AwayTeam   string      `json:"away_team"`
	HomeScore  int         `json:"home_score"`
	AwayScore  int         `json:"away_score"`
	Minute     int         `json:"minute"`
	Status     MatchStatus `json:"status"`
	HalfTimed  bool        `json:"half_timed"`
	RatingDiff float64     `json:"rating_diff"`
	Events     EventLog    `json:"events"`
	StartedAt  time.Time   `json:"started_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the event slice.
func (s LiveMatchState) Clone() LiveMatchState {
	c := s
	if s.Events != nil {
		c.Events = make(EventLog, len(s.Events))
		copy(c.Events, s.Events)
	}
	return c
}

// ScoreDiff is home minus away.
func (s LiveMatchState) ScoreDiff() int { return s.HomeScore - s.AwayScore }

// LiveUpdate is an externally supplied score/minute observation.
type LiveUpdate struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
	Minute    int `json:"minute"`
}

// LivePrediction is recomputed from scratch after every accepted update.
type LivePrediction struct {
	Probabilities
	Confidence float64 `json:"confidence"`
	Minute     int     `json:"minute"`
	ModelID    string  `json:"model_id"`
}

// Transition is what a live match produces for each accepted change: the new
// state, its prediction and the events the change emitted.
type Transition struct {
	State      LiveMatchState `json:"state"`
	Prediction LivePrediction `json:"prediction"`
	Events     EventLog       `json:"events"`
	Stopped    bool           `json:"stopped,omitempty"`
}
