// Package live drives in-progress matches through their phases and keeps a
// live outcome prediction alongside.
package live

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Bounds on a single observation. Anything outside them is rejected before
// the state is touched.
const (
	maxMinute     = 130
	maxScore      = 99
	maxGoalsDelta = 10
)

// Machine is the state of one live match. It does not advance on its own:
// every change comes from Apply or Finish. A Machine is not safe for
// concurrent use; Manager gives each one its own goroutine.
type Machine struct {
	state domain.LiveMatchState
}

// NewMachine creates a match in the pre-match phase.
func NewMachine(matchID, homeTeam, awayTeam string, ratingDiff float64, now time.Time) *Machine {
	return &Machine{state: domain.LiveMatchState{
		MatchID:    matchID,
		HomeTeam:   homeTeam,
		AwayTeam:   awayTeam,
		Status:     domain.StatusPreMatch,
		RatingDiff: ratingDiff,
		Events:     domain.EventLog{},
		StartedAt:  now,
		UpdatedAt:  now,
	}}
}

// State returns a copy of the current state.
func (m *Machine) State() domain.LiveMatchState {
	return m.state.Clone()
}

// Snapshot returns the current state with its prediction and no events.
func (m *Machine) Snapshot() domain.Transition {
	return domain.Transition{
		State:      m.state.Clone(),
		Prediction: Predict(m.state.ScoreDiff(), m.state.Minute),
		Events:     domain.EventLog{},
	}
}

// Apply validates and applies a score/minute observation. On error the state
// is unchanged.
func (m *Machine) Apply(u domain.LiveUpdate, now time.Time) (domain.Transition, error) {
	cur := m.state
	if cur.Status.Terminal() {
		return domain.Transition{}, fmt.Errorf("live: match %s: %w", cur.MatchID, domain.ErrMatchAlreadyFinished)
	}
	if u.Minute < cur.Minute || u.HomeScore < cur.HomeScore || u.AwayScore < cur.AwayScore {
		return domain.Transition{}, fmt.Errorf("live: match %s: %d-%d@%d after %d-%d@%d: %w",
			cur.MatchID, u.HomeScore, u.AwayScore, u.Minute,
			cur.HomeScore, cur.AwayScore, cur.Minute, domain.ErrNonMonotonicUpdate)
	}
	if err := checkBounds(cur, u); err != nil {
		return domain.Transition{}, err
	}

	next := cur.Clone()
	var emitted domain.EventLog
	setStatus := func(to domain.MatchStatus) {
		emitted = append(emitted, domain.StatusChangeEvent{From: next.Status, To: to, Minute: u.Minute})
		next.Status = to
	}

	if next.Status == domain.StatusPreMatch || next.Status == domain.StatusHalfTime {
		setStatus(domain.StatusLive)
	}

	for next.HomeScore < u.HomeScore {
		next.HomeScore++
		emitted = append(emitted, domain.GoalEvent{Side: domain.SideHome, Minute: u.Minute, HomeScore: next.HomeScore, AwayScore: next.AwayScore})
	}
	for next.AwayScore < u.AwayScore {
		next.AwayScore++
		emitted = append(emitted, domain.GoalEvent{Side: domain.SideAway, Minute: u.Minute, HomeScore: next.HomeScore, AwayScore: next.AwayScore})
	}
	next.Minute = u.Minute

	switch {
	case next.Minute >= regulationMinutes:
		setStatus(domain.StatusFullTime)
	case !next.HalfTimed && next.Minute >= halfTimeMinute:
		setStatus(domain.StatusHalfTime)
		next.HalfTimed = true
	}

	next.Events = append(next.Events, emitted...)
	next.UpdatedAt = now
	m.state = next
	return m.transition(emitted), nil
}

func checkBounds(cur domain.LiveMatchState, u domain.LiveUpdate) error {
	switch {
	case u.Minute > maxMinute:
		return fmt.Errorf("live: match %s: minute %d beyond %d: %w", cur.MatchID, u.Minute, maxMinute, domain.ErrInvalidRecord)
	case u.HomeScore > maxScore || u.AwayScore > maxScore:
		return fmt.Errorf("live: match %s: score %d-%d beyond %d: %w", cur.MatchID, u.HomeScore, u.AwayScore, maxScore, domain.ErrInvalidRecord)
	case u.HomeScore-cur.HomeScore > maxGoalsDelta || u.AwayScore-cur.AwayScore > maxGoalsDelta:
		return fmt.Errorf("live: match %s: more than %d goals for one side in a single update: %w", cur.MatchID, maxGoalsDelta, domain.ErrInvalidRecord)
	}
	return nil
}

// Finish moves the match to full time at its current minute.
func (m *Machine) Finish(now time.Time) (domain.Transition, error) {
	if m.state.Status.Terminal() {
		return domain.Transition{}, fmt.Errorf("live: match %s: %w", m.state.MatchID, domain.ErrMatchAlreadyFinished)
	}
	next := m.state.Clone()
	ev := domain.StatusChangeEvent{From: next.Status, To: domain.StatusFullTime, Minute: next.Minute}
	next.Status = domain.StatusFullTime
	next.Events = append(next.Events, ev)
	next.UpdatedAt = now
	m.state = next
	return m.transition(domain.EventLog{ev}), nil
}

func (m *Machine) transition(events domain.EventLog) domain.Transition {
	if events == nil {
		events = domain.EventLog{}
	}
	return domain.Transition{
		State:      m.state.Clone(),
		Prediction: Predict(m.state.ScoreDiff(), m.state.Minute),
		Events:     events,
	}
}
