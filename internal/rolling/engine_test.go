package rolling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

func rec(day int, team, opp string, gf, ga int) domain.MatchRecord {
	return domain.MatchRecord{
		MatchDate:    time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
		Team:         team,
		Opponent:     opp,
		Venue:        domain.VenueHome,
		GoalsFor:     gf,
		GoalsAgainst: ga,
	}
}

func intPtr(v int) *int { return &v }

func TestNewEngine(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 10}, e.Windows())

	e, err = NewEngine(5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, e.Windows())

	_, err = NewEngine(3, 3)
	assert.Error(t, err)
	_, err = NewEngine(0)
	assert.Error(t, err)
}

func TestEngine_EmptySnapshotIsZero(t *testing.T) {
	e, err := NewEngine(3)
	require.NoError(t, err)

	snap := e.Snapshot("Fulham")[3]
	assert.Equal(t, domain.FormSnapshot{Window: 3}, snap)

	e.Register("Fulham")
	assert.Equal(t, domain.FormSnapshot{Window: 3}, e.Snapshot("Fulham")[3])
}

func TestEngine_WindowBoundAndFIFO(t *testing.T) {
	e, err := NewEngine(3, 5)
	require.NoError(t, err)

	goals := []int{1, 2, 3, 4, 5, 6, 7}
	for i, g := range goals {
		_, err := e.Observe("Wolves", rec(i+1, "Wolves", "X", g, 0))
		require.NoError(t, err)
		assert.LessOrEqual(t, e.Len("Wolves", 3), 3)
		assert.LessOrEqual(t, e.Len("Wolves", 5), 5)
	}

	snaps := e.Snapshot("Wolves")
	// window 3 holds 5,6,7 after evicting the older entries
	assert.Equal(t, 3, snaps[3].Matches)
	assert.InDelta(t, 6.0, snaps[3].GoalsFor, 1e-12)
	assert.Equal(t, 5, snaps[5].Matches)
	assert.InDelta(t, 5.0, snaps[5].GoalsFor, 1e-12)
}

func TestEngine_EvictsOldestOnOverflow(t *testing.T) {
	e, err := NewEngine(2)
	require.NoError(t, err)

	_, err = e.Observe("A", rec(1, "A", "B", 10, 0))
	require.NoError(t, err)
	snaps, err := e.Observe("A", rec(2, "A", "B", 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, snaps[2].GoalsFor, 1e-12)

	snaps, err = e.Observe("A", rec(3, "A", "B", 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, snaps[2].Matches)
	assert.InDelta(t, 1.0, snaps[2].GoalsFor, 1e-12)
}

func TestEngine_ObserveFromOpponentSide(t *testing.T) {
	e, err := NewEngine(3)
	require.NoError(t, err)

	m := rec(1, "Arsenal", "Chelsea", 2, 1)
	_, err = e.Observe("Arsenal", m)
	require.NoError(t, err)
	snaps, err := e.Observe("Chelsea", m)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, snaps[3].GoalsFor, 1e-12)
	assert.InDelta(t, 2.0, snaps[3].GoalsAgainst, 1e-12)
	assert.InDelta(t, 0.0, snaps[3].WinRate, 1e-12)
	assert.InDelta(t, 1.0, e.Snapshot("Arsenal")[3].WinRate, 1e-12)

	_, err = e.Observe("Spurs", m)
	assert.Error(t, err)
}

func TestEngine_WinRateAndSpread(t *testing.T) {
	e, err := NewEngine(3)
	require.NoError(t, err)

	_, _ = e.Observe("A", rec(1, "A", "B", 3, 1))
	_, _ = e.Observe("A", rec(2, "A", "B", 1, 1))
	snaps, err := e.Observe("A", rec(3, "A", "B", 2, 0))
	require.NoError(t, err)

	s := snaps[3]
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-12)
	assert.InDelta(t, 2.0, s.GoalsFor, 1e-12)
	assert.InDelta(t, 1.0, s.GoalsForStd, 1e-12)
	assert.InDelta(t, 4.0/3.0, s.GoalDifference(), 1e-12)
}

func TestEngine_ShotsAveragedOverKnownValues(t *testing.T) {
	e, err := NewEngine(3)
	require.NoError(t, err)

	m1 := rec(1, "A", "B", 1, 0)
	m1.Shots, m1.ShotsOnTarget = intPtr(10), intPtr(4)
	m2 := rec(2, "A", "B", 1, 0)
	m3 := rec(3, "A", "B", 1, 0)
	m3.Shots = intPtr(20)

	for _, m := range []domain.MatchRecord{m1, m2, m3} {
		_, err := e.Observe("A", m)
		require.NoError(t, err)
	}
	s := e.Snapshot("A")[3]
	assert.InDelta(t, 15.0, s.Shots, 1e-12)
	assert.InDelta(t, 4.0, s.ShotsOnTarget, 1e-12)
}

func TestEngine_Deterministic(t *testing.T) {
	build := func() map[int]domain.FormSnapshot {
		e, err := NewEngine()
		require.NoError(t, err)
		for i := 1; i <= 12; i++ {
			_, err := e.Observe("A", rec(i, "A", "B", i%4, (i*7)%3))
			require.NoError(t, err)
		}
		return e.Snapshot("A")
	}
	assert.Equal(t, build(), build())
}
