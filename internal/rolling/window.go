// Package rolling keeps trailing form windows for every team.
package rolling

import (
	"gonum.org/v1/gonum/stat"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

type entry struct {
	goalsFor      float64
	goalsAgainst  float64
	win           float64
	shots         float64
	shotsOnTarget float64
	hasShots      bool
	hasOnTarget   bool
}

func entryFrom(m domain.MatchRecord) entry {
	e := entry{
		goalsFor:     float64(m.GoalsFor),
		goalsAgainst: float64(m.GoalsAgainst),
	}
	if m.Result() == domain.ResultWin {
		e.win = 1
	}
	if m.Shots != nil {
		e.shots, e.hasShots = float64(*m.Shots), true
	}
	if m.ShotsOnTarget != nil {
		e.shotsOnTarget, e.hasOnTarget = float64(*m.ShotsOnTarget), true
	}
	return e
}

// Window is a fixed-capacity FIFO of a team's most recent match outcomes.
type Window struct {
	buf  []entry
	head int // index of the oldest entry
	n    int
}

// NewWindow creates an empty window holding at most size entries.
func NewWindow(size int) *Window {
	return &Window{buf: make([]entry, size)}
}

// Cap is the window size.
func (w *Window) Cap() int { return len(w.buf) }

// Len is the number of entries currently held, never more than Cap.
func (w *Window) Len() int { return w.n }

func (w *Window) push(e entry) {
	if w.n < len(w.buf) {
		w.buf[(w.head+w.n)%len(w.buf)] = e
		w.n++
		return
	}
	// full: overwrite the oldest
	w.buf[w.head] = e
	w.head = (w.head + 1) % len(w.buf)
}

// ordered returns the entries oldest first.
func (w *Window) ordered() []entry {
	out := make([]entry, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Snapshot averages the window's current contents.
func (w *Window) Snapshot() domain.FormSnapshot {
	snap := domain.FormSnapshot{Window: len(w.buf), Matches: w.n}
	if w.n == 0 {
		return snap
	}

	entries := w.ordered()
	gf := make([]float64, 0, w.n)
	ga := make([]float64, 0, w.n)
	wins := make([]float64, 0, w.n)
	var shots, onTarget []float64
	for _, e := range entries {
		gf = append(gf, e.goalsFor)
		ga = append(ga, e.goalsAgainst)
		wins = append(wins, e.win)
		if e.hasShots {
			shots = append(shots, e.shots)
		}
		if e.hasOnTarget {
			onTarget = append(onTarget, e.shotsOnTarget)
		}
	}

	snap.GoalsFor = stat.Mean(gf, nil)
	snap.GoalsAgainst = stat.Mean(ga, nil)
	snap.WinRate = stat.Mean(wins, nil)
	if w.n > 1 {
		snap.GoalsForStd = stat.StdDev(gf, nil)
		snap.GoalsAgainstStd = stat.StdDev(ga, nil)
	}
	if len(shots) > 0 {
		snap.Shots = stat.Mean(shots, nil)
	}
	if len(onTarget) > 0 {
		snap.ShotsOnTarget = stat.Mean(onTarget, nil)
	}
	return snap
}
