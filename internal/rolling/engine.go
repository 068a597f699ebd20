package rolling

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Engine owns one Window per (team, window size). Like the rating engine it
// has a single writer that feeds it matches in chronological order.
type Engine struct {
	sizes []int
	teams map[string][]*Window
}

// NewEngine creates an engine tracking the given window sizes.
func NewEngine(sizes ...int) (*Engine, error) {
	if len(sizes) == 0 {
		sizes = domain.DefaultWindows
	}
	seen := make(map[int]bool, len(sizes))
	clean := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("rolling: window size %d must be positive", s)
		}
		if seen[s] {
			return nil, fmt.Errorf("rolling: duplicate window size %d", s)
		}
		seen[s] = true
		clean = append(clean, s)
	}
	sort.Ints(clean)
	return &Engine{sizes: clean, teams: make(map[string][]*Window)}, nil
}

// Windows returns the configured window sizes, ascending.
func (e *Engine) Windows() []int {
	out := make([]int, len(e.sizes))
	copy(out, e.sizes)
	return out
}

// Known reports whether team has been registered.
func (e *Engine) Known(team string) bool {
	_, ok := e.teams[team]
	return ok
}

// Register lazily creates empty windows for team.
func (e *Engine) Register(team string) {
	if _, ok := e.teams[team]; ok {
		return
	}
	ws := make([]*Window, len(e.sizes))
	for i, s := range e.sizes {
		ws[i] = NewWindow(s)
	}
	e.teams[team] = ws
}

// Snapshot returns team's current form for every window. Unknown teams get
// empty snapshots.
func (e *Engine) Snapshot(team string) map[int]domain.FormSnapshot {
	out := make(map[int]domain.FormSnapshot, len(e.sizes))
	ws, ok := e.teams[team]
	for i, s := range e.sizes {
		if !ok {
			out[s] = domain.FormSnapshot{Window: s}
			continue
		}
		out[s] = ws[i].Snapshot()
	}
	return out
}

// Observe pushes the outcome of m, seen from team's side, into every window
// and returns the updated snapshots. It must be called only after the
// pre-match features for m have been read.
func (e *Engine) Observe(team string, m domain.MatchRecord) (map[int]domain.FormSnapshot, error) {
	switch team {
	case m.Team:
	case m.Opponent:
		m = m.Mirror()
	default:
		return nil, fmt.Errorf("rolling: observe %q: not a participant of %s", team, m.Fixture())
	}
	if m.GoalsFor < 0 || m.GoalsAgainst < 0 {
		return nil, fmt.Errorf("rolling: observe %q: %w", team, domain.ErrInvalidRecord)
	}

	e.Register(team)
	ent := entryFrom(m)
	for _, w := range e.teams[team] {
		w.push(ent)
	}
	return e.Snapshot(team), nil
}

// Len returns the current number of entries in team's window of size w.
func (e *Engine) Len(team string, w int) int {
	ws, ok := e.teams[team]
	if !ok {
		return 0
	}
	for i, s := range e.sizes {
		if s == w {
			return ws[i].Len()
		}
	}
	return 0
}
