package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/features"
	"github.com/alanyoungcy/matchcast/internal/rating"
	"github.com/alanyoungcy/matchcast/internal/rolling"
)

// FoldConfig parameterises the rating and form engines.
type FoldConfig struct {
	KFactor       float64
	InitialRating float64
	Windows       []int
}

// DefaultFoldConfig returns the reference configuration.
func DefaultFoldConfig() FoldConfig {
	return FoldConfig{
		KFactor:       domain.DefaultKFactor,
		InitialRating: domain.DefaultInitialRating,
		Windows:       domain.DefaultWindows,
	}
}

// SortRecords orders records by match date. The sort is stable, so records on
// the same date keep their ingestion order.
func SortRecords(records []domain.MatchRecord) []domain.MatchRecord {
	out := make([]domain.MatchRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return dateOnly(out[i].MatchDate).Before(dateOnly(out[j].MatchDate))
	})
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixture groups the one or two perspectives of a real match.
type fixture struct {
	key  domain.FixtureKey
	rows []int // indexes into the sorted slice
}

// groupFixtures pairs the perspectives of each real match, keeping fixtures in
// the order their first row appears.
func groupFixtures(sorted []domain.MatchRecord) ([]*fixture, error) {
	var out []*fixture
	byKey := make(map[domain.FixtureKey]*fixture)
	for i, r := range sorted {
		key := r.Fixture()
		fx, ok := byKey[key]
		if !ok {
			fx = &fixture{key: key}
			byKey[key] = fx
			out = append(out, fx)
		}
		for _, j := range fx.rows {
			other := sorted[j]
			if other.Team == r.Team {
				return nil, fmt.Errorf("pipeline: fixture %s: duplicate row for %q: %w", key, r.Team, domain.ErrInvalidRecord)
			}
			if other.GoalsFor != r.GoalsAgainst || other.GoalsAgainst != r.GoalsFor {
				return nil, fmt.Errorf("pipeline: fixture %s: perspectives disagree on score: %w", key, domain.ErrInvalidRecord)
			}
		}
		fx.rows = append(fx.rows, i)
	}
	return out, nil
}

// Fold processes the match log once, in chronological order, and returns the
// resulting engine state together with the pre-match feature vector of every
// record. Fixtures are applied a calendar day at a time: every row of the day
// is read before any rating or form update of that day is written, so a team
// playing twice on one date never sees its own earlier result.
func Fold(ctx context.Context, records []domain.MatchRecord, cfg FoldConfig) (*State, error) {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("pipeline: record %d: %w", i, err)
		}
	}

	form, err := rolling.NewEngine(cfg.Windows...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	ratings := rating.NewEngine(rating.NewStore(cfg.InitialRating), rating.WithKFactor(cfg.KFactor))
	assembler := features.NewAssembler(ratings, form)

	sorted := SortRecords(records)
	fixtures, err := groupFixtures(sorted)
	if err != nil {
		return nil, err
	}

	st := &State{
		ratings: ratings,
		form:    form,
		rows:    make([]domain.FeatureRow, len(sorted)),
		pre:     make(map[string]domain.FeatureVector, 2*len(fixtures)),
	}

	for start := 0; start < len(fixtures); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := dateOnly(sorted[fixtures[start].rows[0]].MatchDate)
		end := start + 1
		for end < len(fixtures) && dateOnly(sorted[fixtures[end].rows[0]].MatchDate).Equal(day) {
			end++
		}
		batch := fixtures[start:end]
		start = end

		for _, fx := range batch {
			primary := sorted[fx.rows[0]]
			for _, team := range []string{primary.Team, primary.Opponent} {
				ratings.Register(team)
				form.Register(team)
			}
		}

		// Read every perspective of the day before anything is written.
		for _, fx := range batch {
			if err := st.read(assembler, sorted, fx); err != nil {
				return nil, err
			}
		}

		for _, fx := range batch {
			if err := st.apply(ratings, form, sorted, fx); err != nil {
				return nil, err
			}
		}
	}
	return st, nil
}

// read records the pre-match vectors of a fixture. A fixture logged from one
// side only also gets the mirrored perspective, built from the same state.
func (st *State) read(assembler *features.Assembler, sorted []domain.MatchRecord, fx *fixture) error {
	for _, i := range fx.rows {
		fv, err := assembler.Build(sorted[i])
		if err != nil {
			return fmt.Errorf("pipeline: fixture %s: %w", fx.key, err)
		}
		st.rows[i] = domain.FeatureRow{Record: sorted[i], Features: fv, Result: sorted[i].Result()}
		st.pre[rowKey(sorted[i].Team, sorted[i].Opponent, sorted[i].MatchDate)] = fv
	}
	if len(fx.rows) == 1 {
		other := sorted[fx.rows[0]].Mirror()
		fv, err := assembler.Build(other)
		if err != nil {
			return fmt.Errorf("pipeline: fixture %s: %w", fx.key, err)
		}
		st.pre[rowKey(other.Team, other.Opponent, other.MatchDate)] = fv
	}
	return nil
}

// apply writes the outcome of a fixture to both engines.
func (st *State) apply(ratings *rating.Engine, form *rolling.Engine, sorted []domain.MatchRecord, fx *fixture) error {
	primary := sorted[fx.rows[0]]
	oldTeam, oldOpp := ratings.Current(primary.Team), ratings.Current(primary.Opponent)
	newTeam, newOpp, err := ratings.Update(primary.Team, primary.Opponent, primary.Result())
	if err != nil {
		return fmt.Errorf("pipeline: fixture %s: %w", fx.key, err)
	}
	st.history = append(st.history,
		domain.RatingChange{MatchDate: primary.MatchDate, Team: primary.Team, Opponent: primary.Opponent,
			Result: primary.Result(), Before: oldTeam, After: newTeam},
		domain.RatingChange{MatchDate: primary.MatchDate, Team: primary.Opponent, Opponent: primary.Team,
			Result: primary.Result().Invert(), Before: oldOpp, After: newOpp},
	)

	for _, team := range []string{primary.Team, primary.Opponent} {
		rec := primary
		for _, i := range fx.rows {
			if sorted[i].Team == team {
				rec = sorted[i]
			}
		}
		if _, err := form.Observe(team, rec); err != nil {
			return fmt.Errorf("pipeline: fixture %s: %w", fx.key, err)
		}
	}

	st.fixtures++
	st.lastMatch = primary.MatchDate
	return nil
}
