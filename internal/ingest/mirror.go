package ingest

import "github.com/alanyoungcy/matchcast/internal/domain"

// MirrorMissing appends the opposite perspective for every fixture that has
// only one row, so each team's own history is complete when stored. Mirrored
// rows have no shot counts. Input order is kept and mirrors follow the rows
// they were derived from.
func MirrorMissing(records []domain.MatchRecord) []domain.MatchRecord {
	sides := make(map[domain.FixtureKey]map[string]bool, len(records))
	for _, r := range records {
		k := r.Fixture()
		if sides[k] == nil {
			sides[k] = make(map[string]bool, 2)
		}
		sides[k][r.Team] = true
	}

	out := make([]domain.MatchRecord, 0, 2*len(records))
	for _, r := range records {
		out = append(out, r)
		k := r.Fixture()
		if !sides[k][r.Opponent] {
			out = append(out, r.Mirror())
			sides[k][r.Opponent] = true
		}
	}
	for i := range out {
		out[i].Seq = int64(i)
	}
	return out
}
