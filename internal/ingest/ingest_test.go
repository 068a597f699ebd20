package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

func TestParseCSV_Header(t *testing.T) {
	in := `date,team,opponent,venue,gf,ga,sh,sot,season
2023-01-01,Arsenal,Chelsea,Home,2,1,14,6,2022-23
01/02/2023,Chelsea,Arsenal,away,1,0,,,2022-23

2023-03-01,Arsenal,Leeds,h,3,0,9,4,2022-23
`
	res, err := ParseCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 3)

	first := res.Records[0]
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), first.MatchDate)
	assert.Equal(t, domain.VenueHome, first.Venue)
	require.NotNil(t, first.Shots)
	assert.Equal(t, 14, *first.Shots)
	assert.Equal(t, 6, *first.ShotsOnTarget)

	second := res.Records[1]
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), second.MatchDate)
	assert.Nil(t, second.Shots)
	assert.Equal(t, int64(1), second.Seq)
	assert.Equal(t, domain.ResultWin, second.Result())
}

func TestParseCSV_Aliases(t *testing.T) {
	in := "match_date,opp,team,h/a,goals_for,goals_against\n2023-01-01,Chelsea,Arsenal,A,0,0\n"
	res, err := ParseCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Arsenal", res.Records[0].Team)
	assert.Equal(t, "Chelsea", res.Records[0].Opponent)
	assert.Equal(t, domain.VenueAway, res.Records[0].Venue)
}

func TestParseCSV_LegacyLayout(t *testing.T) {
	in := "0,2022-08-05,20:00,Crystal Palace,Arsenal,Home,L,0.0,2.0,10.0,2.0,35,1.0,0,0,,2023\n"
	res, err := ParseCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, "Crystal Palace", r.Team)
	assert.Equal(t, 2, r.GoalsAgainst)
	assert.Equal(t, 10, *r.Shots)
	assert.Equal(t, "2023", r.Season)
}

func TestParseCSV_CollectsLineErrors(t *testing.T) {
	in := `date,team,opponent,venue,gf,ga
2023-01-01,Arsenal,Chelsea,home,2,1
yesterday,Arsenal,Chelsea,home,2,1
2023-01-03,Arsenal,Arsenal,home,2,1
2023-01-04,Arsenal,Chelsea,middle,2,1
2023-01-05,Arsenal,Chelsea,home,-1,1
2023-01-06,Arsenal,Chelsea,home,1.5,1
`
	res, err := ParseCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	require.Len(t, res.Errors, 5)
	lines := make([]int, 0, len(res.Errors))
	for _, e := range res.Errors {
		lines = append(lines, e.Line)
		assert.ErrorIs(t, e, domain.ErrInvalidRecord)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7}, lines)

	_, err = ParseCSV(strings.NewReader(in), Options{Strict: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2023-05-07", "07/05/2023", "2023/05/07", "2023-05-07 15:30:00"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2023, 5, 7, 0, 0, 0, 0, time.UTC), d, s)
	}
	_, err := ParseDate("")
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestMirrorMissing(t *testing.T) {
	d := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	shots := 12
	records := []domain.MatchRecord{
		{MatchDate: d, Team: "Arsenal", Opponent: "Chelsea", Venue: domain.VenueHome, GoalsFor: 2, GoalsAgainst: 1, Shots: &shots},
		{MatchDate: d, Team: "Leeds", Opponent: "Spurs", Venue: domain.VenueHome, GoalsFor: 0, GoalsAgainst: 0},
		{MatchDate: d, Team: "Spurs", Opponent: "Leeds", Venue: domain.VenueAway, GoalsFor: 0, GoalsAgainst: 0},
	}
	out := MirrorMissing(records)
	require.Len(t, out, 4)
	assert.Equal(t, "Chelsea", out[1].Team)
	assert.Equal(t, domain.VenueAway, out[1].Venue)
	assert.Equal(t, domain.ResultLoss, out[1].Result())
	assert.Nil(t, out[1].Shots)
	assert.Equal(t, "Leeds", out[2].Team)
	for i, r := range out {
		assert.Equal(t, int64(i), r.Seq)
	}
}
